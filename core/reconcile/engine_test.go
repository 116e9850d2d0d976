package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const dsID uint = 7

func newTestEngine(catalog Catalog) *Engine {
	n := 0
	return NewEngine(catalog, zap.NewNop(), WithUIDGenerator(func() string {
		n++
		return fmt.Sprintf("uid-%d", n)
	}))
}

func runSync(t *testing.T, e *Engine, remote Remote) *SyncResult {
	t.Helper()
	result, err := e.Sync(context.Background(), Datasource{ID: dsID, Name: "test"}, remote, Options{})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestSync_ScenarioA_NewFile(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("a.csv", "H1", 3)
	catalog := newMemCatalog()

	result := runSync(t, newTestEngine(catalog), remote)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Identical)
	assert.Equal(t, 0, result.Merged)
	assert.Equal(t, 0, result.Orphaned)

	rows := catalog.byKey(KindFile, "a.csv")
	require.Len(t, rows, 1)
	assert.Equal(t, "H1", rows[0].ContentHash)
	assert.Equal(t, int64(3), rows[0].Size)
	assert.Equal(t, dsID, rows[0].DatasourceID)
}

func TestSync_ScenarioB_DirectoryIdentical(t *testing.T) {
	remote := newMemRemote()
	remote.putDir("reports/")
	remote.putSidecar("reports/", `{"uid":"U1"}`)
	catalog := newMemCatalog()
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindDirectory, Key: "reports", UID: "U1"})

	result, err := newTestEngine(catalog).Sync(context.Background(), Datasource{ID: dsID, Root: ""}, remote, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Identical)
	assert.Equal(t, 0, result.Orphaned)
	assert.Empty(t, remote.writes, "no sidecar should be rewritten")
}

func TestSync_ScenarioC_Orphan(t *testing.T) {
	remote := newMemRemote()
	catalog := newMemCatalog()
	seeded := catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "old.csv", ContentHash: "H1"})

	result := runSync(t, newTestEngine(catalog), remote)

	assert.Equal(t, 1, result.Orphaned)
	assert.Equal(t, 0, result.Created)

	rows := catalog.byKey(KindFile, "old.csv")
	require.Len(t, rows, 1, "orphaned row remains queryable")
	assert.True(t, rows[0].Orphan)
	assert.Equal(t, seeded.ID, rows[0].ID)
}

func TestSync_Idempotence(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("a.csv", "H1", 1)
	remote.putFile("reports/b.csv", `"H2"`, 2)
	remote.putFile("reports/2024/c.csv", "H3", 3)
	remote.putDir("empty")
	catalog := newMemCatalog()
	engine := newTestEngine(catalog)

	first := runSync(t, engine, remote)
	assert.Equal(t, 6, first.Created, "3 files and 3 directories")
	assert.Empty(t, first.Errors)

	second := runSync(t, engine, remote)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 0, second.Merged)
	assert.Equal(t, 0, second.Orphaned)
	assert.Equal(t, 6, second.Identical)
	assert.Equal(t, first.Total(), second.Total())
}

func TestSync_DirectoryRenamePreservesRow(t *testing.T) {
	remote := newMemRemote()
	remote.putDir("b")
	remote.putSidecar("b", `{"uid":"U"}`)
	catalog := newMemCatalog()
	seeded := catalog.seed(Entry{DatasourceID: dsID, Kind: KindDirectory, Key: "a/", UID: "U"})

	result := runSync(t, newTestEngine(catalog), remote)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Orphaned)

	rows := catalog.byKey(KindDirectory, "b/")
	require.Len(t, rows, 1)
	assert.Equal(t, seeded.ID, rows[0].ID)
	assert.Equal(t, "U", rows[0].UID)
	assert.Empty(t, catalog.byKey(KindDirectory, "a/"))
}

func TestSync_FileMovePreservesRow(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("b.csv", "H1", 10)
	catalog := newMemCatalog()
	seeded := catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "a.csv", ContentHash: "H1", Size: 10})

	result := runSync(t, newTestEngine(catalog), remote)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 0, result.Orphaned)
	assert.Equal(t, 1, catalog.count(KindFile), "exactly one file row survives")

	rows := catalog.byKey(KindFile, "b.csv")
	require.Len(t, rows, 1)
	assert.Equal(t, seeded.ID, rows[0].ID)
	assert.Equal(t, seeded.CreatedAt, rows[0].CreatedAt)
	assert.False(t, rows[0].Orphan)
}

func TestSync_FileMovePlanOnlyRekeys(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("b.csv", "H1", 10)
	catalog := newMemCatalog()
	seeded := catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "a.csv", ContentHash: "H1", Size: 10})

	plan, err := newTestEngine(catalog).Sync(context.Background(), Datasource{ID: dsID}, remote, Options{DryRun: true})
	require.NoError(t, err)
	for _, action := range plan.Actions {
		if action.Kind == KindFile {
			assert.Equal(t, ActionMerge, action.Type, "file move never plans a removal or insert")
		}
	}

	runSync(t, newTestEngine(catalog), remote)
	assert.Equal(t, 1, catalog.count(KindFile))
	rows := catalog.byKey(KindFile, "b.csv")
	require.Len(t, rows, 1)
	assert.Equal(t, seeded.ID, rows[0].ID)
	assert.Empty(t, catalog.byKey(KindFile, "a.csv"))
}

func TestSync_MergeTieBreakUsesLowestID(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("new.csv", "H", 1)
	catalog := newMemCatalog()
	catalog.seed(Entry{ID: 5, DatasourceID: dsID, Kind: KindFile, Key: "z.csv", ContentHash: "H"})
	catalog.seed(Entry{ID: 2, DatasourceID: dsID, Kind: KindFile, Key: "y.csv", ContentHash: "H"})

	result := runSync(t, newTestEngine(catalog), remote)

	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Orphaned)

	moved := catalog.byKey(KindFile, "new.csv")
	require.Len(t, moved, 1)
	assert.Equal(t, uint(2), moved[0].ID)

	left := catalog.byKey(KindFile, "z.csv")
	require.Len(t, left, 1)
	assert.True(t, left[0].Orphan)
}

func TestSync_HashIsTruth(t *testing.T) {
	tests := []struct {
		name      string
		rowHash   string
		rowSize   int64
		remote    string
		identical int
		updated   int
	}{
		{"SameHashDifferentSize", "H1", 99, `"H1"`, 1, 0},
		{"SameHash", "H1", 4, "H1", 1, 0},
		{"ChangedHash", "H1", 4, "H2", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newMemRemote()
			remote.putFile("f.csv", tt.remote, 4)
			catalog := newMemCatalog()
			catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "f.csv", ContentHash: tt.rowHash, Size: tt.rowSize})

			result := runSync(t, newTestEngine(catalog), remote)
			assert.Equal(t, tt.identical, result.Identical)
			assert.Equal(t, tt.updated, result.Updated)

			row := catalog.byKey(KindFile, "f.csv")[0]
			if tt.updated == 1 {
				assert.Equal(t, "H2", row.ContentHash)
				assert.Equal(t, int64(4), row.Size)
			} else {
				assert.Equal(t, tt.rowSize, row.Size)
			}
		})
	}
}

func TestSync_OrphansCountedOnce(t *testing.T) {
	remote := newMemRemote()
	catalog := newMemCatalog()
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "gone.csv", ContentHash: "H", Orphan: true})
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindDirectory, Key: "gone/", UID: "U", Orphan: true})

	result := runSync(t, newTestEngine(catalog), remote)
	assert.Equal(t, 0, result.Orphaned)
	assert.Equal(t, 0, catalog.mutations)
}

func TestSync_OrphanReappears(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("back.csv", "H", 1)
	remote.putDir("dir")
	remote.putSidecar("dir", `{"uid":"U"}`)
	catalog := newMemCatalog()
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "back.csv", ContentHash: "H", Orphan: true})
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindDirectory, Key: "dir/", UID: "U", Orphan: true})

	result := runSync(t, newTestEngine(catalog), remote)
	assert.Equal(t, 2, result.Updated)
	assert.False(t, catalog.byKey(KindFile, "back.csv")[0].Orphan)
	assert.False(t, catalog.byKey(KindDirectory, "dir/")[0].Orphan)
}

func TestSync_UnreadableSidecarCreatesNewDirectory(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *memRemote)
	}{
		{"Malformed", func(r *memRemote) { r.putSidecar("docs", "{not json") }},
		{"MissingUID", func(r *memRemote) { r.putSidecar("docs", `{"owner":"x"}`) }},
		{"ReadFailure", func(r *memRemote) {
			r.putSidecar("docs", `{"uid":"U1"}`)
			r.readErr["docs/"+DefaultSidecarName] = errors.New("permission denied")
		}},
		{"Absent", func(r *memRemote) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newMemRemote()
			remote.putDir("docs")
			tt.setup(remote)
			catalog := newMemCatalog()
			catalog.seed(Entry{DatasourceID: dsID, Kind: KindDirectory, Key: "docs/", UID: "U1"})

			result := runSync(t, newTestEngine(catalog), remote)
			assert.Equal(t, 1, result.Created)
			assert.Equal(t, 1, result.Orphaned)
			assert.Empty(t, result.Errors)

			rows := catalog.byKey(KindDirectory, "docs/")
			require.Len(t, rows, 2)
			assert.True(t, rows[0].Orphan)
			assert.Equal(t, "uid-1", rows[1].UID)
		})
	}
}

func TestSync_NewDirectoryWritesSidecar(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("data/x.csv", "H", 1)
	catalog := newMemCatalog()

	result := runSync(t, newTestEngine(catalog), remote)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, []string{"data/" + DefaultSidecarName}, remote.writes)

	data, err := remote.Read(context.Background(), "data/"+DefaultSidecarName)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uid":"uid-1"}`, string(data))

	// The written sidecar is not catalogued as a file on the next run.
	second := runSync(t, newTestEngine(catalog), remote)
	assert.Equal(t, 2, second.Identical)
	assert.Equal(t, 0, second.Created)
}

func TestSync_SidecarWriteFailureIsWarning(t *testing.T) {
	remote := newMemRemote()
	remote.putDir("data")
	remote.writeErr = errors.New("read-only bucket")
	catalog := newMemCatalog()

	result := runSync(t, newTestEngine(catalog), remote)
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, OpWriteSidecar, result.Errors[0].Op)

	var swe *SidecarWriteError
	assert.ErrorAs(t, result.Errors[0], &swe)
	assert.Equal(t, "uid-1", swe.UID)
	assert.Len(t, catalog.byKey(KindDirectory, "data/"), 1)
}

func TestSync_PersistenceErrorsAreIsolated(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("bad.csv", "H1", 1)
	remote.putFile("good.csv", "H2", 1)
	remote.putFile("changed.csv", "H3", 1)
	catalog := newMemCatalog()
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "changed.csv", ContentHash: "OLD"})
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "stale.csv", ContentHash: "H9"})
	catalog.createErr["bad.csv"] = errors.New("duplicate entry")
	catalog.updateErr["changed.csv"] = errors.New("deadlock")
	catalog.orphanErr["stale.csv"] = errors.New("timeout")

	result := runSync(t, newTestEngine(catalog), remote)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Orphaned)
	require.Len(t, result.Errors, 3)

	ops := map[Op]string{}
	for _, e := range result.Errors {
		var pe *PersistenceError
		require.ErrorAs(t, e, &pe)
		ops[e.Op] = e.Key
	}
	assert.Equal(t, "bad.csv", ops[OpCreate])
	assert.Equal(t, "changed.csv", ops[OpUpdate])
	assert.Equal(t, "stale.csv", ops[OpMarkOrphan])
}

func TestSync_ListingErrorAbortsBeforeMutation(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("a.csv", "H1", 1)
	remote.putFile("sub/b.csv", "H2", 1)
	remote.listErr["sub"] = errors.New("access denied")
	catalog := newMemCatalog()
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "old.csv", ContentHash: "H0"})

	result, err := newTestEngine(catalog).Sync(context.Background(), Datasource{ID: dsID}, remote, Options{})
	assert.Nil(t, result)

	var le *ListingError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "sub", le.Path)
	assert.Equal(t, 0, catalog.mutations)
	assert.Empty(t, remote.writes)
}

func TestSync_MissingRoot(t *testing.T) {
	remote := newMemRemote()
	remote.missing = true

	_, err := newTestEngine(newMemCatalog()).Sync(context.Background(), Datasource{ID: dsID, Root: "nope/"}, remote, Options{})

	var le *ListingError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "nope", le.Path)
}

func TestSync_RootPrefix(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("tenant/a.csv", "H1", 1)
	remote.putFile("other/b.csv", "H2", 1)
	catalog := newMemCatalog()

	result, err := newTestEngine(catalog).Sync(context.Background(), Datasource{ID: dsID, Root: "tenant/"}, remote, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, catalog.byKey(KindFile, "tenant/a.csv"), 1)
	assert.Empty(t, catalog.byKey(KindFile, "other/b.csv"))
}

func TestSync_CatalogQueryFailure(t *testing.T) {
	remote := newMemRemote()
	catalog := newMemCatalog()
	catalog.queryErr = errors.New("connection reset")

	_, err := newTestEngine(catalog).Sync(context.Background(), Datasource{ID: dsID}, remote, Options{})
	assert.ErrorContains(t, err, "load catalog directories")
}

func TestSync_ExclusionToken(t *testing.T) {
	locker := NewMemoryLocker()
	engine := NewEngine(newMemCatalog(), zap.NewNop(), WithLocker(locker))
	remote := newMemRemote()

	release, err := locker.Acquire(context.Background(), LockKey(dsID))
	require.NoError(t, err)

	_, err = engine.Sync(context.Background(), Datasource{ID: dsID}, remote, Options{})
	assert.ErrorIs(t, err, ErrSyncInProgress)

	release()
	_, err = engine.Sync(context.Background(), Datasource{ID: dsID}, remote, Options{})
	assert.NoError(t, err)
	assert.False(t, locker.Held(LockKey(dsID)), "token released after success")

	remote.listErr[""] = errors.New("boom")
	_, err = engine.Sync(context.Background(), Datasource{ID: dsID}, remote, Options{})
	assert.Error(t, err)
	assert.False(t, locker.Held(LockKey(dsID)), "token released after failure")
}

func TestSync_DryRun(t *testing.T) {
	remote := newMemRemote()
	remote.putFile("new.csv", "H1", 1)
	remote.putFile("moved.csv", "H2", 1)
	remote.putDir("fresh")
	catalog := newMemCatalog()
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "old.csv", ContentHash: "H2"})
	catalog.seed(Entry{DatasourceID: dsID, Kind: KindFile, Key: "gone.csv", ContentHash: "H3"})

	result, err := newTestEngine(catalog).Sync(context.Background(), Datasource{ID: dsID}, remote, Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Orphaned)
	assert.Equal(t, 0, catalog.mutations)
	assert.Empty(t, remote.writes)

	summary := PlanSummary(result.Actions)
	assert.Equal(t, 2, summary[ActionCreate])
	assert.Equal(t, 1, summary[ActionMerge])
	assert.Equal(t, 1, summary[ActionOrphan])
	assert.Equal(t, 1, summary[ActionWriteSidecar])
}
