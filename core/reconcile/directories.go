package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DirectoryReconciler diffs remote directories against catalog directories,
// joining on the uid recovered from each directory's sidecar.
type DirectoryReconciler struct {
	catalog  Catalog
	identity *IdentityResolver
	logger   *zap.Logger
	dryRun   bool
}

// NewDirectoryReconciler creates a directory reconciler.
func NewDirectoryReconciler(catalog Catalog, identity *IdentityResolver, logger *zap.Logger, dryRun bool) *DirectoryReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryReconciler{catalog: catalog, identity: identity, logger: logger, dryRun: dryRun}
}

// Reconcile classifies every remote directory and orphans catalog directories
// that were not observed. remote must hold the fully drained listing.
func (r *DirectoryReconciler) Reconcile(ctx context.Context, datasourceID uint, remote []RemoteEntry) (*SyncResult, error) {
	rows, err := r.catalog.Query(ctx, datasourceID, KindDirectory)
	if err != nil {
		return nil, fmt.Errorf("load catalog directories: %w", err)
	}

	byUID, unmatched := indexByUID(rows)
	result := &SyncResult{Datasource: datasourceID}

	for _, entry := range remote {
		if entry.Kind != KindDirectory {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		uid, ok := r.identity.Resolve(ctx, entry.Key)
		var row *Entry
		if ok {
			row = byUID[uid]
		}
		if row == nil {
			r.create(ctx, datasourceID, entry, result)
			continue
		}
		delete(byUID, uid)

		fields := Fields{}
		if !sameDirKey(row.Key, entry.Key) {
			fields[FieldKey] = entry.Key
		}
		if row.Orphan {
			fields[FieldOrphan] = false
		}
		if len(fields) == 0 {
			result.Identical++
			continue
		}

		if err := r.catalog.Update(ctx, row, fields); err != nil {
			result.addError(entry.Key, OpUpdate, &PersistenceError{Op: OpUpdate, Key: entry.Key, Err: err})
			continue
		}
		r.logger.Debug("Directory updated",
			zap.String("uid", uid),
			zap.String("from", row.Key),
			zap.String("to", entry.Key))
		row.Key = entry.Key
		row.Orphan = false
		result.Updated++
	}

	for _, row := range byUID {
		unmatched = append(unmatched, row)
	}
	sort.Slice(unmatched, func(i, j int) bool { return unmatched[i].ID < unmatched[j].ID })

	for _, row := range unmatched {
		if row.Orphan {
			continue
		}
		if err := r.catalog.MarkOrphan(ctx, row); err != nil {
			result.addError(row.Key, OpMarkOrphan, &PersistenceError{Op: OpMarkOrphan, Key: row.Key, Err: err})
			continue
		}
		row.Orphan = true
		result.Orphaned++
	}

	return result, nil
}

func (r *DirectoryReconciler) create(ctx context.Context, datasourceID uint, entry RemoteEntry, result *SyncResult) {
	row := &Entry{
		DatasourceID: datasourceID,
		Key:          entry.Key,
		Kind:         KindDirectory,
		UID:          r.identity.NewUID(),
	}
	if err := r.catalog.Create(ctx, row); err != nil {
		result.addError(entry.Key, OpCreate, &PersistenceError{Op: OpCreate, Key: entry.Key, Err: err})
		return
	}
	result.Created++

	if r.dryRun {
		result.Actions = append(result.Actions, Action{
			Type:   ActionWriteSidecar,
			Kind:   KindDirectory,
			Key:    r.identity.SidecarPath(entry.Key),
			Reason: "new directory identity",
		})
		return
	}

	if err := r.identity.Write(ctx, entry.Key, row.UID); err != nil {
		r.logger.Warn("Failed to write directory sidecar, identity will not survive a rename",
			zap.String("key", entry.Key),
			zap.Error(err))
		result.addError(entry.Key, OpWriteSidecar, err)
	}
}

// indexByUID maps directory rows by uid. When several rows share a uid the
// lowest id wins and the others are returned as unmatched, as are rows
// without a uid.
func indexByUID(rows []Entry) (map[string]*Entry, []*Entry) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	byUID := make(map[string]*Entry, len(rows))
	var unmatched []*Entry
	for i := range rows {
		row := &rows[i]
		if row.UID == "" {
			unmatched = append(unmatched, row)
			continue
		}
		if _, dup := byUID[row.UID]; dup {
			unmatched = append(unmatched, row)
			continue
		}
		byUID[row.UID] = row
	}
	return byUID, unmatched
}

// sameDirKey compares directory keys regardless of a trailing separator.
func sameDirKey(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
