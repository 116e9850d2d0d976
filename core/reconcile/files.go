package reconcile

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// FileReconciler diffs remote files against catalog files. The key is the
// join key; the content hash detects files that moved to a new key.
type FileReconciler struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewFileReconciler creates a file reconciler.
func NewFileReconciler(catalog Catalog, logger *zap.Logger) *FileReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileReconciler{catalog: catalog, logger: logger}
}

// Reconcile classifies every remote file. remote must hold the fully drained listing.
//
// A new key whose hash matches an unmatched catalog row is a move: the
// surviving row is re-keyed (keeping its id and metadata) and counted as merged.
// When several unmatched rows share that hash, the one with the lowest id is used.
func (r *FileReconciler) Reconcile(ctx context.Context, datasourceID uint, remote []RemoteEntry) (*SyncResult, error) {
	rows, err := r.catalog.Query(ctx, datasourceID, KindFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog files: %w", err)
	}

	byKey, unmatched := indexByKey(rows)
	result := &SyncResult{Datasource: datasourceID}

	var pending []RemoteEntry
	for _, entry := range remote {
		if entry.Kind != KindFile {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, ok := byKey[entry.Key]
		if !ok {
			pending = append(pending, entry)
			continue
		}
		delete(byKey, entry.Key)

		fields := Fields{}
		if row.ContentHash != entry.ContentHash {
			fields[FieldContentHash] = entry.ContentHash
			fields[FieldSize] = entry.Size
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
		row.ContentHash = entry.ContentHash
		row.Size = entry.Size
		row.Orphan = false
		result.Updated++
	}

	for _, row := range byKey {
		unmatched = append(unmatched, row)
	}
	sort.Slice(unmatched, func(i, j int) bool { return unmatched[i].ID < unmatched[j].ID })

	candidates := make(map[string][]*Entry)
	for _, row := range unmatched {
		if row.ContentHash == "" {
			continue
		}
		candidates[row.ContentHash] = append(candidates[row.ContentHash], row)
	}

	consumed := make(map[uint]struct{})
	for _, entry := range pending {
		if queue := candidates[entry.ContentHash]; entry.ContentHash != "" && len(queue) > 0 {
			row := queue[0]
			candidates[entry.ContentHash] = queue[1:]
			consumed[row.ID] = struct{}{}
			r.merge(ctx, row, entry, result)
			continue
		}

		row := &Entry{
			DatasourceID: datasourceID,
			Key:          entry.Key,
			Kind:         KindFile,
			ContentHash:  entry.ContentHash,
			Size:         entry.Size,
		}
		if err := r.catalog.Create(ctx, row); err != nil {
			result.addError(entry.Key, OpCreate, &PersistenceError{Op: OpCreate, Key: entry.Key, Err: err})
			continue
		}
		result.Created++
	}

	for _, row := range unmatched {
		if _, ok := consumed[row.ID]; ok || row.Orphan {
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

func (r *FileReconciler) merge(ctx context.Context, row *Entry, entry RemoteEntry, result *SyncResult) {
	fields := Fields{
		FieldKey:         entry.Key,
		FieldContentHash: entry.ContentHash,
		FieldSize:        entry.Size,
		FieldOrphan:      false,
	}
	if err := r.catalog.Update(ctx, row, fields); err != nil {
		result.addError(entry.Key, OpMerge, &PersistenceError{Op: OpMerge, Key: entry.Key, Err: err})
		return
	}
	r.logger.Debug("File moved",
		zap.Uint("id", row.ID),
		zap.String("from", row.Key),
		zap.String("to", entry.Key))
	row.Key = entry.Key
	row.Size = entry.Size
	row.Orphan = false
	result.Merged++
}

// indexByKey maps file rows by key. On duplicate keys a live row beats an
// orphaned one, then the lowest id wins; the losers are returned as unmatched.
func indexByKey(rows []Entry) (map[string]*Entry, []*Entry) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	byKey := make(map[string]*Entry, len(rows))
	var unmatched []*Entry
	for i := range rows {
		row := &rows[i]
		current, dup := byKey[row.Key]
		switch {
		case !dup:
			byKey[row.Key] = row
		case current.Orphan && !row.Orphan:
			byKey[row.Key] = row
			unmatched = append(unmatched, current)
		default:
			unmatched = append(unmatched, row)
		}
	}
	return byKey, unmatched
}
