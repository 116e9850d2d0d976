package reconcile

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Record is a flat item of an external metadata registry.
type Record struct {
	ID           uint   `json:"id"`
	DatasourceID uint   `json:"datasource_id"`
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	Code         string `json:"code,omitempty"`
	// Fingerprint is a digest of the record content used to detect drift.
	Fingerprint string `json:"fingerprint"`
}

// RecordStore is the catalog contract for metadata records.
type RecordStore interface {
	QueryRecords(ctx context.Context, datasourceID uint) ([]Record, error)
	CreateRecord(ctx context.Context, record *Record) error
	UpdateRecord(ctx context.Context, record *Record, fields Fields) error
}

// MetadataReconciler classifies registry records joined on their external id.
// It has no move detection and never orphans: records missing from the
// registry are returned to the caller untouched.
type MetadataReconciler struct {
	store  RecordStore
	logger *zap.Logger
}

// NewMetadataReconciler creates a metadata reconciler.
func NewMetadataReconciler(store RecordStore, logger *zap.Logger) *MetadataReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataReconciler{store: store, logger: logger}
}

// Reconcile applies incoming to the catalog and returns the counters together
// with the existing records the registry no longer lists.
func (r *MetadataReconciler) Reconcile(ctx context.Context, datasourceID uint, incoming []Record) (*SyncResult, []Record, error) {
	existing, err := r.store.QueryRecords(ctx, datasourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog records: %w", err)
	}

	sort.Slice(existing, func(i, j int) bool { return existing[i].ID < existing[j].ID })
	byID := make(map[string]*Record, len(existing))
	for i := range existing {
		if _, dup := byID[existing[i].ExternalID]; !dup {
			byID[existing[i].ExternalID] = &existing[i]
		}
	}

	result := &SyncResult{Datasource: datasourceID}
	seen := make(map[string]struct{}, len(incoming))

	for _, rec := range incoming {
		if _, dup := seen[rec.ExternalID]; dup {
			r.logger.Debug("Duplicate registry record skipped", zap.String("external_id", rec.ExternalID))
			continue
		}
		seen[rec.ExternalID] = struct{}{}

		row, ok := byID[rec.ExternalID]
		if !ok {
			rec.ID = 0
			rec.DatasourceID = datasourceID
			if err := r.store.CreateRecord(ctx, &rec); err != nil {
				result.addError(rec.ExternalID, OpCreate, &PersistenceError{Op: OpCreate, Key: rec.ExternalID, Err: err})
				continue
			}
			result.Created++
			continue
		}
		delete(byID, rec.ExternalID)

		if row.Fingerprint == rec.Fingerprint {
			result.Identical++
			continue
		}

		fields := Fields{
			FieldName:        rec.Name,
			FieldCode:        rec.Code,
			FieldFingerprint: rec.Fingerprint,
		}
		if err := r.store.UpdateRecord(ctx, row, fields); err != nil {
			result.addError(rec.ExternalID, OpUpdate, &PersistenceError{Op: OpUpdate, Key: rec.ExternalID, Err: err})
			continue
		}
		result.Updated++
	}

	absent := make([]Record, 0, len(byID))
	for _, row := range byID {
		absent = append(absent, *row)
	}
	sort.Slice(absent, func(i, j int) bool { return absent[i].ID < absent[j].ID })

	return result, absent, nil
}
