package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-sync/core/reconcile"
	"catalog-sync/feature/catalog/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDatasourceNotFound is returned for unknown datasource ids.
var ErrDatasourceNotFound = errors.New("datasource not found")

// entryColumns maps reconcile field names to catalog_entries columns.
var entryColumns = map[string]string{
	reconcile.FieldKey:         "entry_key",
	reconcile.FieldContentHash: "content_hash",
	reconcile.FieldSize:        "size",
	reconcile.FieldOrphan:      "orphan",
}

// recordColumns maps reconcile field names to metadata_records columns.
var recordColumns = map[string]string{
	reconcile.FieldName:        "name",
	reconcile.FieldCode:        "code",
	reconcile.FieldFingerprint: "fingerprint",
}

// Store is the gorm-backed catalog. It implements reconcile.Catalog and
// reconcile.RecordStore.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the catalog tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate catalog schema: %w", err)
	}
	return nil
}

// Query implements reconcile.Catalog.
func (s *Store) Query(ctx context.Context, datasourceID uint, kind reconcile.Kind) ([]reconcile.Entry, error) {
	var rows []models.CatalogEntry
	err := s.db.WithContext(ctx).
		Where("datasource_id = ? AND kind = ?", datasourceID, kind).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query %s entries: %w", kind, err)
	}

	entries := make([]reconcile.Entry, len(rows))
	for i, row := range rows {
		entries[i] = row.ToEntry()
	}
	return entries, nil
}

// Create implements reconcile.Catalog.
func (s *Store) Create(ctx context.Context, entry *reconcile.Entry) error {
	row := models.NewCatalogEntry(*entry)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	*entry = row.ToEntry()
	return nil
}

// Update implements reconcile.Catalog.
func (s *Store) Update(ctx context.Context, entry *reconcile.Entry, fields reconcile.Fields) error {
	updates, err := columns(fields, entryColumns)
	if err != nil {
		return err
	}
	return s.updateByID(ctx, &models.CatalogEntry{}, entry.ID, updates)
}

// MarkOrphan implements reconcile.Catalog.
func (s *Store) MarkOrphan(ctx context.Context, entry *reconcile.Entry) error {
	return s.updateByID(ctx, &models.CatalogEntry{}, entry.ID, map[string]any{"orphan": true})
}

// QueryRecords implements reconcile.RecordStore.
func (s *Store) QueryRecords(ctx context.Context, datasourceID uint) ([]reconcile.Record, error) {
	rows, err := s.ListRecords(ctx, datasourceID)
	if err != nil {
		return nil, err
	}
	records := make([]reconcile.Record, len(rows))
	for i, row := range rows {
		records[i] = row.ToRecord()
	}
	return records, nil
}

// CreateRecord implements reconcile.RecordStore.
func (s *Store) CreateRecord(ctx context.Context, record *reconcile.Record) error {
	row := models.MetadataRecord{
		DatasourceID: record.DatasourceID,
		ExternalID:   record.ExternalID,
		Name:         record.Name,
		Code:         record.Code,
		Fingerprint:  record.Fingerprint,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	record.ID = row.ID
	return nil
}

// UpdateRecord implements reconcile.RecordStore.
func (s *Store) UpdateRecord(ctx context.Context, record *reconcile.Record, fields reconcile.Fields) error {
	updates, err := columns(fields, recordColumns)
	if err != nil {
		return err
	}
	return s.updateByID(ctx, &models.MetadataRecord{}, record.ID, updates)
}

// ListRecords returns the metadata records of a datasource ordered by id.
func (s *Store) ListRecords(ctx context.Context, datasourceID uint) ([]models.MetadataRecord, error) {
	var rows []models.MetadataRecord
	err := s.db.WithContext(ctx).Where("datasource_id = ?", datasourceID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query metadata records: %w", err)
	}
	return rows, nil
}

func (s *Store) updateByID(ctx context.Context, model any, id uint, updates map[string]any) error {
	// RowsAffected is not checked: MySQL reports 0 for rows whose values did not change.
	return s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(updates).Error
}

func columns(fields reconcile.Fields, mapping map[string]string) (map[string]any, error) {
	updates := make(map[string]any, len(fields))
	for name, value := range fields {
		col, ok := mapping[name]
		if !ok {
			return nil, fmt.Errorf("unsupported field %q", name)
		}
		updates[col] = value
	}
	return updates, nil
}

// EntryFilter narrows ListEntries. Nil fields match everything.
type EntryFilter struct {
	Kind   *reconcile.Kind
	Orphan *bool
}

// ListEntries returns the catalog rows of a datasource ordered by key.
func (s *Store) ListEntries(ctx context.Context, datasourceID uint, filter EntryFilter) ([]models.CatalogEntry, error) {
	q := s.db.WithContext(ctx).Where("datasource_id = ?", datasourceID)
	if filter.Kind != nil {
		q = q.Where("kind = ?", *filter.Kind)
	}
	if filter.Orphan != nil {
		q = q.Where("orphan = ?", *filter.Orphan)
	}

	var rows []models.CatalogEntry
	if err := q.Order("entry_key").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return rows, nil
}

// CleanupDuplicates deletes every non-orphaned row sharing (key, kind) with
// an older row of the same datasource. It returns the number of rows removed.
func (s *Store) CleanupDuplicates(ctx context.Context, datasourceID uint) (int64, error) {
	// MySQL refuses a subquery on the table being deleted from unless it is materialized.
	res := s.db.WithContext(ctx).Exec(
		"DELETE FROM catalog_entries WHERE datasource_id = ? AND orphan = ? AND id NOT IN ("+
			"SELECT keep_id FROM (SELECT MIN(id) AS keep_id FROM catalog_entries "+
			"WHERE datasource_id = ? AND orphan = ? GROUP BY entry_key, kind) AS keepers)",
		datasourceID, false, datasourceID, false,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup duplicates: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountDuplicates returns the number of rows CleanupDuplicates would remove.
func (s *Store) CountDuplicates(ctx context.Context, datasourceID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Raw(
		"SELECT COALESCE(SUM(c - 1), 0) FROM (SELECT COUNT(*) AS c FROM catalog_entries "+
			"WHERE datasource_id = ? AND orphan = ? GROUP BY entry_key, kind HAVING COUNT(*) > 1) AS dups",
		datasourceID, false,
	).Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count duplicates: %w", err)
	}
	return n, nil
}

// CreateDatasource validates and inserts a datasource.
func (s *Store) CreateDatasource(ctx context.Context, ds *models.Datasource) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(ds).Error; err != nil {
		return fmt.Errorf("create datasource %s: %w", ds.Name, err)
	}
	return nil
}

// UpsertDatasource inserts ds or updates the datasource with the same name.
func (s *Store) UpsertDatasource(ctx context.Context, ds *models.Datasource) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"backend", "location", "prefix", "auto_sync", "updated_at"}),
	}).Create(ds).Error
	if err != nil {
		return fmt.Errorf("upsert datasource %s: %w", ds.Name, err)
	}
	// The insert id is not reliable when the row was updated.
	var stored models.Datasource
	if err := s.db.WithContext(ctx).Where("name = ?", ds.Name).First(&stored).Error; err != nil {
		return fmt.Errorf("reload datasource %s: %w", ds.Name, err)
	}
	*ds = stored
	return nil
}

// ListDatasources returns every datasource ordered by id.
func (s *Store) ListDatasources(ctx context.Context) ([]models.Datasource, error) {
	var rows []models.Datasource
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list datasources: %w", err)
	}
	return rows, nil
}

// GetDatasource loads one datasource.
func (s *Store) GetDatasource(ctx context.Context, id uint) (*models.Datasource, error) {
	var ds models.Datasource
	err := s.db.WithContext(ctx).First(&ds, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDatasourceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get datasource %d: %w", id, err)
	}
	return &ds, nil
}

// TouchLastSynced stamps the completion time of a successful sync.
func (s *Store) TouchLastSynced(ctx context.Context, id uint, at time.Time) error {
	return s.updateByID(ctx, &models.Datasource{}, id, map[string]any{"last_synced_at": at})
}
