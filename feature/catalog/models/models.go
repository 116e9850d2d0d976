package models

import (
	"fmt"
	"time"

	"catalog-sync/core/reconcile"
)

// Backend names the kind of remote a datasource mirrors.
type Backend string

const (
	BackendMinio Backend = "minio"
	BackendS3    Backend = "s3"
	BackendLocal Backend = "local"
	BackendDHIS2 Backend = "dhis2"
)

// Valid reports whether b is a known backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendMinio, BackendS3, BackendLocal, BackendDHIS2:
		return true
	default:
		return false
	}
}

// Datasource is a configured remote whose catalog is kept in sync.
type Datasource struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;type:varchar(191);uniqueIndex;not null" json:"name"`
	// Backend selects the remote implementation.
	Backend Backend `gorm:"column:backend;type:varchar(16);not null" json:"backend"`
	// Location is the bucket, base directory or registry resource.
	Location string `gorm:"column:location;type:varchar(512)" json:"location"`
	// Prefix is the root path inside Location.
	Prefix       string     `gorm:"column:prefix;type:varchar(768)" json:"prefix"`
	AutoSync     bool       `gorm:"column:auto_sync;default:false" json:"auto_sync"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Datasource) TableName() string {
	return "datasources"
}

// Validate checks the fields required to build a remote.
func (d *Datasource) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("datasource name is required")
	}
	if !d.Backend.Valid() {
		return fmt.Errorf("unknown backend %q", d.Backend)
	}
	if d.Backend == BackendDHIS2 && d.Location == "" {
		return fmt.Errorf("dhis2 datasource %s needs a metadata resource as location", d.Name)
	}
	return nil
}

// Ref returns the engine view of the datasource.
func (d *Datasource) Ref() reconcile.Datasource {
	return reconcile.Datasource{ID: d.ID, Name: d.Name, Root: d.Prefix}
}

// CatalogEntry is one mirrored file or directory.
type CatalogEntry struct {
	ID           uint           `gorm:"primaryKey;column:id"`
	DatasourceID uint           `gorm:"column:datasource_id;not null;index:idx_catalog_entries_ds_kind,priority:1"`
	Key          string         `gorm:"column:entry_key;type:varchar(768);not null"`
	Kind         reconcile.Kind `gorm:"column:kind;type:varchar(16);not null;index:idx_catalog_entries_ds_kind,priority:2"`
	ContentHash  string         `gorm:"column:content_hash;type:varchar(128)"`
	UID          string         `gorm:"column:uid;type:varchar(64);index"`
	Size         int64          `gorm:"column:size;default:0"`
	Orphan       bool           `gorm:"column:orphan;not null;default:false"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

// ToEntry converts the row for the reconcilers.
func (c CatalogEntry) ToEntry() reconcile.Entry {
	return reconcile.Entry{
		ID:           c.ID,
		DatasourceID: c.DatasourceID,
		Key:          c.Key,
		Kind:         c.Kind,
		ContentHash:  c.ContentHash,
		UID:          c.UID,
		Size:         c.Size,
		Orphan:       c.Orphan,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// NewCatalogEntry converts a reconciler entry into a row.
func NewCatalogEntry(e reconcile.Entry) CatalogEntry {
	return CatalogEntry{
		ID:           e.ID,
		DatasourceID: e.DatasourceID,
		Key:          e.Key,
		Kind:         e.Kind,
		ContentHash:  e.ContentHash,
		UID:          e.UID,
		Size:         e.Size,
		Orphan:       e.Orphan,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// MetadataRecord is one item mirrored from a metadata registry.
type MetadataRecord struct {
	ID           uint      `gorm:"primaryKey;column:id"`
	DatasourceID uint      `gorm:"column:datasource_id;not null;index"`
	ExternalID   string    `gorm:"column:external_id;type:varchar(64);not null"`
	Name         string    `gorm:"column:name;type:varchar(255)"`
	Code         string    `gorm:"column:code;type:varchar(128)"`
	Fingerprint  string    `gorm:"column:fingerprint;type:varchar(64)"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (MetadataRecord) TableName() string {
	return "metadata_records"
}

// ToRecord converts the row for the metadata reconciler.
func (m MetadataRecord) ToRecord() reconcile.Record {
	return reconcile.Record{
		ID:           m.ID,
		DatasourceID: m.DatasourceID,
		ExternalID:   m.ExternalID,
		Name:         m.Name,
		Code:         m.Code,
		Fingerprint:  m.Fingerprint,
	}
}

// SyncLease is the cross-process exclusion row of a running sync.
type SyncLease struct {
	Key       string    `gorm:"primaryKey;column:lease_key;type:varchar(191)"`
	Holder    string    `gorm:"column:holder;type:varchar(64);not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (SyncLease) TableName() string {
	return "sync_leases"
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&Datasource{}, &CatalogEntry{}, &MetadataRecord{}, &SyncLease{}}
}
