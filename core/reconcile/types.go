package reconcile

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of catalog entry kinds.
type Kind uint8

const (
	// KindFile is a leaf object identified by its key and content hash.
	KindFile Kind = iota + 1
	// KindDirectory is a container identified by the UID in its sidecar.
	KindDirectory
)

// String returns the storage representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind converts a stored or user supplied value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file":
		return KindFile, nil
	case "directory", "dir":
		return KindDirectory, nil
	default:
		return 0, fmt.Errorf("unknown entry kind %q", s)
	}
}

// Value implements driver.Valuer so gorm stores the kind as text.
func (k Kind) Value() (driver.Value, error) {
	switch k {
	case KindFile, KindDirectory:
		return k.String(), nil
	default:
		return nil, fmt.Errorf("invalid entry kind %d", uint8(k))
	}
}

// Scan implements sql.Scanner.
func (k *Kind) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Kind", src)
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalText renders the kind in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the kind from JSON or TOML payloads.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// RemoteEntry is one item observed in a remote listing.
// It mirrors minio.ObjectInfo: a failed listing is delivered as an entry with Err set.
type RemoteEntry struct {
	// Key is the full path of the item. Directory keys end with "/".
	Key string `json:"key"`

	// Kind is the type of item.
	Kind Kind `json:"kind"`

	// ContentHash is the backend fingerprint of a file's content. Empty for directories.
	ContentHash string `json:"content_hash,omitempty"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Err is set when the backend failed to produce the listing.
	Err error `json:"-"`
}

// Entry is a catalog row as seen by the reconcilers.
type Entry struct {
	ID           uint      `json:"id"`
	DatasourceID uint      `json:"datasource_id"`
	Key          string    `json:"key"`
	Kind         Kind      `json:"kind"`
	ContentHash  string    `json:"content_hash,omitempty"`
	UID          string    `json:"uid,omitempty"`
	Size         int64     `json:"size"`
	Orphan       bool      `json:"orphan"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fields is a set of column updates applied to a catalog row.
type Fields map[string]any

// Column names accepted by Catalog.Update.
const (
	FieldKey         = "key"
	FieldContentHash = "content_hash"
	FieldSize        = "size"
	FieldOrphan      = "orphan"
	FieldName        = "name"
	FieldCode        = "code"
	FieldFingerprint = "fingerprint"
)

// Datasource identifies the store being synchronized.
type Datasource struct {
	// ID is the catalog identifier of the datasource.
	ID uint

	// Name is the display name used in logs.
	Name string

	// Root is the path under which the remote is listed. Empty means the whole store.
	Root string
}

// Op names the mutation an EntityError was raised by.
type Op string

const (
	OpCreate       Op = "create"
	OpUpdate       Op = "update"
	OpMarkOrphan   Op = "mark_orphan"
	OpMerge        Op = "merge"
	OpWriteSidecar Op = "write_sidecar"
)

// EntityError is a non-fatal failure scoped to a single entry.
type EntityError struct {
	// Key is the key of the affected entry.
	Key string `json:"key"`

	// Op is the operation that failed.
	Op Op `json:"op"`

	// Message is the rendered error.
	Message string `json:"message"`

	// Err is the underlying error.
	Err error `json:"-"`
}

func (e EntityError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Message)
}

func (e EntityError) Unwrap() error {
	return e.Err
}

// SyncResult summarizes one reconciliation run.
type SyncResult struct {
	// Datasource is the identifier of the synchronized datasource.
	Datasource uint `json:"datasource"`

	// Created counts entries persisted for the first time.
	Created int `json:"created"`

	// Updated counts entries whose key, content or orphan state changed.
	Updated int `json:"updated"`

	// Identical counts entries that matched without change.
	Identical int `json:"identical"`

	// Merged counts new remote files recognized as moves of existing rows.
	Merged int `json:"merged"`

	// Orphaned counts rows newly marked as orphans by this run.
	Orphaned int `json:"orphaned"`

	// Errors lists per-entity failures. They never alter the counters above.
	Errors []EntityError `json:"errors,omitempty"`

	// Actions lists the planned mutations of a dry run.
	Actions []Action `json:"actions,omitempty"`

	// DryRun reports whether the run was computed without writes.
	DryRun bool `json:"dry_run"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}

// Total returns the number of entries classified by the run.
func (r *SyncResult) Total() int {
	return r.Created + r.Updated + r.Identical + r.Merged
}

// Merge accumulates the counters, errors and actions of other into r.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.Created += other.Created
	r.Updated += other.Updated
	r.Identical += other.Identical
	r.Merged += other.Merged
	r.Orphaned += other.Orphaned
	r.Errors = append(r.Errors, other.Errors...)
	r.Actions = append(r.Actions, other.Actions...)
}

func (r *SyncResult) addError(key string, op Op, err error) {
	r.Errors = append(r.Errors, EntityError{Key: key, Op: op, Message: err.Error(), Err: err})
}

// ActionType represents the type of a planned catalog mutation.
type ActionType string

const (
	ActionCreate       ActionType = "create"
	ActionUpdate       ActionType = "update"
	ActionMerge        ActionType = "merge"
	ActionOrphan       ActionType = "orphan"
	ActionWriteSidecar ActionType = "write_sidecar"
)

// Action represents a mutation recorded during a dry run.
type Action struct {
	// Type specifies the action.
	Type ActionType `json:"type"`

	// Kind is the entry kind the action applies to. Unset for metadata records.
	Kind Kind `json:"kind,omitempty"`

	// Key is the entry key.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason,omitempty"`
}

// Options controls a single sync run.
type Options struct {
	// DryRun computes the classification without writing to the catalog or the remote.
	DryRun bool
}
