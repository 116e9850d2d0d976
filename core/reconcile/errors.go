package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Remote when the requested path does not exist.
	ErrNotFound = errors.New("remote path not found")

	// ErrSyncInProgress is returned when another sync holds the datasource.
	ErrSyncInProgress = errors.New("sync already in progress for datasource")

	// ErrStreamConsumed is returned when a listing stream is read a second time.
	ErrStreamConsumed = errors.New("listing stream already consumed")
)

// ListingError reports a remote listing failure. It aborts the sync.
type ListingError struct {
	Path string
	Err  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list %q: %v", e.Path, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

// MetadataParseError reports a sidecar that exists but carries no usable uid.
type MetadataParseError struct {
	Path string
	Err  error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("parse sidecar %q: %v", e.Path, e.Err)
}

func (e *MetadataParseError) Unwrap() error { return e.Err }

// SidecarWriteError reports a failure to persist a freshly assigned uid.
type SidecarWriteError struct {
	Path string
	UID  string
	Err  error
}

func (e *SidecarWriteError) Error() string {
	return fmt.Sprintf("write sidecar %q: %v", e.Path, e.Err)
}

func (e *SidecarWriteError) Unwrap() error { return e.Err }

// PersistenceError reports a catalog mutation rejected by the store.
type PersistenceError struct {
	Op  Op
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("catalog %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
