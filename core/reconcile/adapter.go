package reconcile

import "context"

// Remote is the external hierarchical store a datasource mirrors.
// Implementations live next to their client (core/storage, core/storage/awss3, core/storage/localfs).
type Remote interface {
	// List returns the immediate children of path ("" is the store root).
	// The channel is closed when the listing ends; a failure is delivered as an entry with Err set.
	// Implementations must stop sending once ctx is done.
	List(ctx context.Context, path string) <-chan RemoteEntry

	// Read returns the content at path, or ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path, replacing any previous content.
	Write(ctx context.Context, path string, data []byte) error

	// Exists reports whether path names an object or a non-empty directory.
	// The empty path checks the store itself (bucket or base directory).
	Exists(ctx context.Context, path string) (bool, error)
}

// Catalog is the narrow read/write contract the reconcilers use against the catalog store.
type Catalog interface {
	// Query returns every row of the given kind for the datasource, orphans included.
	Query(ctx context.Context, datasourceID uint, kind Kind) ([]Entry, error)

	// Create persists a new row and fills its ID and timestamps.
	Create(ctx context.Context, entry *Entry) error

	// Update applies fields to the row identified by entry.ID.
	Update(ctx context.Context, entry *Entry, fields Fields) error

	// MarkOrphan flags the row as no longer observed on the remote.
	MarkOrphan(ctx context.Context, entry *Entry) error
}

// Locker hands out the per-datasource exclusion token held for the duration of a sync.
type Locker interface {
	// Acquire returns ErrSyncInProgress when the key is already held.
	// The returned release func must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
