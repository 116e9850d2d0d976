package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Engine runs the directory and file reconcilers for one datasource at a time.
type Engine struct {
	catalog     Catalog
	locker      Locker
	logger      *zap.Logger
	sidecarName string
	newUID      func() string
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) EngineOption {
	return func(e *Engine) { e.locker = l }
}

// WithSidecarName sets the reserved sidecar file name.
func WithSidecarName(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.sidecarName = name
		}
	}
}

// WithUIDGenerator overrides the uid source for new directories.
func WithUIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newUID = fn }
}

// NewEngine creates an engine over the given catalog.
func NewEngine(catalog Catalog, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		catalog:     catalog,
		locker:      NewMemoryLocker(),
		logger:      logger,
		sidecarName: DefaultSidecarName,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LockKey is the exclusion token name of a datasource.
func LockKey(datasourceID uint) string {
	return fmt.Sprintf("datasource:%d", datasourceID)
}

// Sync reconciles the catalog of ds against remote.
//
// The exclusion token for ds is held for the whole run. The listing is
// drained completely before the catalog is touched, so a ListingError
// leaves the catalog unchanged and no result is returned. Per-entity
// failures are collected in the result instead of aborting the run.
func (e *Engine) Sync(ctx context.Context, ds Datasource, remote Remote, opts Options) (*SyncResult, error) {
	start := time.Now()
	log := e.logger.With(zap.Uint("datasource", ds.ID), zap.String("name", ds.Name))

	release, err := e.locker.Acquire(ctx, LockKey(ds.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	root := strings.TrimSuffix(ds.Root, "/")
	ok, err := remote.Exists(ctx, root)
	if err != nil {
		return nil, &ListingError{Path: root, Err: err}
	}
	if !ok {
		return nil, &ListingError{Path: root, Err: ErrNotFound}
	}

	entries, err := NewLister(remote, e.sidecarName).Stream(ctx, root).Collect()
	if err != nil {
		return nil, err
	}
	log.Debug("Remote listing drained",
		zap.Int("entries", len(entries)),
		zap.Duration("duration", time.Since(start)))

	catalog := e.catalog
	var planner *planningCatalog
	if opts.DryRun {
		planner = newPlanningCatalog(e.catalog)
		catalog = planner
	}

	identity := NewIdentityResolver(remote, e.sidecarName, log)
	if e.newUID != nil {
		identity.newUID = e.newUID
	}

	result := &SyncResult{Datasource: ds.ID, DryRun: opts.DryRun}

	dirs, err := NewDirectoryReconciler(catalog, identity, log, opts.DryRun).Reconcile(ctx, ds.ID, entries)
	if err != nil {
		return nil, err
	}
	result.Merge(dirs)

	files, err := NewFileReconciler(catalog, log).Reconcile(ctx, ds.ID, entries)
	if err != nil {
		return nil, err
	}
	result.Merge(files)

	if planner != nil {
		result.Actions = append(planner.actions, result.Actions...)
	}
	result.Duration = time.Since(start)

	return result, nil
}
