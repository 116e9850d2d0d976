package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-sync/core/metrics"
	"catalog-sync/core/reconcile"
	"catalog-sync/feature/catalog/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MetadataSource lists the records of a registry resource.
type MetadataSource interface {
	Records(ctx context.Context, resource string) ([]reconcile.Record, error)
}

// Service runs syncs and maintenance for the configured datasources.
type Service struct {
	store    *Store
	remotes  RemoteFactory
	metadata MetadataSource
	engine   *reconcile.Engine
	locker   reconcile.Locker
	cfg      Config
	logger   *zap.Logger
	group    singleflight.Group
	now      func() time.Time

	engineOpts []reconcile.EngineOption
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetadataSource enables dhis2 datasources.
func WithMetadataSource(src MetadataSource) ServiceOption {
	return func(s *Service) { s.metadata = src }
}

// WithLocker replaces the exclusion token provider.
func WithLocker(l reconcile.Locker) ServiceOption {
	return func(s *Service) { s.locker = l }
}

// WithUIDGenerator overrides the uid source for new directories.
func WithUIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, reconcile.WithUIDGenerator(fn)) }
}

// NewService creates a service. Unless overridden, syncs are excluded both
// in-process and across processes through the sync_leases table.
func NewService(store *Store, remotes RemoteFactory, cfg Config, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   store,
		remotes: remotes,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = reconcile.ChainLocker{
			reconcile.NewMemoryLocker(),
			NewLeaseLocker(store.db, cfg.LeaseTTL(), logger),
		}
	}

	engineOpts := append([]reconcile.EngineOption{
		reconcile.WithLocker(s.locker),
		reconcile.WithSidecarName(cfg.SidecarName),
	}, s.engineOpts...)
	s.engine = reconcile.NewEngine(store, logger, engineOpts...)
	return s
}

// Store returns the underlying catalog store.
func (s *Service) Store() *Store {
	return s.store
}

// Sync reconciles one datasource. Concurrent calls for the same datasource
// and mode share a single run and its result. The run is detached from the
// caller that started it; cancelling ctx only stops this caller's wait.
func (s *Service) Sync(ctx context.Context, datasourceID uint, opts reconcile.Options) (*reconcile.SyncResult, error) {
	key := fmt.Sprintf("%d:%t", datasourceID, opts.DryRun)
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.sync(runCtx, datasourceID, opts)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Joined running sync", zap.Uint("datasource", datasourceID))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*reconcile.SyncResult), nil
	}
}

func (s *Service) sync(ctx context.Context, datasourceID uint, opts reconcile.Options) (*reconcile.SyncResult, error) {
	ds, err := s.store.GetDatasource(ctx, datasourceID)
	if err != nil {
		return nil, err
	}

	if timeout := s.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := s.logger.With(
		zap.Uint("datasource", ds.ID),
		zap.String("name", ds.Name),
		zap.String("backend", string(ds.Backend)),
		zap.Bool("dry_run", opts.DryRun),
	)
	log.Info("Sync started")

	start := s.now()
	var result *reconcile.SyncResult
	if ds.Backend == models.BackendDHIS2 {
		result, err = s.syncMetadata(ctx, ds, opts, log)
	} else {
		result, err = s.syncTree(ctx, ds, opts)
	}
	duration := s.now().Sub(start)

	if errors.Is(err, reconcile.ErrSyncInProgress) {
		metrics.RecordSyncSkipped(string(ds.Backend))
		log.Info("Sync skipped, another run holds the datasource")
		return nil, err
	}
	metrics.RecordSync(string(ds.Backend), ds.ID, result, duration, err)
	if err != nil {
		log.Error("Sync failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, err
	}

	if !opts.DryRun {
		if err := s.store.TouchLastSynced(ctx, ds.ID, s.now()); err != nil {
			log.Warn("Failed to stamp last sync time", zap.Error(err))
		}
	}

	log.Info("Sync finished",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("identical", result.Identical),
		zap.Int("merged", result.Merged),
		zap.Int("orphaned", result.Orphaned),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", duration))
	for _, e := range result.Errors {
		log.Warn("Entity not synchronized", zap.String("key", e.Key), zap.String("op", string(e.Op)), zap.String("error", e.Message))
	}
	return result, nil
}

func (s *Service) syncTree(ctx context.Context, ds *models.Datasource, opts reconcile.Options) (*reconcile.SyncResult, error) {
	remote, err := s.remotes.Remote(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("build remote: %w", err)
	}
	return s.engine.Sync(ctx, ds.Ref(), remote, opts)
}

func (s *Service) syncMetadata(ctx context.Context, ds *models.Datasource, opts reconcile.Options, log *zap.Logger) (*reconcile.SyncResult, error) {
	if s.metadata == nil {
		return nil, fmt.Errorf("no metadata registry configured for datasource %s", ds.Name)
	}

	release, err := s.locker.Acquire(ctx, reconcile.LockKey(ds.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	start := s.now()
	incoming, err := s.metadata.Records(ctx, ds.Location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ds.Location, err)
	}

	var store reconcile.RecordStore = s.store
	var planner *recordPlanner
	if opts.DryRun {
		planner = &recordPlanner{RecordStore: s.store}
		store = planner
	}

	result, absent, err := reconcile.NewMetadataReconciler(store, log).Reconcile(ctx, ds.ID, incoming)
	if err != nil {
		return nil, err
	}
	result.DryRun = opts.DryRun
	if planner != nil {
		result.Actions = planner.actions
	}
	result.Duration = s.now().Sub(start)

	if len(absent) > 0 {
		ids := make([]string, len(absent))
		for i, r := range absent {
			ids[i] = r.ExternalID
		}
		log.Info("Records no longer listed by the registry", zap.Strings("external_ids", ids))
	}
	return result, nil
}

// Cleanup removes duplicate catalog rows of a datasource under its exclusion token.
func (s *Service) Cleanup(ctx context.Context, datasourceID uint) (int64, error) {
	if _, err := s.store.GetDatasource(ctx, datasourceID); err != nil {
		return 0, err
	}

	release, err := s.locker.Acquire(ctx, reconcile.LockKey(datasourceID))
	if err != nil {
		return 0, err
	}
	defer release()

	removed, err := s.store.CleanupDuplicates(ctx, datasourceID)
	if err != nil {
		return 0, err
	}
	metrics.RecordDuplicatesRemoved(removed)
	s.logger.Info("Duplicate entries removed", zap.Uint("datasource", datasourceID), zap.Int64("removed", removed))
	return removed, nil
}

// recordPlanner records metadata mutations instead of applying them.
type recordPlanner struct {
	reconcile.RecordStore
	actions []reconcile.Action
}

func (p *recordPlanner) CreateRecord(_ context.Context, record *reconcile.Record) error {
	p.actions = append(p.actions, reconcile.Action{Type: reconcile.ActionCreate, Key: record.ExternalID, Reason: "new registry record"})
	return nil
}

func (p *recordPlanner) UpdateRecord(_ context.Context, record *reconcile.Record, _ reconcile.Fields) error {
	p.actions = append(p.actions, reconcile.Action{Type: reconcile.ActionUpdate, Key: record.ExternalID, Reason: "fingerprint changed"})
	return nil
}
