package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"catalog-sync/core/reconcile"
	"catalog-sync/feature/catalog/models"

	"go.uber.org/zap"
)

// AutoSyncer is what the scheduler needs from the service.
type AutoSyncer interface {
	AutoSyncDatasources(ctx context.Context) ([]models.Datasource, error)
	Sync(ctx context.Context, datasourceID uint, opts reconcile.Options) (*reconcile.SyncResult, error)
}

// AutoSyncDatasources returns the datasources flagged for scheduled syncs.
func (s *Service) AutoSyncDatasources(ctx context.Context) ([]models.Datasource, error) {
	all, err := s.store.ListDatasources(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Datasource
	for _, ds := range all {
		if ds.AutoSync {
			out = append(out, ds)
		}
	}
	return out, nil
}

// Scheduler periodically syncs every auto-sync datasource, one at a time.
type Scheduler struct {
	syncer   AutoSyncer
	interval time.Duration
	logger   *zap.Logger

	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a scheduler ticking every interval.
func NewScheduler(syncer AutoSyncer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background loop. It is a no-op when already running
// or when the interval is not positive.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning || s.interval <= 0 {
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	s.logger.Info("Auto-sync scheduler started", zap.Duration("interval", s.interval))
}

// Stop ends the loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Auto-sync scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce syncs every auto-sync datasource sequentially and returns how many succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	datasources, err := s.syncer.AutoSyncDatasources(ctx)
	if err != nil {
		s.logger.Error("Failed to list auto-sync datasources", zap.Error(err))
		return 0
	}

	synced := 0
	for _, ds := range datasources {
		if ctx.Err() != nil {
			break
		}
		_, err := s.syncer.Sync(ctx, ds.ID, reconcile.Options{})
		switch {
		case errors.Is(err, reconcile.ErrSyncInProgress):
			s.logger.Debug("Sync already in progress, skipping", zap.Uint("datasource", ds.ID))
		case err != nil:
			s.logger.Error("Scheduled sync failed", zap.Uint("datasource", ds.ID), zap.String("name", ds.Name), zap.Error(err))
		default:
			synced++
		}
	}
	return synced
}
