package integrity

import (
	"context"

	"catalog-sync/feature/catalog"
	"catalog-sync/feature/catalog/models"
	"catalog-sync/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Cleaner removes duplicate catalog rows of one datasource.
type Cleaner interface {
	Cleanup(ctx context.Context, datasourceID uint) (int64, error)
}

// Service handles integrity checks.
type Service struct {
	db      *gorm.DB
	store   *catalog.Store
	remotes catalog.RemoteFactory
	cleaner Cleaner
	logger  *zap.Logger
}

// NewService creates a new integrity service.
func NewService(db *gorm.DB, store *catalog.Store, remotes catalog.RemoteFactory, cleaner Cleaner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      db,
		store:   store,
		remotes: remotes,
		cleaner: cleaner,
		logger:  logger,
	}
}

// CheckSchema compares the catalog tables against the models.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	return checks.CheckSchema(s.db, models.All())
}

// CheckDatasources checks that every datasource root is reachable.
func (s *Service) CheckDatasources(ctx context.Context) ([]checks.DatasourceReport, error) {
	list, err := s.store.ListDatasources(ctx)
	if err != nil {
		return nil, err
	}
	return checks.CheckDatasources(ctx, list, s.remotes), nil
}

// CheckDuplicates lists the datasources holding duplicate catalog rows.
func (s *Service) CheckDuplicates(ctx context.Context) ([]checks.DuplicateReport, error) {
	list, err := s.store.ListDatasources(ctx)
	if err != nil {
		return nil, err
	}
	return checks.CheckDuplicates(ctx, list, s.store)
}

// FixDuplicates runs the cleanup for every reported datasource and returns
// the number of rows removed.
func (s *Service) FixDuplicates(ctx context.Context, reports []checks.DuplicateReport) (int64, error) {
	var total int64
	for _, r := range reports {
		removed, err := s.cleaner.Cleanup(ctx, r.ID)
		if err != nil {
			s.logger.Error("Failed to remove duplicates", zap.Uint("datasource", r.ID), zap.Error(err))
			return total, err
		}
		total += removed
	}
	return total, nil
}
