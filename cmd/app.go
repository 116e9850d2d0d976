package cmd

import (
	"context"
	"fmt"
	"strconv"

	"catalog-sync/core/config"
	"catalog-sync/core/database"
	"catalog-sync/core/logger"
	"catalog-sync/feature/catalog"
	"catalog-sync/feature/registry"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app bundles the dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	store    *catalog.Store
	registry *registry.Client

	factory *catalog.Remotes
}

// bootstrap loads the configuration, opens the catalog database and applies
// the schema migrations.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := catalog.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	a := &app{cfg: cfg, logger: l, db: db, store: store}
	if cfg.DHIS2.Enabled() {
		a.registry = registry.NewClient(cfg.DHIS2, l.Named("registry"))
	}
	return a, nil
}

// remotes returns the remote factory built from the storage sections.
func (a *app) remotes() *catalog.Remotes {
	if a.factory == nil {
		a.factory = &catalog.Remotes{
			Minio: a.cfg.Storage,
			S3:    a.cfg.S3,
			Local: a.cfg.Local,
		}
	}
	return a.factory
}

// service creates the sync service over the bootstrapped dependencies.
func (a *app) service() *catalog.Service {
	var opts []catalog.ServiceOption
	if a.registry != nil {
		opts = append(opts, catalog.WithMetadataSource(a.registry))
	}
	return catalog.NewService(a.store, a.remotes(), a.cfg.Sync, a.logger, opts...)
}

func (a *app) close() {
	_ = a.logger.Sync()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// parseID reads a datasource id argument.
func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid datasource id %q", arg)
	}
	return uint(id), nil
}
