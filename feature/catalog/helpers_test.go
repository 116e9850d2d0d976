package catalog

import (
	"context"
	"fmt"
	"testing"

	"catalog-sync/core/database"
	"catalog-sync/core/reconcile"
	"catalog-sync/core/storage/localfs"
	"catalog-sync/feature/catalog/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)

	store := NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func createDatasource(t *testing.T, store *Store, ds models.Datasource) models.Datasource {
	t.Helper()
	require.NoError(t, store.CreateDatasource(context.Background(), &ds))
	return ds
}

// memRemotes serves every local datasource from one in-memory filesystem.
func memRemotes(fsys afero.Fs) RemoteFactory {
	return RemoteFactoryFunc(func(_ context.Context, ds *models.Datasource) (reconcile.Remote, error) {
		return localfs.NewRemote(fsys, ds.Location), nil
	})
}

func writeFile(t *testing.T, fsys afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
}

func sequentialUIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("uid-%d", n)
	}
}
