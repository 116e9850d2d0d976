package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"catalog-sync/core/reconcile"
	"catalog-sync/core/storage"
	"catalog-sync/core/storage/awss3"
	"catalog-sync/core/storage/localfs"
	"catalog-sync/feature/catalog/models"

	"github.com/spf13/afero"
)

// RemoteFactory builds the remote of a hierarchical datasource.
type RemoteFactory interface {
	Remote(ctx context.Context, ds *models.Datasource) (reconcile.Remote, error)
}

// RemoteFactoryFunc adapts a function to RemoteFactory.
type RemoteFactoryFunc func(ctx context.Context, ds *models.Datasource) (reconcile.Remote, error)

// Remote implements RemoteFactory.
func (f RemoteFactoryFunc) Remote(ctx context.Context, ds *models.Datasource) (reconcile.Remote, error) {
	return f(ctx, ds)
}

// Remotes builds remotes from the configured backends. Clients are created
// lazily so that an unused backend needs no configuration.
type Remotes struct {
	Minio   storage.Config
	S3      awss3.Config
	Local   localfs.Config
	LocalFs afero.Fs

	mu    sync.Mutex
	minio storage.Client
	s3    awss3.API
}

// Remote implements RemoteFactory.
func (r *Remotes) Remote(ctx context.Context, ds *models.Datasource) (reconcile.Remote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ds.Backend {
	case models.BackendMinio:
		if r.minio == nil {
			client, err := storage.NewClient(r.Minio)
			if err != nil {
				return nil, err
			}
			r.minio = client
		}
		bucket := ds.Location
		if bucket == "" {
			bucket = r.Minio.Bucket
		}
		return storage.NewRemote(r.minio, bucket), nil

	case models.BackendS3:
		if r.s3 == nil {
			client, err := awss3.NewClient(ctx, r.S3)
			if err != nil {
				return nil, err
			}
			r.s3 = client
		}
		return awss3.NewRemote(r.s3, ds.Location, r.S3.PageSize), nil

	case models.BackendLocal:
		dir, err := r.localDir(ds.Location)
		if err != nil {
			return nil, err
		}
		fsys := r.LocalFs
		if fsys == nil {
			fsys = afero.NewOsFs()
		}
		return localfs.NewRemote(fsys, dir), nil

	default:
		return nil, fmt.Errorf("backend %q has no hierarchical remote", ds.Backend)
	}
}

// localDir resolves a datasource location against the configured base directory.
func (r *Remotes) localDir(location string) (string, error) {
	if r.Local.BaseDir == "" {
		return filepath.Clean(location), nil
	}

	base := filepath.Clean(r.Local.BaseDir)
	dir := filepath.Join(base, location)
	if dir != base && !strings.HasPrefix(dir, base+string(filepath.Separator)) {
		return "", fmt.Errorf("location %q escapes base directory %s", location, base)
	}
	return dir, nil
}
