// Package localfs reads datasources from a directory tree through afero,
// so tests can run against an in-memory filesystem.
package localfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"catalog-sync/core/metrics"
	"catalog-sync/core/reconcile"

	"github.com/spf13/afero"
)

// BackendName labels metrics produced by this backend.
const BackendName = "local"

// Config holds the settings of the local filesystem backend.
type Config struct {
	// BaseDir confines every datasource location to this directory when set.
	BaseDir string `mapstructure:"base_dir" default:""`
}

// Remote exposes a directory of fs as a reconcile.Remote. Keys are
// slash-separated and relative to the base directory.
type Remote struct {
	fs afero.Fs
}

// NewRemote creates a remote rooted at base on fs.
func NewRemote(fsys afero.Fs, base string) *Remote {
	return &Remote{fs: afero.NewBasePathFs(fsys, base)}
}

// NewOsRemote creates a remote rooted at base on the host filesystem.
func NewOsRemote(base string) *Remote {
	return NewRemote(afero.NewOsFs(), filepath.Clean(base))
}

// List reports the entries of directory p. Files carry the md5 of their content.
func (r *Remote) List(ctx context.Context, p string) <-chan reconcile.RemoteEntry {
	out := make(chan reconcile.RemoteEntry)
	dir := strings.Trim(p, "/")

	go func() {
		defer close(out)
		start := time.Now()

		infos, err := afero.ReadDir(r.fs, fsPath(dir))
		metrics.RecordRemoteOperation(BackendName, "list", time.Since(start), err == nil)
		if err != nil {
			select {
			case out <- reconcile.RemoteEntry{Err: mapError(err)}:
			case <-ctx.Done():
			}
			return
		}

		for _, info := range infos {
			key := info.Name()
			if dir != "" {
				key = dir + "/" + key
			}

			entry := reconcile.RemoteEntry{Key: key, Kind: reconcile.KindFile, Size: info.Size()}
			switch {
			case info.IsDir():
				entry = reconcile.RemoteEntry{Key: key + "/", Kind: reconcile.KindDirectory}
			case !info.Mode().IsRegular():
				continue
			default:
				sum, err := r.hash(key)
				if err != nil {
					entry = reconcile.RemoteEntry{Err: fmt.Errorf("hash %s: %w", key, err)}
				} else {
					entry.ContentHash = sum
				}
			}

			select {
			case out <- entry:
			case <-ctx.Done():
				return
			}
			if entry.Err != nil {
				return
			}
		}
	}()

	return out
}

func (r *Remote) hash(key string) (string, error) {
	f, err := r.fs.Open(fsPath(key))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Read returns the content of file p.
func (r *Remote) Read(_ context.Context, p string) ([]byte, error) {
	start := time.Now()
	data, err := afero.ReadFile(r.fs, fsPath(p))
	err = mapError(err)
	metrics.RecordRemoteOperation(BackendName, "read", time.Since(start), err == nil || errors.Is(err, reconcile.ErrNotFound))
	return data, err
}

// Write replaces file p with data, creating parent directories as needed.
func (r *Remote) Write(_ context.Context, p string, data []byte) error {
	start := time.Now()
	name := fsPath(p)
	err := r.fs.MkdirAll(path.Dir(name), 0o755)
	if err == nil {
		err = afero.WriteFile(r.fs, name, data, 0o644)
	}
	metrics.RecordRemoteOperation(BackendName, "write", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Exists reports whether p exists. The empty path checks the base directory.
func (r *Remote) Exists(_ context.Context, p string) (bool, error) {
	start := time.Now()
	ok, err := afero.Exists(r.fs, fsPath(strings.Trim(p, "/")))
	metrics.RecordRemoteOperation(BackendName, "exists", time.Since(start), err == nil)
	return ok, err
}

// fsPath maps a slash-separated key to a path inside the base filesystem.
func fsPath(key string) string {
	return "/" + strings.TrimPrefix(key, "/")
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", reconcile.ErrNotFound, err)
	}
	return err
}
