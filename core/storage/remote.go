package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"catalog-sync/core/metrics"
	"catalog-sync/core/reconcile"

	"github.com/minio/minio-go/v7"
)

// BackendName labels metrics and logs produced by the minio remote.
const BackendName = "minio"

// Remote exposes one bucket of a Client as a reconcile.Remote.
type Remote struct {
	client Client
	bucket string
}

// NewRemote creates a remote over bucket.
func NewRemote(client Client, bucket string) *Remote {
	return &Remote{client: client, bucket: bucket}
}

// Bucket returns the bucket name the remote reads from.
func (r *Remote) Bucket() string {
	return r.bucket
}

// List streams the immediate children of p. Common prefixes arrive from
// minio as keys ending in "/" without an ETag.
func (r *Remote) List(ctx context.Context, p string) <-chan reconcile.RemoteEntry {
	out := make(chan reconcile.RemoteEntry)
	prefix := ""
	if p = strings.Trim(p, "/"); p != "" {
		prefix = p + "/"
	}

	go func() {
		defer close(out)
		start := time.Now()
		ok := true
		defer func() { metrics.RecordRemoteOperation(BackendName, "list", time.Since(start), ok) }()

		objects := r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: false})
		for obj := range objects {
			var entry reconcile.RemoteEntry
			switch {
			case obj.Err != nil:
				ok = false
				entry = reconcile.RemoteEntry{Err: mapError(obj.Err)}
			case strings.HasSuffix(obj.Key, "/") && obj.ETag == "":
				entry = reconcile.RemoteEntry{Key: obj.Key, Kind: reconcile.KindDirectory}
			default:
				entry = reconcile.RemoteEntry{Key: obj.Key, Kind: reconcile.KindFile, ContentHash: obj.ETag, Size: obj.Size}
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

// Read downloads the object at p.
func (r *Remote) Read(ctx context.Context, p string) ([]byte, error) {
	start := time.Now()
	data, err := r.read(ctx, p)
	metrics.RecordRemoteOperation(BackendName, "read", time.Since(start), err == nil || errors.Is(err, reconcile.ErrNotFound))
	return data, err
}

func (r *Remote) read(ctx context.Context, p string) ([]byte, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, p, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

// Write uploads data to p, replacing any existing object.
func (r *Remote) Write(ctx context.Context, p string, data []byte) error {
	start := time.Now()
	_, err := r.client.PutObject(ctx, r.bucket, p, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	metrics.RecordRemoteOperation(BackendName, "write", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", r.bucket, p, err)
	}
	return nil
}

// Exists reports whether p names an object or a non-empty prefix.
// The empty path checks the bucket itself.
func (r *Remote) Exists(ctx context.Context, p string) (bool, error) {
	start := time.Now()
	found, err := r.exists(ctx, strings.Trim(p, "/"))
	metrics.RecordRemoteOperation(BackendName, "exists", time.Since(start), err == nil)
	return found, err
}

func (r *Remote) exists(ctx context.Context, p string) (bool, error) {
	if p == "" {
		return r.client.BucketExists(ctx, r.bucket)
	}

	if _, err := r.client.StatObject(ctx, r.bucket, p, minio.StatObjectOptions{}); err == nil {
		return true, nil
	} else if !errors.Is(mapError(err), reconcile.ErrNotFound) {
		return false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: p + "/", MaxKeys: 1}) {
		if obj.Err != nil {
			if errors.Is(mapError(obj.Err), reconcile.ErrNotFound) {
				return false, nil
			}
			return false, obj.Err
		}
		return true, nil
	}
	return false, nil
}

// mapError translates minio "not found" responses into reconcile.ErrNotFound.
func mapError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", reconcile.ErrNotFound, err)
	}
	return err
}
