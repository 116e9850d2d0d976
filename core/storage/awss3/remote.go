// Package awss3 reads datasources stored in AWS S3 through aws-sdk-go-v2.
package awss3

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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BackendName labels metrics produced by this backend.
const BackendName = "s3"

// Remote exposes one S3 bucket as a reconcile.Remote.
type Remote struct {
	api      API
	bucket   string
	pageSize int32
}

// NewRemote creates a remote over bucket. pageSize <= 0 uses the S3 default.
func NewRemote(api API, bucket string, pageSize int32) *Remote {
	return &Remote{api: api, bucket: bucket, pageSize: pageSize}
}

// List streams the children of p using a "/" delimiter, so common
// prefixes come back as directories.
func (r *Remote) List(ctx context.Context, p string) <-chan reconcile.RemoteEntry {
	out := make(chan reconcile.RemoteEntry)
	prefix := ""
	if p = strings.Trim(p, "/"); p != "" {
		prefix = p + "/"
	}

	go func() {
		defer close(out)
		send := func(e reconcile.RemoteEntry) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		input := &s3.ListObjectsV2Input{
			Bucket:    aws.String(r.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		}
		if r.pageSize > 0 {
			input.MaxKeys = aws.Int32(r.pageSize)
		}

		pages := s3.NewListObjectsV2Paginator(r.api, input)
		for pages.HasMorePages() {
			start := time.Now()
			page, err := pages.NextPage(ctx)
			metrics.RecordRemoteOperation(BackendName, "list", time.Since(start), err == nil)
			if err != nil {
				send(reconcile.RemoteEntry{Err: mapError(err)})
				return
			}

			for _, cp := range page.CommonPrefixes {
				if !send(reconcile.RemoteEntry{Key: aws.ToString(cp.Prefix), Kind: reconcile.KindDirectory}) {
					return
				}
			}
			for _, obj := range page.Contents {
				entry := reconcile.RemoteEntry{
					Key:         aws.ToString(obj.Key),
					Kind:        reconcile.KindFile,
					ContentHash: aws.ToString(obj.ETag),
					Size:        aws.ToInt64(obj.Size),
				}
				if !send(entry) {
					return
				}
			}
		}
	}()

	return out
}

// Read downloads the object at p.
func (r *Remote) Read(ctx context.Context, p string) ([]byte, error) {
	start := time.Now()
	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(p),
	})
	if err != nil {
		err = mapError(err)
		metrics.RecordRemoteOperation(BackendName, "read", time.Since(start), errors.Is(err, reconcile.ErrNotFound))
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	metrics.RecordRemoteOperation(BackendName, "read", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", p, err)
	}
	return data, nil
}

// Write uploads data to p.
func (r *Remote) Write(ctx context.Context, p string, data []byte) error {
	start := time.Now()
	_, err := r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(p),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	metrics.RecordRemoteOperation(BackendName, "write", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}
	return nil
}

// Exists reports whether p is an object or a non-empty prefix. The empty
// path checks the bucket.
func (r *Remote) Exists(ctx context.Context, p string) (bool, error) {
	start := time.Now()
	ok, err := r.exists(ctx, strings.Trim(p, "/"))
	metrics.RecordRemoteOperation(BackendName, "exists", time.Since(start), err == nil)
	return ok, err
}

func (r *Remote) exists(ctx context.Context, p string) (bool, error) {
	if p == "" {
		_, err := r.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)})
		if err == nil {
			return true, nil
		}
		if errors.Is(mapError(err), reconcile.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	_, err := r.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(p)})
	if err == nil {
		return true, nil
	}
	if !errors.Is(mapError(err), reconcile.ErrNotFound) {
		return false, err
	}

	page, err := r.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(r.bucket),
		Prefix:  aws.String(p + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		if errors.Is(mapError(err), reconcile.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return len(page.Contents) > 0 || len(page.CommonPrefixes) > 0, nil
}

func mapError(err error) error {
	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		notFound *types.NotFound
	)
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", reconcile.ErrNotFound, err)
	}
	return err
}
