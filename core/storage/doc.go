// Package storage connects catalog-sync to MinIO and other S3-compatible
// object stores through the minio-go client.
//
// # Client Interface
//
// Client is the narrow subset of *minio.Client the sync engine needs. It is
// mocked in core/storage/mocks for unit tests.
//
// # Remote
//
// Remote adapts one bucket to reconcile.Remote:
//
//   - List: one level below a prefix, with common prefixes reported as directories.
//   - Read: downloads an object; a missing key yields reconcile.ErrNotFound.
//   - Write: uploads the directory sidecar files.
//   - Exists: object, prefix or (for the empty path) bucket existence.
//
// # Usage
//
//	client, err := storage.NewClient(cfg)
//	remote := storage.NewRemote(client, "catalog")
//	ok, err := remote.Exists(ctx, "reports")
package storage
