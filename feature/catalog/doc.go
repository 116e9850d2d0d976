// Package catalog persists datasources and their mirrored catalog, and runs
// synchronization against the remote stores.
//
// # Components
//
//   - Store: gorm implementation of reconcile.Catalog and reconcile.RecordStore,
//     plus datasource CRUD and duplicate cleanup.
//   - LeaseLocker: sync_leases rows excluding concurrent syncs across processes.
//   - Remotes: builds the minio, s3 or local remote of a datasource.
//   - Service: Sync (tree or metadata registry), Cleanup, dry runs.
//   - Scheduler: periodic sync of datasources flagged auto_sync.
//   - Manifest: TOML file of datasources imported by name.
//
// # HTTP
//
//	GET  /datasources
//	POST /datasources
//	GET  /datasources/:id
//	POST /datasources/:id/sync?dry_run=true
//	POST /datasources/:id/cleanup
//	GET  /datasources/:id/entries?kind=file&orphan=false
//	GET  /datasources/:id/records
package catalog
