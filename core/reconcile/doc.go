// Package reconcile keeps a catalog consistent with the current state of an
// external hierarchical store.
//
// A sync diffs two snapshots: the remote listing and the catalog rows of one
// datasource. Every remote entry is classified as created, updated, identical
// or merged, and catalog rows that were not observed become orphans.
//
// # Architecture
//
//  1. Lister: walks a Remote depth-first and yields a single-pass Stream of
//     RemoteEntry values with normalized keys and hashes. Sidecar files are
//     never part of the stream.
//
//  2. IdentityResolver: reads the sidecar record stored in each directory to
//     recover its uid, and writes a fresh one for new directories.
//
//  3. DirectoryReconciler: joins remote directories to catalog rows on uid, so
//     a renamed directory keeps its row.
//
//  4. FileReconciler: joins remote files to catalog rows on key, then pairs
//     new keys with unmatched rows of the same content hash to detect moves.
//
//  5. MetadataReconciler: the same classification for flat registry records
//     keyed by an external id, without move detection or orphaning.
//
// Engine ties these together behind a per-datasource Locker.
//
// # Usage Example
//
//	engine := reconcile.NewEngine(store, logger, reconcile.WithLocker(locker))
//	result, err := engine.Sync(ctx, reconcile.Datasource{ID: 1, Name: "reports"}, remote, reconcile.Options{})
//	if err != nil {
//	    var le *reconcile.ListingError
//	    if errors.As(err, &le) {
//	        // remote unreachable, catalog untouched
//	    }
//	}
//
// # Dry Runs
//
// With Options.DryRun the catalog is only read. Mutations and sidecar writes
// are returned as Actions on the SyncResult.
package reconcile
