// Package registry reads flat metadata resources from a DHIS2 instance.
//
// A resource such as dataElements is fetched in a single unpaged request and
// each item is reduced to a reconcile.Record whose fingerprint is the sha256
// of the item's JSON. The catalog feature consumes the client through its
// MetadataSource interface; the package also serves a live preview route.
package registry
