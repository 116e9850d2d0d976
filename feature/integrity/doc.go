// Package integrity provides health checks of the catalog infrastructure.
//
// Unlike the 'catalog' package which reconciles datasource contents, this
// package validates the structures the sync relies on.
//
// # Checks Provided
//
//   - Schema: Validates that the catalog tables carry the columns and types of the models.
//   - Datasources: Resolves each datasource remote and checks that its root exists.
//   - Duplicates: Counts catalog rows that the duplicate cleanup would remove.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/schema : Runs the schema check.
//   - GET /integrity/datasources : Runs the datasource check.
//   - GET /integrity/duplicates : Runs the duplicate check (supports ?fix=true).
package integrity
