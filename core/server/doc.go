// Package server holds the HTTP server configuration.
//
// The start command builds the Fiber application from this configuration:
// the listen address, the optional API key protecting every route, and
// whether the Prometheus endpoint is mounted.
package server
