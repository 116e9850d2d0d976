// Package config provides configuration management for catalog-sync.
//
// Values come from the environment, optionally overloaded by a .env file in
// the working directory, with defaults taken from the `default` struct tags
// of each section.
//
// # Configuration Structure
//
//   - Server: HTTP port, API key, metrics endpoint
//   - Storage: MinIO endpoint, credentials and default bucket
//   - S3: AWS region, endpoint override and credentials
//   - Local: base directory for filesystem datasources
//   - Database: catalog database driver and connection details
//   - Log: level, format and rotating file sink
//   - Sync: sidecar name, lease TTL, scheduler interval, run timeout
//   - DHIS2: metadata registry URL and credentials
//
// Environment keys are SECTION_FIELD, e.g. DATABASE_DRIVER or SYNC_TIMEOUT_SECONDS.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
