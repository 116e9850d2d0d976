// Package database opens the catalog database through GORM.
//
// Connect supports MySQL for shared deployments and SQLite for single-node
// installs and tests. The driver is selected by Config.Driver.
//
// # Schema Inspection
//
// TableColumns and MissingColumns read the live schema so that the migrate
// command can report drift after AutoMigrate.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "catalog_entries", []string{"uid"})
package database
