// Package database opens the managed database/sql pool for Gray Logic Persist.
//
// This package manages:
//   - Driver selection: SQLite (mattn/go-sqlite3), MySQL (go-sql-driver/mysql)
//     and PostgreSQL (jackc/pgx stdlib)
//   - DSN normalisation per driver
//   - Pool sizing and lifecycle
//   - Small dialect helpers (placeholder rebinding, table existence, version column type)
//
// Transactions are not started here. Units of work run through
// internal/persistence, which leases connections from this pool.
//
// Security Considerations:
//   - SQLite file permissions are set to 0600 (owner read/write only)
//   - DSNs carry credentials and must never be logged
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite3", Path: "./data/graypersist.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package database
