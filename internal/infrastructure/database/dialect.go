package database

import (
	"github.com/jmoiron/sqlx"
)

// Rebind rewrites '?' placeholders into the bind style of driver.
// Queries are written once with '?' and rebound for PostgreSQL ($1, $2, ...).
func Rebind(driver, query string) string {
	return sqlx.Rebind(sqlx.BindType(driver), query)
}

// TableExistsQuery returns a query that selects a count of tables named by
// its single placeholder argument in the current database.
func TableExistsQuery(driver string) string {
	switch driver {
	case DriverMySQL:
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	case DriverPostgres:
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
	default:
		return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}
}

// VersionColumnType is the column type used for schema version numbers.
// PostgreSQL has no MEDIUMINT.
func VersionColumnType(driver string) string {
	if driver == DriverPostgres {
		return "INTEGER"
	}
	return "MEDIUMINT"
}
