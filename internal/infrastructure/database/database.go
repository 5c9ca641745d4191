package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Supported driver names, as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

const (
	// dirPermissions is the permission mode for the SQLite database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the SQLite database file.
	filePermissions = 0600

	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// DB wraps a managed sql.DB pool together with the driver it was opened with.
type DB struct {
	*sql.DB
	driver string
	path   string
	dsn    string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Driver is one of DriverSQLite, DriverMySQL or DriverPostgres.
	// Empty means DriverSQLite.
	Driver string

	// Path is the SQLite database file. The directory is created if missing.
	Path string

	// DSN is the MySQL or PostgreSQL connection string.
	DSN string

	// WALMode enables Write-Ahead Logging for SQLite.
	WALMode bool

	// BusyTimeout is the SQLite lock wait in seconds.
	BusyTimeout int

	// MaxOpenConns bounds the managed pool. 0 keeps the driver default,
	// except for SQLite which is pinned to a single writer.
	MaxOpenConns int
	MaxIdleConns int

	// ConnMaxLifetime is in seconds. 0 means one hour.
	ConnMaxLifetime int
}

// Open creates the managed connection pool for the configured driver and
// verifies it with a ping.
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If the DSN is invalid or the database is unreachable
func Open(cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	dsn, err := BuildDSN(driver, cfg)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	configurePool(sqlDB, driver, cfg)

	db := &DB{
		DB:     sqlDB,
		driver: driver,
		path:   cfg.Path,
		dsn:    dsn,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if driver == DriverSQLite {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may be created lazily on first write
	}

	return db, nil
}

// BuildDSN returns the driver-specific connection string for cfg.
//
// SQLite DSNs are assembled from Path and the pragma settings. MySQL DSNs are
// parsed and re-emitted with parseTime enabled so DATETIME columns scan into
// time.Time. PostgreSQL DSNs are passed through.
func BuildDSN(driver string, cfg Config) (string, error) {
	switch driver {
	case DriverSQLite:
		// See: https://github.com/mattn/go-sqlite3#connection-string
		dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
			cfg.Path,
			cfg.BusyTimeout*msPerSecond,
		)
		if cfg.WALMode {
			dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
		}
		return dsn, nil

	case DriverMySQL:
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		mc.ParseTime = true
		return mc.FormatDSN(), nil

	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return "", fmt.Errorf("postgres dsn is empty")
		}
		return cfg.DSN, nil

	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func configurePool(sqlDB *sql.DB, driver string, cfg Config) {
	lifetime := time.Hour
	if cfg.ConnMaxLifetime > 0 {
		lifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	sqlDB.SetConnMaxLifetime(lifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	if driver == DriverSQLite {
		// SQLite only supports one writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
}

// Close closes the database pool gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Driver returns the database/sql driver name.
func (db *DB) Driver() string {
	return db.driver
}

// DSN returns the normalised connection string the pool was opened with.
func (db *DB) DSN() string {
	return db.dsn
}

// Path returns the SQLite database file, or "" for network databases.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}
