package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

// TableName is the registry table.
const TableName = "schema_versions"

// Registry reads and records per-table schema versions.
type Registry struct {
	runner *persistence.Runner
	driver string
	plan   *Plan
	logger persistence.Logger
}

// NewRegistry creates a registry that runs its work on runner.
//
// Parameters:
//   - runner: Transaction runner; every registry operation is one unit of work
//   - driver: database/sql driver name, used for placeholders and DDL types
//   - plan: Migration steps; nil means an empty plan
//   - logger: Optional logger
func NewRegistry(runner *persistence.Runner, driver string, plan *Plan, logger persistence.Logger) *Registry {
	if plan == nil {
		plan = NewPlan()
	}
	if logger == nil {
		logger = persistence.Discard()
	}
	return &Registry{runner: runner, driver: driver, plan: plan, logger: logger}
}

// Plan returns the migration plan.
func (r *Registry) Plan() *Plan {
	return r.plan
}

func (r *Registry) q(query string) string {
	return database.Rebind(r.driver, query)
}

// EnsureRegistryTable creates the registry table and one zero row per table,
// only if the registry table does not exist yet. It reports whether it
// created the table; a freshly created registry means no table has a
// tracked history, which callers should treat with caution.
func (r *Registry) EnsureRegistryTable(ctx context.Context, tables []Descriptor) (bool, error) {
	if err := validateAll(tables); err != nil {
		return false, err
	}

	created, err := persistence.Run(ctx, r.runner, persistence.Named("schema.ensure-registry",
		func(ctx context.Context, tx *persistence.Tx) (bool, error) {
			exists, err := r.registryExists(ctx, tx)
			if err != nil || exists {
				return false, err
			}

			ddl := fmt.Sprintf("CREATE TABLE %s (table_name VARCHAR(%d) PRIMARY KEY, schema_version %s NOT NULL DEFAULT 0)",
				TableName, MaxTableNameLength, database.VersionColumnType(r.driver))
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return false, fmt.Errorf("creating registry table: %w", err)
			}

			insert := r.q("INSERT INTO " + TableName + " (table_name, schema_version) VALUES (?, 0)")
			for _, d := range tables {
				if _, err := tx.ExecContext(ctx, insert, d.Table); err != nil {
					return false, fmt.Errorf("seeding registry row for %s: %w", d.Table, err)
				}
			}
			return true, nil
		}))
	if err != nil {
		return false, err
	}

	if created {
		r.logger.Info("schema registry created", "tables", len(tables))
	}
	return created, nil
}

func (r *Registry) registryExists(ctx context.Context, tx *persistence.Tx) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, database.TableExistsQuery(r.driver), TableName).Scan(&n); err != nil {
		return false, fmt.Errorf("checking registry table: %w", err)
	}
	return n > 0, nil
}

type versionRead struct {
	version int
	found   bool
}

// readVersionTx reads one row inside an existing unit of work.
func (r *Registry) readVersionTx(ctx context.Context, tx *persistence.Tx, table string) (versionRead, error) {
	var v int
	err := tx.QueryRowContext(ctx,
		r.q("SELECT schema_version FROM "+TableName+" WHERE table_name = ?"), table,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return versionRead{}, nil
	}
	if err != nil {
		return versionRead{}, fmt.Errorf("reading version of %s: %w", table, err)
	}
	return versionRead{version: v, found: true}, nil
}

// ReadVersion returns the persisted version of table. A missing row is
// reported as ErrMissingVersion.
func (r *Registry) ReadVersion(ctx context.Context, table string) (int, error) {
	read, err := persistence.Run(ctx, r.runner, persistence.Named("schema.read-version",
		func(ctx context.Context, tx *persistence.Tx) (versionRead, error) {
			return r.readVersionTx(ctx, tx, table)
		}))
	if err != nil {
		return 0, err
	}
	if !read.found {
		return 0, fmt.Errorf("%w: %s", ErrMissingVersion, table)
	}
	return read.version, nil
}

// Versions returns every row of the registry.
func (r *Registry) Versions(ctx context.Context) (map[string]int, error) {
	return persistence.Run(ctx, r.runner, persistence.Named("schema.versions",
		func(ctx context.Context, tx *persistence.Tx) (map[string]int, error) {
			rows, err := tx.QueryContext(ctx, "SELECT table_name, schema_version FROM "+TableName)
			if err != nil {
				return nil, fmt.Errorf("querying registry: %w", err)
			}

			out := make(map[string]int)
			for rows.Next() {
				var (
					table   string
					version int
				)
				if err := rows.Scan(&table, &version); err != nil {
					return nil, fmt.Errorf("scanning registry row: %w", err)
				}
				out[table] = version
			}
			if err := rows.Err(); err != nil {
				return nil, fmt.Errorf("iterating registry: %w", err)
			}
			return out, nil
		}))
}

// Pending returns the descriptors whose table is behind its declared version.
// Tables without a registry row count as version 0.
func (r *Registry) Pending(ctx context.Context, tables []Descriptor) ([]Descriptor, error) {
	versions, err := r.Versions(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Descriptor
	for _, d := range tables {
		if versions[d.Table] < d.Version {
			pending = append(pending, d)
		}
	}
	return pending, nil
}

// Migrate brings desc.Table from its persisted version to desc.Version in a
// single unit of work and records the new version. A missing registry row
// is treated as version 0 and inserted. When ctx already carries a runner
// transaction the migration joins it.
//
// On MySQL each DDL statement commits implicitly, so a failing later step
// leaves earlier steps applied while the recorded version stays unchanged.
//
// Returns:
//   - error: ErrDowngrade, ErrMissingStep, or the failing step's error
func (r *Registry) Migrate(ctx context.Context, desc Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	_, err := persistence.Run(ctx, r.runner, persistence.Named("schema.migrate."+desc.Table,
		func(ctx context.Context, tx *persistence.Tx) (struct{}, error) {
			return struct{}{}, r.migrateTx(ctx, tx, desc)
		}))
	return err
}

func (r *Registry) migrateTx(ctx context.Context, tx *persistence.Tx, desc Descriptor) error {
	current, err := r.readVersionTx(ctx, tx, desc.Table)
	if err != nil {
		return err
	}

	if current.version > desc.Version {
		return fmt.Errorf("%w: %s is at v%d, code declares v%d", ErrDowngrade, desc.Table, current.version, desc.Version)
	}
	if current.found && current.version == desc.Version {
		return nil
	}

	steps, err := r.plan.Steps(desc.Table, current.version+1, desc.Version)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if err := step.run(ctx, tx); err != nil {
			return fmt.Errorf("migrating %s to v%d: %w", desc.Table, step.Version, err)
		}
	}

	if current.found {
		_, err = tx.ExecContext(ctx,
			r.q("UPDATE "+TableName+" SET schema_version = ? WHERE table_name = ?"), desc.Version, desc.Table)
	} else {
		_, err = tx.ExecContext(ctx,
			r.q("INSERT INTO "+TableName+" (table_name, schema_version) VALUES (?, ?)"), desc.Table, desc.Version)
	}
	if err != nil {
		return fmt.Errorf("recording version of %s: %w", desc.Table, err)
	}

	r.logger.Info("table migrated", "table", desc.Table, "from", current.version, "to", desc.Version, "steps", len(steps))
	return nil
}

// MigrateAll migrates every pending table, each in its own unit of work.
// It stops at the first failure; tables migrated before it stay migrated.
func (r *Registry) MigrateAll(ctx context.Context, tables []Descriptor) error {
	pending, err := r.Pending(ctx, tables)
	if err != nil {
		return err
	}
	for _, d := range pending {
		if err := r.Migrate(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// CheckAll compares every descriptor with the registry and reports each
// discrepancy to reporter. It reads the registry once and never fails: if
// the registry cannot be read, CannotCheck is reported and nothing else.
func (r *Registry) CheckAll(ctx context.Context, tables []Descriptor, reporter Reporter) {
	versions, err := r.Versions(ctx)
	if err != nil {
		reporter.CannotCheck(err)
		return
	}

	for _, d := range tables {
		persisted, ok := versions[d.Table]
		switch {
		case !ok:
			reporter.MissingVersion(d.Table)
		case persisted != d.Version:
			reporter.WrongVersion(d.Table, persisted, d.Version)
		}
	}
}
