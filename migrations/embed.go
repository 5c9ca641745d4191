// Package migrations embeds the per-table migration steps into the binary.
//
// Each subdirectory is named after the table it manages and holds one file
// per schema version, NNNN_description.sql. The highest NNNN is the version
// the code declares for that table.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-persist/internal/schema"
)

//go:embed */*.sql
var migrationsFS embed.FS

// Plan loads the embedded migration plan.
func Plan() (*schema.Plan, error) {
	return schema.LoadPlan(migrationsFS, ".")
}

// Descriptors returns the code-declared version of every managed table.
func Descriptors() ([]schema.Descriptor, error) {
	plan, err := Plan()
	if err != nil {
		return nil, err
	}
	return plan.Descriptors(), nil
}
