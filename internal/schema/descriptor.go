package schema

import (
	"fmt"
	"regexp"
)

// MaxTableNameLength is the width of the registry's table_name column.
const MaxTableNameLength = 50

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Descriptor is the code-declared version of one table.
type Descriptor struct {
	Table   string `json:"table"`
	Version int    `json:"version"`
}

// Validate checks that the descriptor can be recorded in the registry.
func (d Descriptor) Validate() error {
	switch {
	case d.Table == "":
		return fmt.Errorf("%w: empty table name", ErrInvalidDescriptor)
	case len(d.Table) > MaxTableNameLength:
		return fmt.Errorf("%w: table name %q longer than %d characters", ErrInvalidDescriptor, d.Table, MaxTableNameLength)
	case !tableNamePattern.MatchString(d.Table):
		return fmt.Errorf("%w: table name %q is not a plain identifier", ErrInvalidDescriptor, d.Table)
	case d.Version < 0:
		return fmt.Errorf("%w: %s has negative version %d", ErrInvalidDescriptor, d.Table, d.Version)
	}
	return nil
}

func validateAll(tables []Descriptor) error {
	for _, d := range tables {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}
