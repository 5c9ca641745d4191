package schema

import "errors"

// Domain-specific errors for schema operations.
var (
	// ErrMissingVersion is returned when the registry has no row for a table.
	ErrMissingVersion = errors.New("schema: no registry row for table")

	// ErrDowngrade is returned when the persisted version is newer than the declared one.
	ErrDowngrade = errors.New("schema: persisted version is newer than declared")

	// ErrMissingStep is returned when the plan lacks a step needed to reach the declared version.
	ErrMissingStep = errors.New("schema: migration step missing")

	// ErrInvalidDescriptor is returned for table names that cannot be stored
	// in the registry or versions below zero.
	ErrInvalidDescriptor = errors.New("schema: invalid descriptor")

	// ErrDuplicateStep is returned when a plan already has a step for a table and version.
	ErrDuplicateStep = errors.New("schema: duplicate migration step")
)
