package schema

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

// Step brings one table from Version-1 to Version.
type Step struct {
	Table   string
	Version int
	Name    string

	// Statements are executed in order when Apply is nil.
	Statements []string

	// Apply, when set, replaces Statements. It runs inside the migration
	// transaction and must not commit.
	Apply func(ctx context.Context, tx *persistence.Tx) error
}

func (s Step) run(ctx context.Context, tx *persistence.Tx) error {
	if s.Apply != nil {
		return s.Apply(ctx, tx)
	}
	for i, stmt := range s.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d of %s v%d (%s): %w", i+1, s.Table, s.Version, s.Name, err)
		}
	}
	return nil
}

// Plan holds the migration steps for every managed table.
type Plan struct {
	steps map[string]map[int]Step
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{steps: make(map[string]map[int]Step)}
}

// Add registers a step. A table may have at most one step per version.
func (p *Plan) Add(step Step) error {
	if err := (Descriptor{Table: step.Table, Version: step.Version}).Validate(); err != nil {
		return err
	}
	if step.Version < 1 {
		return fmt.Errorf("%w: %s step version must be at least 1", ErrInvalidDescriptor, step.Table)
	}

	byVersion, ok := p.steps[step.Table]
	if !ok {
		byVersion = make(map[int]Step)
		p.steps[step.Table] = byVersion
	}
	if _, dup := byVersion[step.Version]; dup {
		return fmt.Errorf("%w: %s v%d", ErrDuplicateStep, step.Table, step.Version)
	}
	byVersion[step.Version] = step
	return nil
}

// Steps returns the steps from version from to version to inclusive, in order.
func (p *Plan) Steps(table string, from, to int) ([]Step, error) {
	var out []Step
	for v := from; v <= to; v++ {
		step, ok := p.steps[table][v]
		if !ok {
			return nil, fmt.Errorf("%w: %s v%d", ErrMissingStep, table, v)
		}
		out = append(out, step)
	}
	return out, nil
}

// Tables returns the managed table names in sorted order.
func (p *Plan) Tables() []string {
	tables := make([]string, 0, len(p.steps))
	for t := range p.steps {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Descriptors returns one descriptor per table, declaring its highest step.
func (p *Plan) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(p.steps))
	for _, t := range p.Tables() {
		highest := 0
		for v := range p.steps[t] {
			if v > highest {
				highest = v
			}
		}
		out = append(out, Descriptor{Table: t, Version: highest})
	}
	return out
}

// LoadPlan reads steps from fsys. Each subdirectory of dir is a table; each
// file in it named NNNN_description.sql is the step to version NNNN.
// Other files are ignored.
func LoadPlan(fsys fs.FS, dir string) (*Plan, error) {
	plan := NewPlan()

	tables, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	for _, t := range tables {
		if !t.IsDir() {
			continue
		}
		tableDir := path.Join(dir, t.Name())
		files, err := fs.ReadDir(fsys, tableDir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", tableDir, err)
		}

		for _, f := range files {
			version, name, ok := parseStepFilename(f.Name())
			if f.IsDir() || !ok {
				continue
			}
			body, err := fs.ReadFile(fsys, path.Join(tableDir, f.Name()))
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f.Name(), err)
			}
			step := Step{
				Table:      t.Name(),
				Version:    version,
				Name:       name,
				Statements: splitStatements(string(body)),
			}
			if err := plan.Add(step); err != nil {
				return nil, err
			}
		}
	}

	return plan, nil
}

// parseStepFilename extracts version and description from "0002_add_index.sql".
func parseStepFilename(filename string) (version int, name string, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return 0, "", false
	}
	num, name, _ := strings.Cut(base, "_")
	version, err := strconv.Atoi(num)
	if err != nil || version < 1 {
		return 0, "", false
	}
	if name == "" {
		name = base
	}
	return version, name, true
}

// splitStatements splits a SQL script on semicolons that end a line.
// Line comments starting with "--" are dropped.
func splitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if stmt, ended := strings.CutSuffix(trimmed, ";"); ended {
			cur.WriteString(stmt)
			flush()
			continue
		}
		cur.WriteString(trimmed)
		cur.WriteString("\n")
	}
	flush()

	return out
}
