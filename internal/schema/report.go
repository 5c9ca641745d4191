package schema

import (
	"encoding/json"
	"sync"

	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

// Reporter receives the outcome of CheckAll, one call per problem.
type Reporter interface {
	// CannotCheck reports that the registry could not be read at all.
	CannotCheck(err error)

	// MissingVersion reports a declared table with no registry row.
	MissingVersion(table string)

	// WrongVersion reports a table whose persisted version differs from the declared one.
	WrongVersion(table string, persisted, declared int)
}

// ProblemKind classifies a Problem.
type ProblemKind string

// Problem kinds.
const (
	ProblemCannotCheck    ProblemKind = "cannot_check"
	ProblemMissingVersion ProblemKind = "missing_version"
	ProblemWrongVersion   ProblemKind = "wrong_version"
)

// Problem is one reported discrepancy.
type Problem struct {
	Kind      ProblemKind `json:"kind"`
	Table     string      `json:"table,omitempty"`
	Persisted int         `json:"persisted"`
	Declared  int         `json:"declared"`
	Error     string      `json:"error,omitempty"`
}

// Collector aggregates problems so the caller can decide afterwards.
// It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	problems []Problem
}

// CannotCheck implements Reporter.
func (c *Collector) CannotCheck(err error) {
	c.add(Problem{Kind: ProblemCannotCheck, Error: err.Error()})
}

// MissingVersion implements Reporter.
func (c *Collector) MissingVersion(table string) {
	c.add(Problem{Kind: ProblemMissingVersion, Table: table})
}

// WrongVersion implements Reporter.
func (c *Collector) WrongVersion(table string, persisted, declared int) {
	c.add(Problem{Kind: ProblemWrongVersion, Table: table, Persisted: persisted, Declared: declared})
}

func (c *Collector) add(p Problem) {
	c.mu.Lock()
	c.problems = append(c.problems, p)
	c.mu.Unlock()
}

// Problems returns a copy of everything collected so far.
func (c *Collector) Problems() []Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Problem(nil), c.problems...)
}

// Count returns how many problems of kind were collected.
func (c *Collector) Count(kind ProblemKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.problems {
		if p.Kind == kind {
			n++
		}
	}
	return n
}

// LogReporter writes each problem to a logger.
type LogReporter struct {
	Logger persistence.Logger
}

// CannotCheck implements Reporter.
func (l LogReporter) CannotCheck(err error) {
	l.Logger.Error("schema versions cannot be checked", "error", err)
}

// MissingVersion implements Reporter.
func (l LogReporter) MissingVersion(table string) {
	l.Logger.Warn("schema registry has no row for table", "table", table)
}

// WrongVersion implements Reporter.
func (l LogReporter) WrongVersion(table string, persisted, declared int) {
	l.Logger.Warn("table schema version mismatch", "table", table, "persisted", persisted, "declared", declared)
}

// Publisher sends a retained message. *mqtt.Client satisfies it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// PublishReporter publishes each problem as JSON on the topic returned by
// Topic. An empty table name is used for CannotCheck.
type PublishReporter struct {
	Publisher Publisher
	Topic     func(table string) string
	Logger    persistence.Logger
}

// CannotCheck implements Reporter.
func (p PublishReporter) CannotCheck(err error) {
	p.publish(Problem{Kind: ProblemCannotCheck, Error: err.Error()})
}

// MissingVersion implements Reporter.
func (p PublishReporter) MissingVersion(table string) {
	p.publish(Problem{Kind: ProblemMissingVersion, Table: table})
}

// WrongVersion implements Reporter.
func (p PublishReporter) WrongVersion(table string, persisted, declared int) {
	p.publish(Problem{Kind: ProblemWrongVersion, Table: table, Persisted: persisted, Declared: declared})
}

func (p PublishReporter) publish(problem Problem) {
	payload, err := json.Marshal(problem)
	if err == nil {
		err = p.Publisher.PublishRetained(p.Topic(problem.Table), payload)
	}
	if err != nil && p.Logger != nil {
		p.Logger.Warn("publishing schema problem", "table", problem.Table, "kind", problem.Kind, "error", err)
	}
}

// Reporters fans each report out to several reporters, in order.
func Reporters(rs ...Reporter) Reporter {
	return multi(rs)
}

type multi []Reporter

func (m multi) CannotCheck(err error) {
	for _, r := range m {
		r.CannotCheck(err)
	}
}

func (m multi) MissingVersion(table string) {
	for _, r := range m {
		r.MissingVersion(table)
	}
}

func (m multi) WrongVersion(table string, persisted, declared int) {
	for _, r := range m {
		r.WrongVersion(table, persisted, declared)
	}
}
