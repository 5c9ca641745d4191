package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

// TableName is the table managed by this package.
const TableName = "audit_logs"

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timestampLayout has fixed-width fractions so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string // optional: filter by action (schema.migrate, ...)
	EntityType string // optional: filter by entity type (table, ...)
	EntityID   string // optional: filter by specific entity ID
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Store is the Repository backed by the persistence runner.
type Store struct {
	runner *persistence.Runner
	driver string
}

// NewStore creates an audit store. driver selects the placeholder style.
func NewStore(runner *persistence.Runner, driver string) *Store {
	return &Store{runner: runner, driver: driver}
}

// logRow is the column layout of audit_logs.
type logRow struct {
	ID         string         `db:"id"`
	Action     string         `db:"action"`
	EntityType string         `db:"entity_type"`
	EntityID   sql.NullString `db:"entity_id"`
	UserID     sql.NullString `db:"user_id"`
	Source     string         `db:"source"`
	Details    sql.NullString `db:"details"`
	CreatedAt  string         `db:"created_at"`
}

// Create inserts a new audit log entry. The ID and CreatedAt are generated if empty.
func (s *Store) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var details sql.NullString
	if log.Details != nil {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := persistence.Run(ctx, s.runner, persistence.Named("audit.create",
		func(ctx context.Context, tx *persistence.Tx) (struct{}, error) {
			_, err := tx.ExecContext(ctx, database.Rebind(s.driver,
				`INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, source, details, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
				log.ID, log.Action, log.EntityType,
				nullable(log.EntityID), nullable(log.UserID),
				log.Source, details,
				log.CreatedAt.UTC().Format(timestampLayout),
			)
			if err != nil {
				return struct{}{}, fmt.Errorf("inserting audit log: %w", err)
			}
			return struct{}{}, nil
		}))
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// List returns audit logs matching the filter, most recent first.
func (s *Store) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := database.Rebind(s.driver, "SELECT COUNT(*) FROM audit_logs "+where)
	listQuery := database.Rebind(s.driver,
		"SELECT id, action, entity_type, entity_id, user_id, source, details, created_at FROM audit_logs "+
			where+" ORDER BY created_at DESC LIMIT ? OFFSET ?")
	listArgs := append(append([]any(nil), args...), filter.Limit, filter.Offset)

	return persistence.Run(ctx, s.runner, persistence.Named("audit.list",
		func(ctx context.Context, tx *persistence.Tx) (*ListResult, error) {
			var total int
			if err := tx.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
				return nil, fmt.Errorf("counting audit logs: %w", err)
			}

			rows, err := tx.QueryContext(ctx, listQuery, listArgs...)
			if err != nil {
				return nil, fmt.Errorf("querying audit logs: %w", err)
			}

			var scanned []logRow
			if err := sqlx.StructScan(rows, &scanned); err != nil {
				return nil, fmt.Errorf("scanning audit logs: %w", err)
			}

			logs := make([]AuditLog, 0, len(scanned))
			for _, row := range scanned {
				log, err := row.toLog()
				if err != nil {
					return nil, err
				}
				logs = append(logs, log)
			}

			return &ListResult{
				Logs:   logs,
				Total:  total,
				Limit:  filter.Limit,
				Offset: filter.Offset,
			}, nil
		}))
}

func (r logRow) toLog() (AuditLog, error) {
	log := AuditLog{
		ID:         r.ID,
		Action:     r.Action,
		EntityType: r.EntityType,
		EntityID:   r.EntityID.String,
		UserID:     r.UserID.String,
		Source:     r.Source,
	}

	if r.Details.Valid && r.Details.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(r.Details.String), &details) == nil {
			log.Details = details
		}
	}

	t, err := time.Parse(timestampLayout, r.CreatedAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("parsing audit log timestamp %q: %w", r.CreatedAt, err)
	}
	log.CreatedAt = t

	return log, nil
}
