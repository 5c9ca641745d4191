package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-persist/internal/persistence"
	"github.com/nerrad567/gray-logic-persist/internal/schema"
	"github.com/nerrad567/gray-logic-persist/migrations"
)

func newTestStore(t *testing.T) (*Store, *persistence.Runner) {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	plan, err := migrations.Plan()
	require.NoError(t, err)

	runner := persistence.NewRunner(persistence.NewPool(persistence.DBOpener{DB: db.DB}, nil), persistence.Options{})
	registry := schema.NewRegistry(runner, database.DriverSQLite, plan, nil)
	ctx := context.Background()
	_, err = registry.EnsureRegistryTable(ctx, plan.Descriptors())
	require.NoError(t, err)
	require.NoError(t, registry.Migrate(ctx, schema.Descriptor{Table: TableName, Version: 2}))

	return NewStore(runner, database.DriverSQLite), runner
}

func TestStore_CreateAndList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*AuditLog{
		{Action: "migrate", EntityType: "table", EntityID: "audit_logs", UserID: "alice", Source: "api",
			Details: map[string]any{"to": float64(2)}, CreatedAt: base},
		{Action: "migrate", EntityType: "table", EntityID: "widgets", Source: "startup", CreatedAt: base.Add(time.Second)},
		{Action: "check", EntityType: "registry", Source: "startup", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, store.Create(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, defaultLimit, all.Limit)
	require.Len(t, all.Logs, 3)
	assert.Equal(t, "check", all.Logs[0].Action, "most recent first")

	migrates, err := store.List(ctx, Filter{Action: "migrate", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, migrates.Total)
	require.Len(t, migrates.Logs, 1)

	got := migrates.Logs[0]
	assert.Equal(t, "audit_logs", got.EntityID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, map[string]any{"to": float64(2)}, got.Details)
	assert.True(t, base.Equal(got.CreatedAt))
}

func TestStore_ListClampsLimit(t *testing.T) {
	store, _ := newTestStore(t)

	res, err := store.List(context.Background(), Filter{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, res.Limit)
	assert.Equal(t, 0, res.Offset)
	assert.NotNil(t, res.Logs)
}

func TestStore_CreateJoinsEnclosingWork(t *testing.T) {
	store, runner := newTestStore(t)
	ctx := context.Background()

	_, err := persistence.Run(ctx, runner, persistence.WorkFunc[int](func(ctx context.Context, tx *persistence.Tx) (int, error) {
		if err := store.Create(ctx, &AuditLog{Action: "migrate", EntityType: "table", Source: "api"}); err != nil {
			return 0, err
		}
		return 0, assert.AnError
	}))
	require.Error(t, err)

	res, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total, "entry rolled back with the enclosing work")
}
