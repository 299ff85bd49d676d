package postgres_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/persistence/postgres"
)

var postgresContainer *tcpostgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"poll_watermarks", "executions", "trigger_instances", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgres.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("tideflow_test"),
			tcpostgres.WithUsername("tideflow"),
			tcpostgres.WithPassword("tideflow"),
			tcpostgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgres.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx
}

func TestPersistence_HealthCheck(t *testing.T) {
	store, ctx := setupTestDB(t)

	require.NoError(t, store.HealthCheck(ctx))
}

func TestWorkflowRepository_SaveAndLoad(t *testing.T) {
	store, ctx := setupTestDB(t)
	repo := store.WorkflowRepository()

	workflow := &models.Workflow{
		ID:     uuid.New().String(),
		Name:   "Order pipeline",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "fetch", ConnectorID: "http_request", Name: "Fetch", Enabled: true,
				Config: map[string]any{"url": "https://api.example.com/orders"}},
			{ID: "note", ConnectorID: "log", Name: "Note", Enabled: true,
				Config: map[string]any{"message": "done"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "fetch", Target: "note"},
		},
	}

	require.NoError(t, repo.SaveWorkflow(ctx, workflow))

	loaded, err := repo.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Order pipeline", loaded.Name)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "http_request", loaded.Nodes[0].ConnectorID)

	all, err := repo.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkflowRepository_DeleteHidesWorkflow(t *testing.T) {
	store, ctx := setupTestDB(t)
	repo := store.WorkflowRepository()

	workflow := &models.Workflow{
		ID:     uuid.New().String(),
		Name:   "Short lived",
		Status: models.WorkflowStatusInactive,
	}
	require.NoError(t, repo.SaveWorkflow(ctx, workflow))
	require.NoError(t, repo.DeleteWorkflow(ctx, workflow.ID))

	_, err := repo.WorkflowByID(ctx, workflow.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	require.NoError(t, repo.DeleteWorkflow(ctx, "missing"))
}

func TestTriggerInstanceRepository_ScanAndRouteSets(t *testing.T) {
	store, ctx := setupTestDB(t)
	repo := store.TriggerInstanceRepository()

	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	instances := []*models.TriggerInstance{
		{ID: "t-sched", WorkflowID: "wf-1", ConnectorTriggerID: "cron", Kind: models.TriggerKindSchedule,
			Active: true, NextDueAt: &due},
		{ID: "t-poll", WorkflowID: "wf-1", ConnectorTriggerID: "feed_poll", Kind: models.TriggerKindPoll,
			Active: true},
		{ID: "t-hook", WorkflowID: "wf-2", ConnectorTriggerID: "slack", Kind: models.TriggerKindWebhook,
			Active: true, Config: map[string]any{"signing_secret": "s"}},
		{ID: "t-off", WorkflowID: "wf-2", ConnectorTriggerID: "slack", Kind: models.TriggerKindWebhook,
			Active: false},
	}
	for _, instance := range instances {
		require.NoError(t, repo.SaveTriggerInstance(ctx, instance))
	}

	schedules, err := repo.ActiveByKind(ctx, models.TriggerKindSchedule)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "t-sched", schedules[0].ID)
	require.NotNil(t, schedules[0].NextDueAt)
	assert.True(t, schedules[0].NextDueAt.Equal(due))

	hooks, err := repo.ActiveWebhooksByConnector(ctx, "slack")
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "t-hook", hooks[0].ID)
	assert.Equal(t, "s", hooks[0].Config["signing_secret"])

	_, err = repo.TriggerInstanceByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrTriggerInstanceNotFound)
}

func TestExecutionRepository_VersionConflict(t *testing.T) {
	store, ctx := setupTestDB(t)
	repo := store.ExecutionRepository()

	execution := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		Version:    1,
		Nodes: []*models.NodeState{
			{ID: "fetch", Status: models.NodeStatusPending},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.SaveExecution(ctx, execution))

	// A second writer with the same loaded version loses the race.
	stale := *execution
	require.ErrorIs(t, repo.SaveExecution(ctx, &stale), persistence.ErrVersionConflict)

	execution.Version = 2
	execution.Status = models.ExecutionStatusPaused
	require.NoError(t, repo.SaveExecution(ctx, execution))

	loaded, err := repo.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, loaded.Status)
	assert.Equal(t, int64(2), loaded.Version)

	byWorkflow, err := repo.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)

	_, err = repo.ExecutionByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestWatermarkRepository_RoundTrip(t *testing.T) {
	store, ctx := setupTestDB(t)
	repo := store.WatermarkRepository()

	_, err := repo.Watermark(ctx, "t-poll")
	require.ErrorIs(t, err, persistence.ErrWatermarkNotFound)

	millis := int64(1200)
	polled := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveWatermark(ctx, &models.PollWatermark{
		TriggerInstanceID: "t-poll",
		LastSeenMillis:    &millis,
		LastPolledAt:      &polled,
	}))

	loaded, err := repo.Watermark(ctx, "t-poll")
	require.NoError(t, err)
	require.NotNil(t, loaded.LastSeenMillis)
	assert.Equal(t, int64(1200), *loaded.LastSeenMillis)
	require.NotNil(t, loaded.LastPolledAt)
	assert.True(t, loaded.LastPolledAt.Equal(polled))
}
