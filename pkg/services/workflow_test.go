package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tideflow-io/tideflow/pkg/mocks"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence/memory"
	"github.com/tideflow-io/tideflow/pkg/testutil"
)

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		Name: "nightly report",
		Nodes: []*models.WorkflowNode{
			{ID: "fetch", ConnectorID: "http_request", Name: "Fetch", Enabled: true},
			{ID: "notify", ConnectorID: "log", Name: "Notify", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "fetch", Target: "notify"},
		},
	}
}

func TestWorkflowService_Create(t *testing.T) {
	service := NewWorkflow(memory.NewPersistence())

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusInactive, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	loaded, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly report", loaded.Name)
}

func TestWorkflowService_CreateValidation(t *testing.T) {
	service := NewWorkflow(memory.NewPersistence())

	t.Run("nil workflow", func(t *testing.T) {
		_, err := service.Create(t.Context(), nil)
		require.ErrorIs(t, err, ErrWorkflowNil)
		assert.True(t, IsValidationError(err))
	})

	t.Run("missing name", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Name = ""

		_, err := service.Create(t.Context(), workflow)
		require.ErrorIs(t, err, ErrWorkflowNameRequired)
	})

	t.Run("no enabled nodes", func(t *testing.T) {
		workflow := validWorkflow()
		for _, node := range workflow.Nodes {
			node.Enabled = false
		}

		_, err := service.Create(t.Context(), workflow)
		require.ErrorIs(t, err, ErrNodesRequired)
	})

	t.Run("duplicate node id", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Nodes = append(workflow.Nodes, &models.WorkflowNode{
			ID: "fetch", ConnectorID: "log", Name: "Dup", Enabled: true,
		})

		_, err := service.Create(t.Context(), workflow)
		require.ErrorIs(t, err, ErrDuplicateNodeID)
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Edges = append(workflow.Edges, &models.Edge{
			ID: "e2", Source: "fetch", Target: "ghost",
		})

		_, err := service.Create(t.Context(), workflow)
		require.ErrorIs(t, err, ErrUnknownEdgeEndpoint)
	})

	t.Run("cycle with no root", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Edges = append(workflow.Edges, &models.Edge{
			ID: "e2", Source: "notify", Target: "fetch",
		})

		_, err := service.Create(t.Context(), workflow)
		require.ErrorIs(t, err, ErrNoRootNode)
	})
}

func TestWorkflowService_UpdateActiveGraphFrozen(t *testing.T) {
	service := NewWorkflow(memory.NewPersistence())

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	_, err = service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	changed := validWorkflow()
	changed.Nodes = append(changed.Nodes, &models.WorkflowNode{
		ID: "extra", ConnectorID: "log", Name: "Extra", Enabled: true,
	})
	changed.Edges = append(changed.Edges, &models.Edge{
		ID: "e2", Source: "notify", Target: "extra",
	})

	_, err = service.Update(t.Context(), created.ID, changed)
	require.ErrorIs(t, err, ErrWorkflowActive)
	assert.True(t, IsConflictError(err))

	// Renaming is allowed while active.
	renamed := validWorkflow()
	renamed.Name = "weekly report"

	updated, err := service.Update(t.Context(), created.ID, renamed)
	require.NoError(t, err)
	assert.Equal(t, "weekly report", updated.Name)
	assert.Equal(t, models.WorkflowStatusActive, updated.Status)
}

func TestWorkflowService_ActivateDeactivate(t *testing.T) {
	service := NewWorkflow(memory.NewPersistence())

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	active, err := service.Activate(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, active.Status)

	inactive, err := service.Deactivate(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusInactive, inactive.Status)

	_, err = service.Activate(t.Context(), "missing")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflowService_DeleteCascades(t *testing.T) {
	store := memory.NewPersistence()
	service := NewWorkflow(store)

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	instance := testutil.CreateTestTriggerInstance(created.ID)
	require.NoError(t, store.TriggerInstanceRepository().SaveTriggerInstance(t.Context(), instance))

	require.NoError(t, service.Delete(t.Context(), created.ID))

	_, err = service.FetchByID(t.Context(), created.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	instances, err := store.TriggerInstanceRepository().TriggerInstances(t.Context())
	require.NoError(t, err)
	assert.Empty(t, instances)

	// Deleting again is a no-op.
	require.NoError(t, service.Delete(t.Context(), created.ID))
}

func TestWorkflowService_StorageFailure(t *testing.T) {
	store := mocks.NewMockPersistence()
	store.WorkflowRepo.On("SaveWorkflow", mock.Anything, mock.Anything).
		Return(errors.New("connection reset"))

	service := NewWorkflow(store)

	_, err := service.Create(t.Context(), validWorkflow())
	require.ErrorContains(t, err, "connection reset")
	assert.False(t, IsValidationError(err))

	store.WorkflowRepo.AssertExpectations(t)
}
