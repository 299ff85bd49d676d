package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// MockWorkflowRepository is a mock implementation of
// persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockTriggerInstanceRepository is a mock implementation of
// persistence.TriggerInstanceRepository interface.
type MockTriggerInstanceRepository struct {
	mock.Mock
}

func (m *MockTriggerInstanceRepository) TriggerInstances(ctx context.Context) ([]*models.TriggerInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TriggerInstance), args.Error(1)
}

func (m *MockTriggerInstanceRepository) TriggerInstanceByID(ctx context.Context, id string) (*models.TriggerInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.TriggerInstance), args.Error(1)
}

func (m *MockTriggerInstanceRepository) ActiveByKind(ctx context.Context, kind models.TriggerKind) ([]*models.TriggerInstance, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TriggerInstance), args.Error(1)
}

func (m *MockTriggerInstanceRepository) ActiveWebhooksByConnector(ctx context.Context, connectorTriggerID string) ([]*models.TriggerInstance, error) {
	args := m.Called(ctx, connectorTriggerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TriggerInstance), args.Error(1)
}

func (m *MockTriggerInstanceRepository) SaveTriggerInstance(ctx context.Context, instance *models.TriggerInstance) error {
	args := m.Called(ctx, instance)

	return args.Error(0)
}

func (m *MockTriggerInstanceRepository) DeleteTriggerInstance(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of
// persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) SaveExecution(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

// MockWatermarkRepository is a mock implementation of
// persistence.WatermarkRepository interface.
type MockWatermarkRepository struct {
	mock.Mock
}

func (m *MockWatermarkRepository) Watermark(ctx context.Context, triggerInstanceID string) (*models.PollWatermark, error) {
	args := m.Called(ctx, triggerInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.PollWatermark), args.Error(1)
}

func (m *MockWatermarkRepository) SaveWatermark(ctx context.Context, watermark *models.PollWatermark) error {
	args := m.Called(ctx, watermark)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence that
// hands out the repository mocks it was built with.
type MockPersistence struct {
	mock.Mock

	WorkflowRepo        *MockWorkflowRepository
	TriggerInstanceRepo *MockTriggerInstanceRepository
	ExecutionRepo       *MockExecutionRepository
	WatermarkRepo       *MockWatermarkRepository
}

// NewMockPersistence builds a MockPersistence with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		WorkflowRepo:        &MockWorkflowRepository{},
		TriggerInstanceRepo: &MockTriggerInstanceRepository{},
		ExecutionRepo:       &MockExecutionRepository{},
		WatermarkRepo:       &MockWatermarkRepository{},
	}
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.WorkflowRepo
}

func (m *MockPersistence) TriggerInstanceRepository() persistence.TriggerInstanceRepository {
	return m.TriggerInstanceRepo
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.ExecutionRepo
}

func (m *MockPersistence) WatermarkRepository() persistence.WatermarkRepository {
	return m.WatermarkRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
