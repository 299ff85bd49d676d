package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// ExecutionRepository handles execution file operations. Writes are
// serialized by a process-wide mutex so the optimistic version check is
// race-free within one process.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// ExecutionByID retrieves an execution from the file system.
func (er *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	filePath := filepath.Clean(path.Join(er.root, "executions", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	var execution models.Execution

	err = json.Unmarshal(body, &execution)
	if err != nil {
		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	return &execution, nil
}

// SaveExecution persists an execution. The stored version must be exactly one
// behind the incoming one (or absent), otherwise the write lost an
// optimistic-concurrency race and fails with ErrVersionConflict.
func (er *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.ExecutionByID(ctx, execution.ID)
	if err != nil && !persistence.IsExecutionNotFound(err) {
		return err
	}

	if stored != nil && execution.Version <= stored.Version {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrVersionConflict)
	}

	if err := os.MkdirAll(path.Join(er.root, "executions"), 0750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	filePath := path.Join(er.root, "executions", execution.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// ExecutionsByWorkflow returns all executions of one workflow.
func (er *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	dir := path.Join(er.root, "executions")

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil || len(jsonFiles) == 0 {
		return []*models.Execution{}, nil
	}

	executions := make([]*models.Execution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		executionID := file[:len(file)-5]

		execution, err := er.ExecutionByID(ctx, executionID)
		if err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}
