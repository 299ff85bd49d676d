// Package file provides file-based persistence for workflows, trigger
// instances, executions and poll watermarks. Suited to local development and
// single-node deployments.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system. Each entity is one JSON document under its own subdirectory.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	triggerRepo   *TriggerInstanceRepository
	executionRepo *ExecutionRepository
	watermarkRepo *WatermarkRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		triggerRepo:   NewTriggerInstanceRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
		watermarkRepo: NewWatermarkRepository(cleanRoot),
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) TriggerInstanceRepository() persistence.TriggerInstanceRepository {
	return fp.triggerRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) WatermarkRepository() persistence.WatermarkRepository {
	return fp.watermarkRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. There is nothing to clean up for
// file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
