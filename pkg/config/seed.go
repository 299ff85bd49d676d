// Package config provides declarative seeding: workflows and trigger
// instances loaded from a YAML file at gateway startup, for demos and
// GitOps-style deployments where definitions live in the repo instead of
// being created through the API.
package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/services"
)

// SeedFile is the top-level structure of a seed YAML file.
type SeedFile struct {
	Workflows        []SeedWorkflow        `yaml:"workflows"`
	TriggerInstances []SeedTriggerInstance `yaml:"trigger_instances"`
}

// SeedWorkflow declares one workflow. Active controls whether the workflow
// is armed after seeding.
type SeedWorkflow struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Active      bool           `yaml:"active"`
	Variables   map[string]any `yaml:"variables"`
	Owner       string         `yaml:"owner"`
	Nodes       []SeedNode     `yaml:"nodes"`
	Edges       []SeedEdge     `yaml:"edges"`
}

type SeedNode struct {
	ID          string         `yaml:"id"`
	ConnectorID string         `yaml:"connector_id"`
	Name        string         `yaml:"name"`
	Config      map[string]any `yaml:"config"`
	Assignee    string         `yaml:"assignee"`
	Disabled    bool           `yaml:"disabled"`
}

type SeedEdge struct {
	ID      string `yaml:"id"`
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	OnError bool   `yaml:"on_error"`
}

// SeedTriggerInstance declares one trigger instance attached to a seeded
// workflow.
type SeedTriggerInstance struct {
	ID                 string         `yaml:"id"`
	WorkflowID         string         `yaml:"workflow_id"`
	ConnectorTriggerID string         `yaml:"connector_trigger_id"`
	Kind               string         `yaml:"kind"`
	Config             map[string]any `yaml:"config"`
	ConnectionRef      string         `yaml:"connection_ref"`
	Active             bool           `yaml:"active"`
}

// LoadSeedFile reads and parses a seed YAML file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}

	return &seed, nil
}

// Validate checks referential integrity before anything touches storage, so
// a broken seed file aborts startup instead of half-applying.
func (s *SeedFile) Validate() error {
	workflowIDs := make(map[string]bool, len(s.Workflows))

	for i, workflow := range s.Workflows {
		if workflow.ID == "" {
			return fmt.Errorf("workflows[%d]: id is required", i)
		}

		if workflowIDs[workflow.ID] {
			return fmt.Errorf("workflows[%d]: duplicate id %q", i, workflow.ID)
		}

		workflowIDs[workflow.ID] = true

		if workflow.Name == "" {
			return fmt.Errorf("workflows[%d]: name is required", i)
		}
	}

	for i, instance := range s.TriggerInstances {
		if instance.ID == "" {
			return fmt.Errorf("trigger_instances[%d]: id is required", i)
		}

		if !workflowIDs[instance.WorkflowID] {
			return fmt.Errorf("trigger_instances[%d]: unknown workflow_id %q", i, instance.WorkflowID)
		}

		switch models.TriggerKind(instance.Kind) {
		case models.TriggerKindSchedule, models.TriggerKindPoll, models.TriggerKindWebhook:
		default:
			return fmt.Errorf("trigger_instances[%d]: unknown kind %q", i, instance.Kind)
		}
	}

	return nil
}

// Apply upserts the seeded definitions through the service layer so they
// pass the same validation as API writes. Seeding is idempotent: re-applying
// the same file overwrites the previous definitions.
func (s *SeedFile) Apply(ctx context.Context, p persistence.Persistence, validator services.ConfigValidator) error {
	workflows := services.NewWorkflow(p)
	triggers := services.NewTriggerInstances(p, validator)

	for _, seed := range s.Workflows {
		if err := applyWorkflow(ctx, workflows, p, seed); err != nil {
			return fmt.Errorf("failed to seed workflow %s: %w", seed.ID, err)
		}
	}

	for _, seed := range s.TriggerInstances {
		if err := applyTriggerInstance(ctx, triggers, p, seed); err != nil {
			return fmt.Errorf("failed to seed trigger instance %s: %w", seed.ID, err)
		}
	}

	return nil
}

func applyWorkflow(ctx context.Context, service *services.Workflow, p persistence.Persistence, seed SeedWorkflow) error {
	workflow := seed.toModel()

	_, err := p.WorkflowRepository().WorkflowByID(ctx, seed.ID)

	switch {
	case err == nil:
		// Disarm before replacing so graph changes are accepted.
		if _, err := service.Deactivate(ctx, seed.ID); err != nil {
			return err
		}

		if _, err := service.Update(ctx, seed.ID, workflow); err != nil {
			return err
		}
	case persistence.IsWorkflowNotFound(err):
		if _, err := service.Create(ctx, workflow); err != nil {
			return err
		}
	default:
		return err
	}

	if seed.Active {
		_, err = service.Activate(ctx, seed.ID)
	} else {
		_, err = service.Deactivate(ctx, seed.ID)
	}

	return err
}

func applyTriggerInstance(ctx context.Context, service *services.TriggerInstances, p persistence.Persistence, seed SeedTriggerInstance) error {
	instance := seed.toModel()

	_, err := p.TriggerInstanceRepository().TriggerInstanceByID(ctx, seed.ID)

	switch {
	case err == nil:
		if _, err := service.Update(ctx, seed.ID, instance); err != nil {
			return err
		}
	case persistence.IsTriggerInstanceNotFound(err):
		if _, err := service.Create(ctx, instance); err != nil {
			return err
		}
	default:
		return err
	}

	if seed.Active {
		_, err = service.Activate(ctx, seed.ID)
	} else {
		_, err = service.Deactivate(ctx, seed.ID)
	}

	return err
}

func (w SeedWorkflow) toModel() *models.Workflow {
	workflow := &models.Workflow{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Variables:   w.Variables,
		Owner:       w.Owner,
	}

	for _, node := range w.Nodes {
		workflow.Nodes = append(workflow.Nodes, &models.WorkflowNode{
			ID:          node.ID,
			ConnectorID: node.ConnectorID,
			Name:        node.Name,
			Config:      node.Config,
			Assignee:    node.Assignee,
			Enabled:     !node.Disabled,
		})
	}

	for _, edge := range w.Edges {
		workflow.Edges = append(workflow.Edges, &models.Edge{
			ID:      edge.ID,
			Source:  edge.Source,
			Target:  edge.Target,
			OnError: edge.OnError,
		})
	}

	return workflow
}

func (t SeedTriggerInstance) toModel() *models.TriggerInstance {
	return &models.TriggerInstance{
		ID:                 t.ID,
		WorkflowID:         t.WorkflowID,
		ConnectorTriggerID: t.ConnectorTriggerID,
		Kind:               models.TriggerKind(t.Kind),
		Config:             t.Config,
		ConnectionRef:      t.ConnectionRef,
	}
}
