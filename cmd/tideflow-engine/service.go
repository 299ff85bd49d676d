// Package main provides the tideflow engine service: it consumes TriggerFired
// events into executions and runs the schedule and poll scanner.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tideflow-io/tideflow/pkg/clock"
	"github.com/tideflow-io/tideflow/pkg/engine"
	"github.com/tideflow-io/tideflow/pkg/eventbus"
	"github.com/tideflow-io/tideflow/pkg/events"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/notify"
	"github.com/tideflow-io/tideflow/pkg/otelhelper"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/registry"
	"github.com/tideflow-io/tideflow/pkg/scheduler"
	"github.com/tideflow-io/tideflow/pkg/watermark"
)

type ServiceConfig struct {
	Logger       *slog.Logger
	Persistence  persistence.Persistence
	Registry     *registry.Registry
	EventBus     eventbus.EventBus
	Watermarks   persistence.WatermarkRepository
	ScanInterval time.Duration
	Tracing      bool
}

type Service struct {
	cfg ServiceConfig
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{cfg: cfg}
}

// Run wires the engine behind the event bus and blocks on the trigger
// scanner until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	logger := s.cfg.Logger

	engineOpts := []engine.Option{
		engine.WithNotifier(notify.NewBusNotifier(s.cfg.EventBus, logger)),
	}

	if s.cfg.Tracing {
		tracer, err := otelhelper.NewTracer(ctx, "tideflow-engine")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		engineOpts = append(engineOpts, engine.WithTracer(tracer))
	}

	eng := engine.NewEngine(s.cfg.Persistence, s.cfg.Registry, s.cfg.EventBus, logger, engineOpts...)

	err := s.cfg.EventBus.Handle(events.TriggerFiredEvent, func(ctx context.Context, event any) error {
		fired, ok := event.(*events.TriggerFired)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		execution, err := eng.Start(ctx, fired.WorkflowID, "", fired.TriggerData)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to start execution",
				"workflow_id", fired.WorkflowID,
				"trigger_instance_id", fired.TriggerInstanceID,
				"error", err)

			return err
		}

		logger.InfoContext(ctx, "Execution started from trigger",
			"execution_id", execution.ID,
			"trigger_instance_id", fired.TriggerInstanceID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register trigger handler: %w", err)
	}

	err = s.cfg.EventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	tracker := watermark.NewTracker(s.cfg.Watermarks, clock.System{}, logger)

	scanner := scheduler.NewScanner(
		s.cfg.Persistence,
		s.cfg.Registry,
		tracker,
		s.fireTrigger,
		logger,
		scheduler.WithScanInterval(s.cfg.ScanInterval),
	)

	logger.InfoContext(ctx, "Engine running", "scan_interval", s.cfg.ScanInterval)

	err = scanner.Start(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

func (s *Service) fireTrigger(ctx context.Context, instance *models.TriggerInstance, data map[string]any) error {
	return s.cfg.EventBus.Publish(ctx, instance.WorkflowID, events.TriggerFired{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.TriggerFiredEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: instance.WorkflowID,
		},
		TriggerInstanceID: instance.ID,
		Kind:              instance.Kind,
		TriggerData:       data,
	})
}
