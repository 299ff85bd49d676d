// Package scheduler periodically scans active schedule and poll trigger
// instances and fires the ones that are due. Webhook instances are
// event-driven and never scanned.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tideflow-io/tideflow/pkg/clock"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/protocol"
	"github.com/tideflow-io/tideflow/pkg/recurrence"
	"github.com/tideflow-io/tideflow/pkg/registry"
	"github.com/tideflow-io/tideflow/pkg/watermark"
)

// DefaultScanInterval is how often the scanner wakes up. Fire times are
// minute-granular, so scanning faster buys nothing.
const DefaultScanInterval = 15 * time.Second

// DefaultPollInterval spaces consecutive polls of one instance when its
// config does not set poll_interval_seconds.
const DefaultPollInterval = 5 * time.Minute

// FireFunc delivers one due trigger downstream.
type FireFunc func(ctx context.Context, instance *models.TriggerInstance, data map[string]any) error

// Scanner walks active trigger instances on a fixed cadence and fires due
// ones. Due times are precomputed into NextDueAt so a tick is one indexed
// read plus work proportional to the due set.
type Scanner struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	tracker     *watermark.Tracker
	fire        FireFunc
	clock       clock.Clock
	logger      *slog.Logger
	httpClient  *http.Client
	interval    time.Duration
}

type Option func(*Scanner)

func WithClock(c clock.Clock) Option {
	return func(s *Scanner) { s.clock = c }
}

func WithScanInterval(d time.Duration) Option {
	return func(s *Scanner) { s.interval = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Scanner) { s.httpClient = c }
}

func NewScanner(
	p persistence.Persistence,
	reg *registry.Registry,
	tracker *watermark.Tracker,
	fire FireFunc,
	logger *slog.Logger,
	opts ...Option,
) *Scanner {
	s := &Scanner{
		persistence: p,
		registry:    reg,
		tracker:     tracker,
		fire:        fire,
		clock:       clock.System{},
		logger:      logger.With("module", "scheduler"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		interval:    DefaultScanInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start runs the scan loop until ctx is cancelled.
func (s *Scanner) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting trigger scanner", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Trigger scanner stopped")

			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scan of schedule and poll instances.
func (s *Scanner) Tick(ctx context.Context) {
	if err := s.scanSchedules(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Schedule scan failed", "error", err)
	}

	if err := s.scanPolls(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Poll scan failed", "error", err)
	}
}

func (s *Scanner) scanSchedules(ctx context.Context) error {
	instances, err := s.persistence.TriggerInstanceRepository().ActiveByKind(ctx, models.TriggerKindSchedule)
	if err != nil {
		return fmt.Errorf("failed to list schedule instances: %w", err)
	}

	now := s.clock.Now()

	for _, instance := range instances {
		if err := s.processSchedule(ctx, instance, now); err != nil {
			s.logger.ErrorContext(ctx, "Failed to process schedule instance",
				"trigger_instance_id", instance.ID, "error", err)
		}
	}

	return nil
}

// processSchedule fires a due schedule instance and rolls NextDueAt forward.
// A freshly activated instance has no NextDueAt yet; its first due time is
// computed from the activation instant, which lands on the rule's start when
// activation precedes it.
func (s *Scanner) processSchedule(ctx context.Context, instance *models.TriggerInstance, now time.Time) error {
	rule, err := recurrence.RuleFromConfig(instance.Config)
	if err != nil {
		return err
	}

	if instance.NextDueAt == nil {
		return s.seedNextDue(ctx, instance, rule, now)
	}

	if instance.NextDueAt.After(now) {
		return nil
	}

	data := map[string]any{
		"scheduled_for": instance.NextDueAt.Format(time.RFC3339),
		"rule":          rule.Canonical(),
	}

	if err := s.fire(ctx, instance, data); err != nil {
		// Leave NextDueAt alone so the next tick retries the fire.
		return fmt.Errorf("failed to fire schedule trigger: %w", err)
	}

	s.logger.InfoContext(ctx, "Schedule trigger fired",
		"trigger_instance_id", instance.ID,
		"workflow_id", instance.WorkflowID,
		"scheduled_for", instance.NextDueAt)

	next, err := rule.NextFireAfter(*instance.NextDueAt)

	switch {
	case errors.Is(err, recurrence.ErrNoNextFire):
		// One-shot rule: deactivate after the single fire.
		instance.Active = false
		instance.NextDueAt = nil
	case err != nil:
		return err
	default:
		instance.NextDueAt = &next
	}

	return s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance)
}

func (s *Scanner) seedNextDue(ctx context.Context, instance *models.TriggerInstance, rule *recurrence.Rule, now time.Time) error {
	next, err := rule.NextFireAfter(now)
	if err != nil {
		if errors.Is(err, recurrence.ErrNoNextFire) {
			instance.Active = false

			return s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance)
		}

		return err
	}

	instance.NextDueAt = &next

	return s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance)
}

func (s *Scanner) scanPolls(ctx context.Context) error {
	instances, err := s.persistence.TriggerInstanceRepository().ActiveByKind(ctx, models.TriggerKindPoll)
	if err != nil {
		return fmt.Errorf("failed to list poll instances: %w", err)
	}

	now := s.clock.Now()

	for _, instance := range instances {
		if instance.NextDueAt != nil && instance.NextDueAt.After(now) {
			continue
		}

		if err := s.processPoll(ctx, instance, now); err != nil {
			s.logger.ErrorContext(ctx, "Failed to process poll instance",
				"trigger_instance_id", instance.ID, "error", err)
		}
	}

	return nil
}

// processPoll polls the connector, filters the batch through the watermark
// tracker, and fires one trigger event per fresh item. The watermark only
// advances after every fresh event was handed off, so a failed tick
// re-delivers rather than drops.
func (s *Scanner) processPoll(ctx context.Context, instance *models.TriggerInstance, now time.Time) error {
	trigger, err := s.registry.CreatePollTrigger(instance.ConnectorTriggerID, instance.Config)
	if err != nil {
		return fmt.Errorf("failed to create poll trigger: %w", err)
	}

	cctx := protocol.ConnectorContext{
		WorkflowID: instance.WorkflowID,
		Config:     instance.Config,
		Logger:     s.logger.With("trigger_instance_id", instance.ID),
		HTTPClient: s.httpClient,
	}

	candidates, err := trigger.Poll(ctx, cctx)
	if err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	batch, err := s.tracker.Process(ctx, instance.ID, candidates, trigger.ExtractTimestamp,
		func(fresh []map[string]any) error {
			for _, event := range fresh {
				if err := s.fire(ctx, instance, event); err != nil {
					return fmt.Errorf("failed to fire poll trigger: %w", err)
				}
			}

			return nil
		})
	if err != nil {
		return err
	}

	if len(batch.Fresh) > 0 {
		s.logger.InfoContext(ctx, "Poll trigger fired",
			"trigger_instance_id", instance.ID,
			"workflow_id", instance.WorkflowID,
			"fresh", len(batch.Fresh),
			"first_poll", batch.FirstPoll)
	}

	nextDue := now.Add(pollInterval(instance))
	instance.NextDueAt = &nextDue

	return s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance)
}

func pollInterval(instance *models.TriggerInstance) time.Duration {
	if seconds, ok := instance.Config["poll_interval_seconds"].(float64); ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if seconds, ok := instance.Config["poll_interval_seconds"].(int); ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return DefaultPollInterval
}
