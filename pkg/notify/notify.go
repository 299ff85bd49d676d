// Package notify delivers pause notifications to an external notification
// collaborator via the event bus.
package notify

import (
	"context"
	"log/slog"

	"github.com/tideflow-io/tideflow/pkg/eventbus"
	"github.com/tideflow-io/tideflow/pkg/events"
)

// Notifier receives exactly one notification per pause-with-notification
// transition.
type Notifier interface {
	Notify(ctx context.Context, notification events.NotificationRequested) error
}

// BusNotifier publishes notification events on the event bus.
type BusNotifier struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewBusNotifier(publisher eventbus.EventPublisher, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{
		publisher: publisher,
		logger:    logger.With("module", "notifier"),
	}
}

func (n *BusNotifier) Notify(ctx context.Context, notification events.NotificationRequested) error {
	n.logger.InfoContext(ctx, "Emitting pause notification",
		"execution_id", notification.ExecutionID,
		"node_id", notification.NodeID,
		"assignee", notification.Assignee)

	return n.publisher.Publish(ctx, notification.ExecutionID, notification)
}

// Discard drops notifications, for tests and setups without a notification
// collaborator.
type Discard struct{}

func (Discard) Notify(context.Context, events.NotificationRequested) error {
	return nil
}
