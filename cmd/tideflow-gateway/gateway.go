// Package main provides the tideflow gateway: the workflow HTTP API and the
// webhook ingress.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/google/uuid"

	"github.com/tideflow-io/tideflow/pkg/engine"
	"github.com/tideflow-io/tideflow/pkg/eventbus"
	"github.com/tideflow-io/tideflow/pkg/events"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/notify"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/registry"
	"github.com/tideflow-io/tideflow/pkg/router"
	"github.com/tideflow-io/tideflow/pkg/web"
)

type Gateway struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewGateway(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *Gateway {
	return &Gateway{
		logger:      logger,
		persistence: p,
		registry:    reg,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// App builds the fiber application: synchronous workflow and execution
// endpoints plus the webhook ingress. Webhook fan-out does not start
// executions in-process; it publishes TriggerFired for the engine service.
func (g *Gateway) App() *fiber.App {
	eng := engine.NewEngine(g.persistence, g.registry, g.eventBus, g.logger,
		engine.WithNotifier(notify.NewBusNotifier(g.eventBus, g.logger)))

	webhookRouter := router.NewRouter(
		g.persistence.TriggerInstanceRepository(),
		g.registry,
		g.fireTrigger,
		g.logger,
	)

	handlers := web.NewAPIHandlers(eng, webhookRouter, g.persistence, g.registry, g.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	handlers.Register(app)

	return app
}

func (g *Gateway) fireTrigger(ctx context.Context, instance *models.TriggerInstance, data map[string]any) error {
	return g.eventBus.Publish(ctx, instance.WorkflowID, events.TriggerFired{
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

func (g *Gateway) Start(ctx context.Context, port int) error {
	app := g.App()

	g.logger.InfoContext(ctx, "Gateway listening", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
