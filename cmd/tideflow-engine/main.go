package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/tideflow-io/tideflow/pkg/cmd"
	"github.com/tideflow-io/tideflow/pkg/log"
)

func main() {
	logger := log.WithModule("engine")

	app := &cli.Command{
		Name:                  "tideflow-engine",
		Usage:                 "Runs workflow executions and scans schedule and poll triggers",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Optional Redis URL for poll watermarks",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "scan-interval",
				Usage:   "Interval between trigger scan ticks",
				Value:   15 * time.Second,
				Sources: cli.EnvVars("SCAN_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing tideflow engine")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(context.Background()); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "engine", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			watermarks, err := cmd.NewWatermarkRepository(ctx, store, command.String("redis-url"))
			if err != nil {
				return err
			}

			service := NewService(ServiceConfig{
				Logger:       logger,
				Persistence:  store,
				Registry:     cmd.NewRegistry(logger),
				EventBus:     eventBus,
				Watermarks:   watermarks,
				ScanInterval: command.Duration("scan-interval"),
				Tracing:      command.Bool("tracing"),
			})

			return service.Run(ctx)
		},
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
