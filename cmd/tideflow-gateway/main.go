package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/tideflow-io/tideflow/pkg/cmd"
	"github.com/tideflow-io/tideflow/pkg/config"
	"github.com/tideflow-io/tideflow/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("gateway")

	app := &cli.Command{
		Name:                  "tideflow-gateway",
		Usage:                 "HTTP API and webhook ingress for tideflow workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the gateway on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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
				Name:    "seed-file",
				Usage:   "YAML file of workflows and trigger instances to apply at startup",
				Sources: cli.EnvVars("SEED_FILE"),
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

			logger.InfoContext(ctx, "Initializing tideflow gateway")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "gateway", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			reg := cmd.NewRegistry(logger)

			if seedFile := command.String("seed-file"); seedFile != "" {
				seed, err := config.LoadSeedFile(seedFile)
				if err != nil {
					return err
				}

				if err := seed.Apply(ctx, store, reg); err != nil {
					return err
				}

				logger.InfoContext(ctx, "Applied seed file",
					"file", seedFile,
					"workflows", len(seed.Workflows),
					"trigger_instances", len(seed.TriggerInstances))
			}

			gateway := NewGateway(logger, store, reg, eventBus)

			return gateway.Start(ctx, command.Int("port"))
		},
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
