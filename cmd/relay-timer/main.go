// Package main provides the Relay timer service: it sweeps the store for due
// wait timers and publishes resume signals for suspended runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/relayhq/relay/pkg/cmd"
	"github.com/relayhq/relay/pkg/log"
	"github.com/relayhq/relay/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "relay-timer",
		Usage:                 "Fire durable wait timers for suspended runs",
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
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "sweep-spec",
				Usage:   "Cron spec for the timer sweep",
				Value:   scheduler.DefaultSweepSpec,
				Sources: cli.EnvVars("SWEEP_SPEC"),
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

			logger := log.WithModule("relay-timer")
			logger.InfoContext(ctx, "Initializing Relay Timer")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "relay-timer", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			poller := scheduler.NewTimerPoller(persistence, eventBus, command.String("sweep-spec"), logger)

			err = poller.Start(ctx)
			if err != nil {
				return err
			}

			<-ctx.Done()
			logger.Info("Shutting down timer...")

			return poller.Stop(context.Background())
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
