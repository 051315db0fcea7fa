// Package main provides the Relay engine worker: it consumes inbound events
// and resume signals from the bus and executes automation runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/relayhq/relay/pkg/actions"
	"github.com/relayhq/relay/pkg/cmd"
	"github.com/relayhq/relay/pkg/log"
	"github.com/relayhq/relay/pkg/otelhelper"
	"github.com/relayhq/relay/pkg/runner"
	"github.com/relayhq/relay/pkg/transport"
)

func main() {
	command := &cli.Command{
		Name:                  "relay-engine",
		Usage:                 "Execute automation runs for inbound events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
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
				Name:    "sms-base-url",
				Usage:   "Base URL of the SMS provider API",
				Sources: cli.EnvVars("SMS_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "sms-api-key",
				Usage:   "API key for the SMS provider",
				Sources: cli.EnvVars("SMS_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "email-base-url",
				Usage:   "Base URL of the email provider API",
				Sources: cli.EnvVars("EMAIL_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "email-api-key",
				Usage:   "API key for the email provider",
				Sources: cli.EnvVars("EMAIL_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "messaging-identities",
				Usage:   "Org messaging identities as slug=identity pairs, comma separated",
				Sources: cli.EnvVars("MESSAGING_IDENTITIES"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("OTEL_ENABLED"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("relay-engine").With("workerId", workerID)
			logger.InfoContext(ctx, "Initializing Relay Engine")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var tracer trace.Tracer

			if command.Bool("otel-enabled") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "relay-engine")
				if err != nil {
					return err
				}
			}

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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "relay-engine", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			deps := actions.Dependencies{
				Store:     persistence,
				SMS:       transport.NewHTTPSMSSender(command.String("sms-base-url"), command.String("sms-api-key"), logger),
				Email:     transport.NewHTTPEmailSender(command.String("email-base-url"), command.String("email-api-key"), logger),
				Messaging: parseMessagingIdentities(command.String("messaging-identities")),
			}

			orchestrator := runner.NewOrchestrator(persistence, eventBus, deps, logger)
			router := runner.NewRouter(persistence, orchestrator, logger)
			worker := runner.NewWorker(persistence, eventBus, router, orchestrator, tracer, logger)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start engine worker", "error", err)

				return err
			}

			<-ctx.Done()
			logger.Info("Shutting down engine...")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

// parseMessagingIdentities parses "acme=MG-acme,globex=MG-globex".
func parseMessagingIdentities(raw string) *transport.StaticMessagingConfig {
	identities := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 && parts[0] != "" {
			identities[parts[0]] = parts[1]
		}
	}

	return transport.NewStaticMessagingConfig(identities)
}
