package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/carbonlens/carbonflow/pkg/cmd"
	"github.com/carbonlens/carbonflow/pkg/config"
	"github.com/carbonlens/carbonflow/pkg/log"
	"github.com/carbonlens/carbonflow/pkg/otelhelper"
	"github.com/carbonlens/carbonflow/pkg/refresher"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "carbonflow-api",
		Usage:                 "Manage carbon-footprint workflow graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Graph store URL (file path, postgres:// or redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "carbon-factor-api",
				Usage:   "Base URL of the carbon-factor matching API",
				Value:   config.DefaultFactorAPIURL,
				Sources: cli.EnvVars("CARBON_FACTOR_API"),
			},
			&cli.IntFlag{
				Name:    "api-timeout",
				Usage:   "Factor-match API timeout in milliseconds",
				Value:   int(config.DefaultAPITimeout / time.Millisecond),
				Sources: cli.EnvVars("API_TIMEOUT"),
			},
			&cli.FloatFlag{
				Name:    "min-match-score",
				Usage:   "Minimum score for a factor candidate to be accepted",
				Value:   config.DefaultMinMatchScore,
				Sources: cli.EnvVars("MIN_MATCH_SCORE"),
			},
			&cli.IntFlag{
				Name:    "top-k",
				Usage:   "Maximum number of factor candidates to keep",
				Value:   config.DefaultTopK,
				Sources: cli.EnvVars("TOP_K"),
			},
			&cli.FloatFlag{
				Name:    "default-carbon-factor",
				Usage:   "Fallback emission factor when no match is found",
				Value:   config.DefaultCarbonFactor,
				Sources: cli.EnvVars("DEFAULT_CARBON_FACTOR"),
			},
			&cli.StringFlag{
				Name:    "default-unit",
				Usage:   "Fallback factor unit when no match is found",
				Value:   config.DefaultUnit,
				Sources: cli.EnvVars("DEFAULT_UNIT"),
			},
			&cli.StringFlag{
				Name:    "refresh-schedule",
				Usage:   "Cron schedule for the factor freshness sweep (empty disables)",
				Sources: cli.EnvVars("REFRESH_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "Optional YAML config file for score thresholds",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces (endpoint from OTEL_EXPORTER_OTLP_* environment)",
				Sources: cli.EnvVars("ENABLE_TRACING"),
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

			logger.InfoContext(ctx, "Initializing CarbonFlow API")

			cfg := config.LoadFileOrDefault(command.String("config-file"))
			cfg.Matcher.APIURL = command.String("carbon-factor-api")
			cfg.Matcher.Timeout = time.Duration(command.Int("api-timeout")) * time.Millisecond
			cfg.Matcher.MinMatchScore = command.Float("min-match-score")
			cfg.Matcher.TopK = command.Int("top-k")
			cfg.Matcher.DefaultFactor = command.Float("default-carbon-factor")
			cfg.Matcher.DefaultUnit = command.String("default-unit")

			if err := cfg.Validate(); err != nil {
				return err
			}

			if command.Bool("tracing") {
				shutdown, err := otelhelper.Setup(ctx, "carbonflow-api")
				if err != nil {
					return err
				}

				defer func() {
					if err := shutdown(context.Background()); err != nil {
						logger.ErrorContext(ctx, "Failed to shut down trace exporter", "error", err)
					}
				}()
			}

			store := cmd.NewGraphStore(ctx, logger, command.String("database-url"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close graph store", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(logger, cfg, store, eventBus)

			if schedule := command.String("refresh-schedule"); schedule != "" {
				sweep := refresher.New(api.WorkflowService(), schedule, logger)
				if err := sweep.Start(ctx); err != nil {
					return err
				}

				defer sweep.Stop()
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
