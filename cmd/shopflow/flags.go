package main

import (
	"context"
	"log/slog"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/shopflow/pkg/channels/kafka"
	"github.com/dukex/shopflow/pkg/cmd"
)

const defaultPort = 9091

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL for persistence (postgres:// or a directory)",
			Value:   "./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (local, gochannel, kafka)",
			Value:   cmd.EventBusLocal,
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "options-url",
			Usage:   "Option store URL (memory or redis://)",
			Value:   "memory",
			Sources: cli.EnvVars("OPTIONS_URL"),
		},
		&cli.StringFlag{
			Name:    "lock-url",
			Usage:   "Redis URL for job locks, defaults to the option store",
			Sources: cli.EnvVars("LOCK_URL"),
		},
		&cli.StringFlag{
			Name:    "fixtures-path",
			Usage:   "JSON file with the shop entities to load",
			Sources: cli.EnvVars("FIXTURES_PATH"),
		},
		&cli.StringFlag{
			Name:  "plugins-path",
			Usage: "Path to the directory containing action plugins",
			Value: "./plugins",
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func engineConfig(command *cli.Command, serviceName string) cmd.Config {
	return cmd.Config{
		DatabaseURL:  command.String("database-url"),
		EventBus:     command.String("event-bus"),
		KafkaBrokers: kafka.ParseBrokers(command.String("kafka-brokers")),
		OptionsURL:   command.String("options-url"),
		LockURL:      command.String("lock-url"),
		FixturesPath: command.String("fixtures-path"),
		PluginsPath:  command.String("plugins-path"),
		ServiceName:  serviceName,
		Tracing:      command.Bool("tracing"),
	}
}

// withEngine builds the engine, runs fn and closes the engine.
func withEngine(ctx context.Context, logger *slog.Logger, cfg cmd.Config, fn func(*cmd.Engine) error) error {
	engine, err := cmd.NewEngine(ctx, logger, cfg)
	if err != nil {
		return err
	}

	defer func() {
		// The run context may already be cancelled here.
		err := engine.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close engine", "error", err)
		}
	}()

	return fn(engine)
}
