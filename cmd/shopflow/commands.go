package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/shopflow/pkg/cmd"
	"github.com/dukex/shopflow/pkg/log"
)

// ServeCommand runs the engine and the admin API in one process.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the engine and the admin API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Shopflow API")

			return withEngine(ctx, logger, engineConfig(command, "shopflow-api"), func(engine *cmd.Engine) error {
				err := engine.Start(ctx)
				if err != nil {
					return err
				}

				return NewAPI(logger, engine).Start(ctx, int(command.Int("port")))
			})
		},
	}
}

// WorkerCommand runs the event hooks and the recurring jobs without the API.
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   "Start the engine without the admin API",
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("worker")
			logger.InfoContext(ctx, "Initializing Shopflow worker")

			return withEngine(ctx, logger, engineConfig(command, "shopflow-worker"), func(engine *cmd.Engine) error {
				err := engine.Start(ctx)
				if err != nil {
					return err
				}

				<-ctx.Done()
				logger.InfoContext(ctx, "Shutting down worker")

				return nil
			})
		},
	}
}

// QueueCommand groups one-shot queue maintenance.
func QueueCommand() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Process or clean the queue once",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run every due queued event",
				Action: func(ctx context.Context, command *cli.Command) error {
					logger := log.WithModule("queue")

					return withEngine(ctx, logger, engineConfig(command, "shopflow-queue"), func(engine *cmd.Engine) error {
						n, err := engine.Worker.Run(ctx)
						logger.InfoContext(ctx, "Queue run finished", "processed", n)

						return err
					})
				},
			},
			{
				Name:  "cleanup",
				Usage: "Remove failed events older than the retention period",
				Action: func(ctx context.Context, command *cli.Command) error {
					logger := log.WithModule("queue")

					return withEngine(ctx, logger, engineConfig(command, "shopflow-queue"), func(engine *cmd.Engine) error {
						n, err := engine.Worker.Cleanup(ctx)
						logger.InfoContext(ctx, "Queue cleanup finished", "removed", n)

						return err
					})
				},
			},
		},
	}
}

// EventsCommand reports async event requirements.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Inspect async events",
		Commands: []*cli.Command{
			{
				Name:  "required",
				Usage: "List the async events needed by enabled workflows",
				Action: func(ctx context.Context, command *cli.Command) error {
					logger := log.WithModule("events")

					return withEngine(ctx, logger, engineConfig(command, "shopflow-events"), func(engine *cmd.Engine) error {
						names, err := engine.Events.RequiredEvents(ctx)
						if err != nil {
							return err
						}

						for _, name := range names {
							fmt.Fprintln(os.Stdout, name)
						}

						return nil
					})
				},
			},
		},
	}
}
