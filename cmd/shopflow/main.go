package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/shopflow/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := &cli.Command{
		Name:                  "shopflow",
		Usage:                 "Run store automation workflows",
		EnableShellCompletion: true,
		Flags:                 engineFlags(),
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			ServeCommand(),
			WorkerCommand(),
			QueueCommand(),
			EventsCommand(),
		},
	}

	err := command.Run(ctx, os.Args)
	if err != nil {
		log.WithModule("shopflow").ErrorContext(ctx, "Command failed", "error", err)
		os.Exit(1)
	}
}
