// Package log provides the log action, which writes a message to the engine
// log and the run log.
package log

import (
	"context"
	"log/slog"

	"github.com/dukex/shopflow/pkg/actions"
)

const Name = "log"

type config struct {
	Message string `json:"message" validate:"required"`
	Level   string `json:"level"   validate:"omitempty,oneof=debug info warn error"`
}

type Action struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Action {
	return &Action{logger: logger.With("action_type", Name)}
}

func (a *Action) Name() string        { return Name }
func (a *Action) Title() string       { return "Log Message" }
func (a *Action) Group() string       { return "Other" }
func (a *Action) Description() string { return "Writes a message to the log." }

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "message", Title: "Message", Type: actions.FieldTextarea, Required: true, ProcessVariables: true},
		{Name: "level", Title: "Level", Type: actions.FieldSelect, Default: "info", Options: []string{"debug", "info", "warn", "error"}},
	}
}

func (a *Action) Run(ctx context.Context, run *actions.Run) error {
	var cfg config

	err := run.Decode(&cfg)
	if err != nil {
		return err
	}

	level := slog.LevelInfo

	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	a.logger.Log(ctx, level, "Log message", "workflow_id", run.Workflow.ID, "message", cfg.Message)
	run.AddNote(cfg.Message)

	return nil
}
