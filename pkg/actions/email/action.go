// Package email provides the send_email action.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/shopflow/pkg/actions"
)

const Name = "send_email"

var ErrInvalidRecipient = errors.New("invalid email recipient")

// Message is an outgoing email. LogID lets the mailer embed open and click
// tracking for the run log.
type Message struct {
	To      []string
	Subject string
	Heading string
	Body    string
	LogID   string
}

// Mailer delivers messages. Rendering and inlining HTML is the mailer's job.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type config struct {
	To      string `json:"to"      validate:"required"`
	Subject string `json:"subject" validate:"required,max=255"`
	Heading string `json:"heading"`
	Body    string `json:"body"    validate:"required"`
}

type Action struct {
	mailer   Mailer
	validate *validator.Validate
}

func New(mailer Mailer) *Action {
	return &Action{mailer: mailer, validate: validator.New()}
}

func (a *Action) Name() string        { return Name }
func (a *Action) Title() string       { return "Send Email" }
func (a *Action) Group() string       { return "Email" }
func (a *Action) Description() string { return "Sends an email to one or more recipients." }

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "to", Title: "To", Type: actions.FieldText, Required: true, ProcessVariables: true,
			Description: "Comma separated list of recipients. Supports variables, e.g. {{ customer.email }}."},
		{Name: "subject", Title: "Subject", Type: actions.FieldText, Required: true, ProcessVariables: true},
		{Name: "heading", Title: "Heading", Type: actions.FieldText, ProcessVariables: true},
		{Name: "body", Title: "Body", Type: actions.FieldTextarea, Required: true, ProcessVariables: true, AllowHTML: true},
	}
}

func (a *Action) Run(ctx context.Context, run *actions.Run) error {
	var cfg config

	err := run.Decode(&cfg)
	if err != nil {
		return err
	}

	recipients := actions.SplitList(cfg.To)
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no recipients after resolving %q", ErrInvalidRecipient, cfg.To)
	}

	for _, to := range recipients {
		err := a.validate.Var(to, "email")
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
		}
	}

	err = a.mailer.Send(ctx, Message{
		To:      recipients,
		Subject: cfg.Subject,
		Heading: cfg.Heading,
		Body:    cfg.Body,
		LogID:   run.LogID,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	run.AddNote(fmt.Sprintf("Email sent to %d recipient(s)", len(recipients)))

	return nil
}

// LogMailer writes messages to a logger instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "Sending email", "to", msg.To, "subject", msg.Subject, "log_id", msg.LogID)

	return nil
}
