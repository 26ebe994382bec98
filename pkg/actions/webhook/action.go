// Package webhook provides the webhook action, an HTTP request with retry.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/shopflow/pkg/actions"
)

const (
	Name = "webhook"

	defaultTimeoutSeconds = 30
	maxResponseBytes      = 1 << 16
)

var (
	// ErrHTTPServerError is returned when the endpoint keeps answering 5xx.
	ErrHTTPServerError = errors.New("server error during webhook request")
	// ErrHTTPClientError is returned for 4xx answers, which are not retried.
	ErrHTTPClientError = errors.New("client error during webhook request")
)

type config struct {
	URL            string  `json:"url"             validate:"required,url"`
	Method         string  `json:"method"          validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Headers        string  `json:"headers"`
	Body           string  `json:"body"`
	Attempts       float64 `json:"attempts"        validate:"min=1,max=5"`
	DelaySeconds   float64 `json:"delay_seconds"   validate:"min=0,max=60"`
	TimeoutSeconds float64 `json:"timeout_seconds" validate:"min=1,max=120"`
}

type Action struct {
	logger *slog.Logger
	client *http.Client
	sleep  func(context.Context, time.Duration) error
}

// New creates the action. A nil client uses a default client whose timeout
// is set per request.
func New(logger *slog.Logger, client *http.Client) *Action {
	if client == nil {
		client = &http.Client{}
	}

	return &Action{
		logger: logger.With("module", "webhook_action"),
		client: client,
		sleep:  sleepContext,
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (a *Action) Name() string {
	return Name
}

func (a *Action) Title() string {
	return "Send Webhook"
}

func (a *Action) Group() string {
	return "Other"
}

func (a *Action) Description() string {
	return "Sends an HTTP request to a URL with optional headers and body."
}

func (a *Action) Fields() []actions.Field {
	return []actions.Field{
		{Name: "url", Title: "URL", Type: actions.FieldURL, Required: true, ProcessVariables: true},
		{Name: "method", Title: "Method", Type: actions.FieldSelect, Default: http.MethodPost,
			Options: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}},
		{Name: "headers", Title: "Headers", Type: actions.FieldTextarea, ProcessVariables: true,
			Description: "One \"Name: value\" header per line."},
		{Name: "body", Title: "Body", Type: actions.FieldTextarea, ProcessVariables: true, AllowHTML: true},
		{Name: "attempts", Title: "Attempts", Type: actions.FieldNumber, Default: 1},
		{Name: "delay_seconds", Title: "Retry Delay (seconds)", Type: actions.FieldNumber, Default: 0},
		{Name: "timeout_seconds", Title: "Timeout (seconds)", Type: actions.FieldNumber, Default: defaultTimeoutSeconds},
	}
}

func (a *Action) Run(ctx context.Context, run *actions.Run) error {
	var cfg config

	err := run.Decode(&cfg)
	if err != nil {
		return err
	}

	logger := a.logger.With("workflow_id", run.Workflow.ID, "url", cfg.URL)

	var lastErr error

	attempts := int(cfg.Attempts)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Webhook retry attempt", "attempt", attempt, "attempts", attempts)

			err := a.sleep(ctx, time.Duration(cfg.DelaySeconds*float64(time.Second)))
			if err != nil {
				return fmt.Errorf("webhook retry interrupted after %d attempts: %w", attempt-1, errors.Join(err, lastErr))
			}
		}

		status, err := a.do(ctx, cfg)
		if err == nil {
			logger.InfoContext(ctx, "Webhook delivered", "status_code", status)
			run.AddNote(fmt.Sprintf("Webhook %s %s answered %d", cfg.Method, cfg.URL, status))

			return nil
		}

		lastErr = err
		if errors.Is(err, ErrHTTPClientError) {
			break
		}
	}

	return fmt.Errorf("all webhook attempts failed, last error: %w", lastErr)
}

func (a *Action) do(ctx context.Context, cfg config) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds*float64(time.Second)))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, strings.NewReader(cfg.Body))
	if err != nil {
		return 0, fmt.Errorf("failed to create http request: %w", err)
	}

	for _, line := range strings.Split(cfg.Headers, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}

		req.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	switch {
	case resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("status %d: %w", resp.StatusCode, ErrHTTPServerError)
	case resp.StatusCode >= 400:
		return resp.StatusCode, fmt.Errorf("status %d: %w", resp.StatusCode, ErrHTTPClientError)
	default:
		return resp.StatusCode, nil
	}
}
