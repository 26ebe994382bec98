package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithFields(context.Background(), "workflow_id", "wf-1")
	ctx = WithFields(ctx, "queued_event_id", "qe-1")

	FromContext(ctx, logger).Info("processing")

	assert.Contains(t, buf.String(), "workflow_id=wf-1")
	assert.Contains(t, buf.String(), "queued_event_id=qe-1")
}

func TestFromContext_NoFields(t *testing.T) {
	logger := Discard()

	assert.Same(t, logger, FromContext(context.Background(), logger))
}
