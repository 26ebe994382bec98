package log

import (
	"context"
	"log/slog"
)

type contextKey string

const fieldsKey contextKey = "log_fields"

// WithFields stores structured attributes on ctx. Later calls append to the
// attributes already present.
func WithFields(ctx context.Context, args ...any) context.Context {
	existing, _ := ctx.Value(fieldsKey).([]any)

	merged := make([]any, 0, len(existing)+len(args))
	merged = append(merged, existing...)
	merged = append(merged, args...)

	return context.WithValue(ctx, fieldsKey, merged)
}

// FromContext returns logger enriched with the attributes stored by WithFields.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	fields, _ := ctx.Value(fieldsKey).([]any)
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}
