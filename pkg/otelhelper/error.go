package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/shopflow/pkg/models"
)

const (
	FailureCodeKey = "shopflow.failure.code"
	FailureNoteKey = "shopflow.failure.note"
)

// SetError marks span as failed. A nil err leaves the span untouched.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetFailure records a queued event that did not run. The span status stays
// unset since inactive workflows and missing data are expected outcomes.
func SetFailure(span trace.Span, code models.FailureCode, note string) {
	span.AddEvent("queued_event_failed", trace.WithAttributes(
		attribute.Int(FailureCodeKey, int(code)),
		attribute.String(FailureNoteKey, note),
	))
}
