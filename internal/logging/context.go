package logging

import (
	"context"
	"log/slog"

	"redub/internal/services"
)

// Canonical field names shared by every subsystem so log output stays
// greppable across the daemon.
const (
	FieldComponent     = "component"
	FieldVideoID       = "video_id"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldDuration      = "duration"
	FieldAttempt       = "attempt"
)

// ContextFields extracts the identifiers stamped on ctx as log attributes.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	attrs := make([]Attr, 0, 4)
	if id, ok := services.VideoIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldVideoID, id))
	}
	if id, ok := services.JobIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, id))
	}
	return attrs
}

// WithContext returns a logger pre-tagged with the context identifiers.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
