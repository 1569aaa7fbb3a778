package logging

import (
	"context"
	"log/slog"

	"github.com/rwese/obsidian-postprocessor/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the orchestrator run identifier.
	FieldRunID = "run_id"
	// FieldDocument is the standardized key for vault-relative document paths.
	FieldDocument = "document"
	// FieldAttachment is the standardized key for attachment targets.
	FieldAttachment = "attachment"
	// FieldProcessor is the standardized key for processor names.
	FieldProcessor = "processor"
	// FieldEventType classifies a log line for filtering (item_start, item_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if doc, ok := services.DocumentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDocument, doc))
	}
	if att, ok := services.AttachmentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAttachment, att))
	}
	if name, ok := services.ProcessorFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProcessor, name))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
