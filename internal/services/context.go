package services

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	documentKey   contextKey = "document"
	attachmentKey contextKey = "attachment"
	processorKey  contextKey = "processor"
)

// WithRunID annotates context with the orchestrator run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

// WithDocument annotates context with the vault-relative document path.
func WithDocument(ctx context.Context, document string) context.Context {
	if document == "" {
		return ctx
	}
	return context.WithValue(ctx, documentKey, document)
}

// DocumentFromContext returns the document path if present.
func DocumentFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, documentKey)
}

// WithAttachment annotates context with the attachment target.
func WithAttachment(ctx context.Context, attachment string) context.Context {
	if attachment == "" {
		return ctx
	}
	return context.WithValue(ctx, attachmentKey, attachment)
}

// AttachmentFromContext returns the attachment target if present.
func AttachmentFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, attachmentKey)
}

// WithProcessor annotates context with the processor name.
func WithProcessor(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, processorKey, name)
}

// ProcessorFromContext returns the processor name if present.
func ProcessorFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, processorKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
