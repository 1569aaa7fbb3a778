// Package logging assembles structured slog loggers and formatting helpers used
// across the post-processor.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator and processor
// code can tag log lines with run IDs, documents, attachments, and processor
// names. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
