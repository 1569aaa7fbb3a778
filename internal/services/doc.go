// Package services defines shared utilities consumed by the orchestrator,
// the state store, and the processor integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, documents, attachments, and
//     processor names for logging.
//   - Structured error markers plus the Wrap helper that let the processor
//     runner tell retryable failures from permanent rejections.
//
// Use these helpers when wiring new processors so retry behaviour and log
// shape stay uniform across the tool.
package services
