// Package processor defines the capability interface the orchestrator
// dispatches attachments to, and the Runner that invokes a processor with a
// hard timeout and a retry policy.
//
// Concrete processors live in subpackages: script runs a local command,
// httpapi talks to a transcription service, and whisperx runs WhisperX via
// uvx. Every error a processor returns, and every panic it raises, is turned
// into a Result by the Runner.
package processor
