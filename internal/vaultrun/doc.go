// Package vaultrun assembles the scanner, state store, processors and
// observers described by a config into runnable vault operations.
//
// The CLI and the watch loop call into this package rather than wiring the
// orchestrator themselves, so every entry point shares one construction path.
package vaultrun
