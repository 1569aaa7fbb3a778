// Package orchestrator drives one processing pass over a vault.
//
// A run scans every note, pairs each attachment reference with each
// registered processor, filters out pairs whose record in the note's
// frontmatter says there is nothing left to do, and dispatches the rest to a
// bounded worker pool. Workers mark the pair in_progress, invoke the
// processor through processor.Runner, and write the final record together
// with the artifact in one atomic rewrite of the note.
//
// Per-item failures of any kind (unreadable notes, malformed frontmatter,
// processor errors, timeouts, write failures) end up in the Summary; only
// cancellation of the run itself is returned as an error.
package orchestrator
