// Package state persists per-attachment processing records inside a note's
// frontmatter under the reserved processor_state key.
//
// Each processor keeps one authoritative record per attachment plus a derived
// aggregate for human readers. Updates re-read the note, change a single
// record, and replace the file atomically while holding an in-process lock for
// that path. Concurrent runs in separate processes are not serialized; the
// last writer's snapshot wins.
package state
