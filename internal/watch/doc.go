// Package watch reruns vault passes when notes or attachments change.
//
// It wraps fsnotify with a recursive directory registration and a debounce
// window so an editor saving a note several times in a row, or the
// orchestrator rewriting notes it just processed, collapses into a single
// follow-up pass.
package watch
