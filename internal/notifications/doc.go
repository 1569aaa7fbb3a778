// Package notifications delivers run results via ntfy.
//
// The default implementation publishes to the topic URL configured under
// [notifications] and degrades to a no-op when no topic is set. Observer
// adapts a Service to the orchestrator's lifecycle events so a run can push
// one summary message and one message per failed item.
package notifications
