package orchestrator

import (
	"time"

	"github.com/rwese/obsidian-postprocessor/internal/state"
)

// Issue kinds that do not come from a processor failure.
const (
	IssueScan  = "scan"
	IssueParse = "parse"
	IssueWrite = string(state.FailureWrite)
)

// Item identifies one (document, attachment, processor) tuple.
type Item struct {
	Document   string `json:"document"`
	Path       string `json:"-"`
	Attachment string `json:"attachment"`
	Processor  string `json:"processor"`
	// PriorAttempts is the attempt count recorded before this run.
	PriorAttempts int `json:"prior_attempts,omitempty"`
}

// Issue describes one failed or skipped tuple or document.
type Issue struct {
	Document   string `json:"document"`
	Attachment string `json:"attachment,omitempty"`
	Processor  string `json:"processor,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// Summary aggregates one run. Scanned counts documents; the other counters
// count (attachment, processor) pairs, except that unreadable documents are
// counted as failed and malformed ones as skipped.
type Summary struct {
	RunID     string        `json:"run_id"`
	DryRun    bool          `json:"dry_run"`
	Scanned   int           `json:"scanned"`
	Skipped   int           `json:"skipped"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Planned   []Item        `json:"planned,omitempty"`
	Failures  []Issue       `json:"failures,omitempty"`
	Warnings  []Issue       `json:"warnings,omitempty"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

// OK reports whether the run finished without failures.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Outcome is the result of one dispatched item.
type Outcome struct {
	Status   state.Status
	Failure  state.FailureKind
	Attempts int
	Message  string
	Duration time.Duration
	// Err is set when the record could not be written.
	Err error
}
