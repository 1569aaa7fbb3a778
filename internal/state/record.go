package state

import (
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Namespace is the reserved frontmatter key holding processing state.
const Namespace = "processor_state"

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// FailureKind classifies why a record failed.
type FailureKind string

const (
	FailureRetryable FailureKind = "retryable"
	FailureFatal     FailureKind = "fatal"
	FailureTimeout   FailureKind = "timeout"
	FailureCanceled  FailureKind = "canceled"
	FailureWrite     FailureKind = "write"
)

// Record is the persisted state of one (attachment, processor) pair.
type Record struct {
	Status    Status
	Attempts  int
	Timestamp time.Time
	Message   string
	Failure   FailureKind
}

// Eligible reports whether the pair should be dispatched, given a total
// attempt limit across runs. In-progress records are left over from an
// interrupted run and are picked up again.
func (r Record) Eligible(limit int) bool {
	if limit < 1 {
		limit = 1
	}
	switch r.Status {
	case StatusCompleted:
		return false
	case StatusFailed:
		switch r.Failure {
		case FailureFatal:
			return false
		case FailureCanceled:
			return true
		}
		return r.Attempts < limit
	default:
		return true
	}
}

// Remaining returns how many attempts are left under limit.
func (r Record) Remaining(limit int) int {
	if r.Status == StatusFailed && r.Failure == FailureCanceled {
		return max(limit-r.Attempts, 1)
	}
	return max(limit-r.Attempts, 0)
}

type stamp time.Time

func (s stamp) IsZero() bool { return time.Time(s).IsZero() }

func (s stamp) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!timestamp",
		Value: time.Time(s).UTC().Format(time.RFC3339),
	}, nil
}

func (s *stamp) UnmarshalYAML(node *yaml.Node) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, node.Value); err == nil {
			*s = stamp(t.UTC())
			return nil
		}
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil && secs > 0 {
		whole, frac := math.Modf(secs)
		*s = stamp(time.Unix(int64(whole), int64(frac*1e9)).UTC())
		return nil
	}
	*s = stamp{}
	return nil
}

type wireRecord struct {
	Status    Status      `yaml:"status"`
	Attempts  int         `yaml:"attempts"`
	Timestamp stamp       `yaml:"timestamp,omitempty"`
	Message   string      `yaml:"message,omitempty"`
	Error     FailureKind `yaml:"error,omitempty"`
}

type processorEntry struct {
	Status      Status                `yaml:"status"`
	Attempts    int                   `yaml:"attempts"`
	Timestamp   stamp                 `yaml:"timestamp,omitempty"`
	Message     string                `yaml:"message,omitempty"`
	RetryCount  int                   `yaml:"retry_count,omitempty"`
	Attachments map[string]wireRecord `yaml:"attachments,omitempty"`
}

// fallback returns the processor-level record of an entry that carries no
// per-attachment records, as written by releases that tracked one status per
// processor.
func (e processorEntry) fallback() (wireRecord, bool) {
	if len(e.Attachments) > 0 || e.Status == "" {
		return wireRecord{}, false
	}
	return wireRecord{
		Status:    e.Status,
		Attempts:  e.Attempts,
		Timestamp: e.Timestamp,
		Message:   e.Message,
	}, true
}

// parseStatus maps stored status names, including older spellings, onto
// Status. Unknown names read as pending.
func parseStatus(raw string) Status {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return ""
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return s
	case "processing":
		return StatusInProgress
	case "skipped":
		return StatusCompleted
	default:
		return StatusPending
	}
}

func toWire(r Record) wireRecord {
	return wireRecord{
		Status:    r.Status,
		Attempts:  r.Attempts,
		Timestamp: stamp(r.Timestamp.UTC().Truncate(time.Second)),
		Message:   r.Message,
		Error:     r.Failure,
	}
}

func fromWire(w wireRecord) Record {
	status := w.Status
	if status == "" {
		status = StatusPending
	}
	return Record{
		Status:    status,
		Attempts:  w.Attempts,
		Timestamp: time.Time(w.Timestamp),
		Message:   w.Message,
		Failure:   w.Error,
	}
}

// aggregate recomputes the processor-level summary from its attachments.
func (e *processorEntry) aggregate() {
	var (
		anyFailed, anyRunning bool
		allDone               = len(e.Attachments) > 0
		attempts              int
		latest                time.Time
		failedMessage         string
	)
	for _, name := range sortedKeys(e.Attachments) {
		rec := e.Attachments[name]
		attempts += rec.Attempts
		if t := time.Time(rec.Timestamp); t.After(latest) {
			latest = t
		}
		switch rec.Status {
		case StatusFailed:
			if !anyFailed {
				failedMessage = rec.Message
			}
			anyFailed = true
			allDone = false
		case StatusInProgress:
			anyRunning = true
			allDone = false
		case StatusCompleted:
		default:
			allDone = false
		}
	}
	switch {
	case anyFailed:
		e.Status = StatusFailed
	case anyRunning:
		e.Status = StatusInProgress
	case allDone:
		e.Status = StatusCompleted
	default:
		e.Status = StatusPending
	}
	e.Attempts = attempts
	e.Timestamp = stamp(latest)
	e.Message = ""
	if anyFailed {
		e.Message = failedMessage
	}
}
