package processor

import (
	"math"
	"time"
)

// RetryPolicy configures retries within a single run.
type RetryPolicy struct {
	// Attempts is the total number of invocations, including the first.
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

// DelayFor returns the wait after the given zero-based failed attempt:
// Delay * Backoff^attempt.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	backoff := p.Backoff
	if backoff < 1 {
		backoff = 1
	}
	return time.Duration(float64(p.Delay) * math.Pow(backoff, float64(attempt)))
}

// WithAttempts returns a copy allowing at most n attempts. The result always
// allows at least one.
func (p RetryPolicy) WithAttempts(n int) RetryPolicy {
	p.Attempts = max(min(max(p.Attempts, 1), n), 1)
	return p
}
