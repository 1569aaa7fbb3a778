package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/services"
	"github.com/rwese/obsidian-postprocessor/internal/state"
)

// errInvocationTimeout tags an invocation abandoned at its deadline.
var errInvocationTimeout = fmt.Errorf("%w: processor did not return in time", services.ErrTimeout)

// Result is the outcome of Runner.Run. It is the only way failures leave the
// runner.
type Result struct {
	Success  bool
	Artifact string
	Message  string
	Failure  state.FailureKind
	Attempts int
	Duration time.Duration
}

// Runner invokes processors under a timeout and retry policy.
type Runner struct {
	Policy  RetryPolicy
	Timeout time.Duration
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

type outcome struct {
	out Output
	err error
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("processor panicked: %v", e.value)
}

// Run invokes p until it succeeds, fails permanently, or the policy is
// exhausted. Every invocation counts toward Result.Attempts.
func (r *Runner) Run(ctx context.Context, name string, p Processor, req Request) Result {
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(ctx, logger)

	attempts := r.Policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	start := time.Now()
	var res Result
	for i := range attempts {
		if i > 0 {
			delay := r.Policy.DelayFor(i - 1)
			if err := sleep(ctx, delay); err != nil {
				res.Failure = state.FailureCanceled
				res.Message = "canceled before retry: " + err.Error()
				break
			}
		}

		out, err := r.invoke(ctx, p, req)
		res.Attempts++
		if err == nil {
			res = Result{Success: true, Artifact: out.Artifact, Message: out.Message, Attempts: res.Attempts}
			break
		}

		res.Failure = r.classify(ctx, err)
		res.Message = r.message(err, res.Failure)
		retryable := res.Failure == state.FailureRetryable || res.Failure == state.FailureTimeout
		if !retryable || i == attempts-1 {
			break
		}
		logger.Warn("processor attempt failed; retrying",
			logging.String(logging.FieldProcessor, name),
			logging.Int("attempt", res.Attempts),
			logging.Int("max_attempts", attempts),
			logging.Duration("retry_in", r.Policy.DelayFor(i)),
			logging.String("failure", string(res.Failure)),
			logging.Error(err),
		)
	}
	res.Duration = time.Since(start)
	return res
}

// invoke runs one call in its own goroutine. On timeout the goroutine is
// abandoned; its result is discarded through the buffered channel.
func (r *Runner) invoke(ctx context.Context, p Processor, req Request) (Output, error) {
	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- outcome{err: &panicError{value: v}}
			}
		}()
		out, err := p.Process(callCtx, req)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Output{}, errInvocationTimeout
		}
		return o.out, o.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		return Output{}, errInvocationTimeout
	}
}

func (r *Runner) classify(ctx context.Context, err error) state.FailureKind {
	var perr *panicError
	switch {
	case ctx.Err() != nil:
		return state.FailureCanceled
	case errors.As(err, &perr):
		return state.FailureFatal
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return state.FailureTimeout
	case services.IsPermanent(err):
		return state.FailureFatal
	default:
		return state.FailureRetryable
	}
}

func (r *Runner) message(err error, kind state.FailureKind) string {
	switch kind {
	case state.FailureTimeout:
		if r.Timeout > 0 {
			return fmt.Sprintf("timeout after %s: %v", r.Timeout, err)
		}
		return "timeout: " + err.Error()
	case state.FailureCanceled:
		return "canceled: " + err.Error()
	default:
		return err.Error()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
