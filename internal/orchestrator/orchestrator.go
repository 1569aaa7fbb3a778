package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rwese/obsidian-postprocessor/internal/frontmatter"
	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/services"
	"github.com/rwese/obsidian-postprocessor/internal/state"
	"github.com/rwese/obsidian-postprocessor/internal/vault"
)

// Source yields the notes of a vault.
type Source interface {
	Root() string
	Scan(ctx context.Context) iter.Seq2[vault.Entry, error]
	ScanNote(ctx context.Context, path string) (vault.Entry, error)
}

// StateStore reads and persists processing records.
type StateStore interface {
	Get(doc *frontmatter.Document, attachment, processor string) (state.Record, bool)
	Update(ctx context.Context, path, attachment, processor string, rec state.Record, artifact state.Artifact) error
}

// Options configures a run.
type Options struct {
	Source Source
	Store  StateStore
	// ConcurrencyLimit bounds simultaneous processor invocations.
	ConcurrencyLimit int
	// MaxAttempts caps attempts across runs; zero uses each registration's
	// retry attempts.
	MaxAttempts int
	DryRun      bool
	// Only restricts the run to one note path.
	Only string
}

// Registration binds a processor to its name and invocation policy.
type Registration struct {
	Name      string
	Processor processor.Processor
	Policy    processor.RetryPolicy
	Timeout   time.Duration
}

// Option customizes optional dependencies.
type Option func(*Orchestrator)

// WithLogger sets the base logger used by the runner and the default observer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver adds an observer after the built-in log observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.extra = append(o.extra, obs)
		}
	}
}

// WithSleep replaces the wait between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// Orchestrator runs registered processors over a vault.
type Orchestrator struct {
	opts          Options
	registrations []Registration
	logger        *slog.Logger
	extra         []Observer
	observer      Observers
	sleep         func(ctx context.Context, d time.Duration) error
}

// New validates the options and registrations. Registrations are dispatched
// in name order.
func New(opts Options, registrations []Registration, deps ...Option) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, errors.New("orchestrator: source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("orchestrator: state store is required")
	}
	if opts.ConcurrencyLimit < 1 {
		return nil, fmt.Errorf("orchestrator: concurrency limit must be positive, got %d", opts.ConcurrencyLimit)
	}

	regs := slices.Clone(registrations)
	seen := make(map[string]struct{}, len(regs))
	for _, reg := range regs {
		name := strings.TrimSpace(reg.Name)
		if name == "" {
			return nil, errors.New("orchestrator: processor name is required")
		}
		if reg.Processor == nil {
			return nil, fmt.Errorf("orchestrator: processor %q is nil", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("orchestrator: processor %q registered twice", name)
		}
		seen[name] = struct{}{}
	}
	slices.SortFunc(regs, func(a, b Registration) int { return strings.Compare(a.Name, b.Name) })

	o := &Orchestrator{
		opts:          opts,
		registrations: regs,
		logger:        logging.NewNop(),
	}
	for _, dep := range deps {
		dep(o)
	}
	o.observer = append(Observers{NewLogObserver(o.logger)}, o.extra...)
	return o, nil
}

// run holds the mutable state of one pass.
type run struct {
	o       *Orchestrator
	ctx     context.Context
	mu      sync.Mutex
	summary Summary
}

// Run performs one pass. Only cancellation of ctx, or an Only note outside
// the scan scope, produce an error; the summary is valid either way.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	r := &run{
		o:   o,
		ctx: ctx,
		summary: Summary{
			RunID:   runID,
			DryRun:  o.opts.DryRun,
			Started: time.Now(),
		},
	}
	o.observer.RunStarted(ctx, RunInfo{RunID: runID, Root: o.opts.Source.Root(), DryRun: o.opts.DryRun})

	var group errgroup.Group
	group.SetLimit(o.opts.ConcurrencyLimit)

	err := r.produce(ctx, func(item Item, reg Registration, req processor.Request, embed string) {
		group.Go(func() error {
			r.dispatch(item, reg, req, embed)
			return nil
		})
	})
	_ = group.Wait()

	if err == nil {
		err = ctx.Err()
	}
	r.summary.Duration = time.Since(r.summary.Started)
	summary := r.summary
	o.observer.RunFinished(context.WithoutCancel(ctx), summary)
	return summary, err
}

type enqueueFunc func(item Item, reg Registration, req processor.Request, embed string)

// produce walks the source and hands eligible work to enqueue, which blocks
// while the pool is full.
func (r *run) produce(ctx context.Context, enqueue enqueueFunc) error {
	if only := strings.TrimSpace(r.o.opts.Only); only != "" {
		entry, err := r.o.opts.Source.ScanNote(ctx, only)
		if errors.Is(err, vault.ErrExcluded) {
			return err
		}
		r.consider(entry, err, enqueue)
		return nil
	}

	for entry, err := range r.o.opts.Source.Scan(ctx) {
		if ctx.Err() != nil {
			return nil
		}
		r.consider(entry, err, enqueue)
	}
	return nil
}

func (r *run) consider(entry vault.Entry, err error, enqueue enqueueFunc) {
	r.mu.Lock()
	r.summary.Scanned++
	r.mu.Unlock()

	if err != nil {
		r.recordFailure(Issue{Document: entry.RelPath, Kind: IssueScan, Message: err.Error()})
		return
	}
	if entry.ParseErr != nil {
		r.skipUnreadable(entry, entry.ParseErr)
		return
	}
	if err := state.Validate(entry.Document); err != nil {
		r.skipUnreadable(entry, err)
		return
	}

	for _, ref := range entry.Attachments {
		attachment := processor.Attachment{Target: ref.Target, Name: ref.Name, Ext: ref.Ext, Path: ref.Path}
		doc := processor.Document{ID: entry.RelPath, Path: entry.Path, Metadata: entry.Document.Metadata, Attachment: attachment}

		for _, reg := range r.o.registrations {
			if !reg.Processor.CanProcess(doc) {
				continue
			}
			item := Item{Document: entry.RelPath, Path: entry.Path, Attachment: ref.Target, Processor: reg.Name}
			req := processor.Request{
				DocumentID:   entry.RelPath,
				DocumentPath: entry.Path,
				VaultRoot:    r.o.opts.Source.Root(),
				Attachment:   attachment,
			}

			limit := r.o.attemptLimit(reg)
			if rec, ok := r.o.opts.Store.Get(entry.Document, ref.Target, reg.Name); ok {
				if !rec.Eligible(limit) {
					r.mu.Lock()
					r.summary.Skipped++
					r.mu.Unlock()
					continue
				}
				item.PriorAttempts = rec.Attempts
				existing := rec
				req.Existing = &existing
			}

			if r.o.opts.DryRun {
				r.mu.Lock()
				r.summary.Planned = append(r.summary.Planned, item)
				r.mu.Unlock()
				continue
			}
			enqueue(item, reg, req, ref.Raw)
		}
	}
}

// skipUnreadable counts a note whose metadata cannot be read. Writing to it
// would fail, so none of its attachments are dispatched.
func (r *run) skipUnreadable(entry vault.Entry, err error) {
	r.mu.Lock()
	r.summary.Skipped++
	r.summary.Warnings = append(r.summary.Warnings, Issue{Document: entry.RelPath, Kind: IssueParse, Message: err.Error()})
	r.mu.Unlock()
}

func (o *Orchestrator) attemptLimit(reg Registration) int {
	if o.opts.MaxAttempts > 0 {
		return o.opts.MaxAttempts
	}
	return max(reg.Policy.Attempts, 1)
}

// dispatch processes one item. It owns every error it encounters.
func (r *run) dispatch(item Item, reg Registration, req processor.Request, embed string) {
	ctx := services.WithDocument(r.ctx, item.Document)
	ctx = services.WithAttachment(ctx, item.Attachment)
	ctx = services.WithProcessor(ctx, item.Processor)
	if ctx.Err() != nil {
		return
	}
	o := r.o
	o.observer.ItemStarted(ctx, item)

	limit := o.attemptLimit(reg)
	prior := state.Record{Status: state.StatusPending}
	if req.Existing != nil {
		prior = *req.Existing
	}

	started := state.Record{Status: state.StatusInProgress, Attempts: prior.Attempts}
	if err := o.opts.Store.Update(ctx, item.Path, item.Attachment, item.Processor, started, state.Artifact{}); err != nil {
		r.finish(ctx, item, Outcome{Status: prior.Status, Attempts: prior.Attempts, Message: err.Error(), Err: err})
		return
	}

	runner := processor.Runner{
		Policy:  reg.Policy.WithAttempts(prior.Remaining(limit)),
		Timeout: reg.Timeout,
		Sleep:   o.sleep,
		Logger:  o.logger,
	}
	res := runner.Run(ctx, reg.Name, reg.Processor, req)

	final := state.Record{
		Attempts: prior.Attempts + res.Attempts,
		Message:  res.Message,
	}
	var artifact state.Artifact
	if res.Success {
		final.Status = state.StatusCompleted
		artifact = state.Artifact{Text: res.Artifact, Embed: embed}
	} else {
		final.Status = state.StatusFailed
		final.Failure = res.Failure
	}

	outcome := Outcome{
		Status:   final.Status,
		Failure:  final.Failure,
		Attempts: final.Attempts,
		Message:  final.Message,
		Duration: res.Duration,
	}
	// The final record is written even when the run is being canceled so an
	// interrupted item is not left in_progress.
	if err := o.opts.Store.Update(context.WithoutCancel(ctx), item.Path, item.Attachment, item.Processor, final, artifact); err != nil {
		outcome.Err = err
		outcome.Message = err.Error()
	}
	r.finish(ctx, item, outcome)
}

func (r *run) finish(ctx context.Context, item Item, outcome Outcome) {
	switch {
	case outcome.Err != nil:
		r.recordFailure(Issue{
			Document:   item.Document,
			Attachment: item.Attachment,
			Processor:  item.Processor,
			Kind:       IssueWrite,
			Message:    outcome.Err.Error(),
		})
	case outcome.Status == state.StatusCompleted:
		r.mu.Lock()
		r.summary.Processed++
		r.mu.Unlock()
	default:
		r.recordFailure(Issue{
			Document:   item.Document,
			Attachment: item.Attachment,
			Processor:  item.Processor,
			Kind:       string(outcome.Failure),
			Message:    outcome.Message,
		})
	}
	r.o.observer.ItemFinished(context.WithoutCancel(ctx), item, outcome)
}

func (r *run) recordFailure(issue Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Failed++
	r.summary.Failures = append(r.summary.Failures, issue)
}
