package vaultrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rwese/obsidian-postprocessor/internal/config"
	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/notifications"
	"github.com/rwese/obsidian-postprocessor/internal/orchestrator"
	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/state"
	"github.com/rwese/obsidian-postprocessor/internal/vault"
	"github.com/rwese/obsidian-postprocessor/internal/watch"
)

// Runtime holds the components built from one config.
type Runtime struct {
	cfg           *config.Config
	logger        *slog.Logger
	scanner       *vault.Scanner
	store         *state.Store
	registrations []orchestrator.Registration
	notifier      notifications.Service
	observers     []orchestrator.Observer
}

// Option customizes a Runtime.
type Option func(*Runtime)

// WithNotifier replaces the notification service derived from the config.
func WithNotifier(svc notifications.Service) Option {
	return func(r *Runtime) {
		if svc != nil {
			r.notifier = svc
		}
	}
}

// WithObserver adds an observer to every run.
func WithObserver(obs orchestrator.Observer) Option {
	return func(r *Runtime) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}

// WithRegistrations replaces the processors built from the config.
func WithRegistrations(regs []orchestrator.Registration) Option {
	return func(r *Runtime) { r.registrations = regs }
}

// New validates cfg and builds the runtime.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("vaultrun: config is required")
	}
	if strings.TrimSpace(cfg.VaultPath) == "" {
		return nil, errors.New("vaultrun: vault path is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	regs, err := Registrations(cfg, logger)
	if err != nil {
		return nil, err
	}

	storeOpts := []state.Option{state.WithPlacement(state.Placement(cfg.Processing.ArtifactPlacement))}
	for _, name := range cfg.EnabledProcessors() {
		storeOpts = append(storeOpts, state.WithCleanupKeys(name, cfg.Processors[name].CleanupKeys))
	}

	r := &Runtime{
		cfg:    cfg,
		logger: logger,
		scanner: vault.NewScanner(vault.Options{
			Root:                 cfg.VaultPath,
			ExcludePatterns:      cfg.Scan.ExcludePatterns,
			DocumentExtensions:   cfg.Scan.DocumentExtensions,
			AttachmentExtensions: cfg.Scan.AttachmentExtensions,
		}, logger),
		store:         state.NewStore(storeOpts...),
		registrations: regs,
		notifier:      notifications.NewService(cfg),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the absolute vault root.
func (r *Runtime) Root() string { return r.scanner.Root() }

// Processors returns the registered processor names in dispatch order.
func (r *Runtime) Processors() []string {
	names := make([]string, 0, len(r.registrations))
	for _, reg := range r.registrations {
		names = append(names, reg.Name)
	}
	return names
}

// RunOptions narrows one pass.
type RunOptions struct {
	// DryRun reports eligible work without invoking processors. The config's
	// dry_run setting also enables it.
	DryRun bool
	// Note restricts the pass to one note, absolute or relative to the vault.
	Note string
}

// Run performs one orchestrator pass.
func (r *Runtime) Run(ctx context.Context, opts RunOptions) (orchestrator.Summary, error) {
	only := ""
	if note := strings.TrimSpace(opts.Note); note != "" {
		only = r.notePath(note)
	}

	deps := []orchestrator.Option{
		orchestrator.WithLogger(r.logger),
		orchestrator.WithObserver(notifications.NewObserver(r.notifier, r.cfg.Notifications, r.logger)),
	}
	for _, obs := range r.observers {
		deps = append(deps, orchestrator.WithObserver(obs))
	}

	o, err := orchestrator.New(orchestrator.Options{
		Source:           r.scanner,
		Store:            r.store,
		ConcurrencyLimit: r.cfg.Processing.ConcurrencyLimit,
		MaxAttempts:      r.cfg.Processing.MaxAttempts,
		DryRun:           opts.DryRun || r.cfg.Processing.DryRun,
		Only:             only,
	}, r.registrations, deps...)
	if err != nil {
		return orchestrator.Summary{}, err
	}
	return o.Run(ctx)
}

// Reset clears records of one note so the next run reprocesses them. Empty
// processor or attachment match everything.
func (r *Runtime) Reset(ctx context.Context, note, processorName, attachment string) (int, error) {
	path := r.notePath(note)
	removed, err := r.store.Reset(ctx, path, strings.TrimSpace(processorName), strings.TrimSpace(attachment))
	if err != nil {
		return 0, fmt.Errorf("reset %s: %w", note, err)
	}
	r.logger.Info("records reset",
		logging.String(logging.FieldDocument, note),
		logging.Int("removed", removed),
	)
	return removed, nil
}

func (r *Runtime) notePath(note string) string {
	if filepath.IsAbs(note) {
		return filepath.Clean(note)
	}
	return filepath.Join(r.Root(), filepath.FromSlash(note))
}

// Status aggregates record counts across the vault.
type Status struct {
	Documents  int                           `json:"documents"`
	Malformed  int                           `json:"malformed"`
	Unreadable int                           `json:"unreadable"`
	Processors map[string]state.StatusCounts `json:"processors"`
}

// Total sums the counts of every processor.
func (s Status) Total() state.StatusCounts {
	var total state.StatusCounts
	for _, c := range s.Processors {
		total.Add(c)
	}
	return total
}

// Status scans the vault and counts records per processor. Attachments a
// registered processor accepts but has no record for count as pending.
func (r *Runtime) Status(ctx context.Context) (Status, error) {
	status := Status{Processors: map[string]state.StatusCounts{}}
	for _, reg := range r.registrations {
		status.Processors[reg.Name] = state.StatusCounts{}
	}

	for entry, err := range r.scanner.Scan(ctx) {
		status.Documents++
		if err != nil {
			status.Unreadable++
			continue
		}
		if entry.ParseErr != nil {
			status.Malformed++
			continue
		}
		recorded, err := state.Summarize(entry.Document)
		if err != nil {
			status.Malformed++
			continue
		}
		for name, counts := range recorded {
			c := status.Processors[name]
			c.Add(counts)
			status.Processors[name] = c
		}

		for _, ref := range entry.Attachments {
			doc := processor.Document{
				ID:         entry.RelPath,
				Path:       entry.Path,
				Metadata:   entry.Document.Metadata,
				Attachment: processor.Attachment{Target: ref.Target, Name: ref.Name, Ext: ref.Ext, Path: ref.Path},
			}
			for _, reg := range r.registrations {
				if !reg.Processor.CanProcess(doc) {
					continue
				}
				if _, ok := r.store.Get(entry.Document, ref.Target, reg.Name); ok {
					continue
				}
				c := status.Processors[reg.Name]
				c.Pending++
				status.Processors[reg.Name] = c
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return status, err
	}
	return status, nil
}

// Watch runs one pass, then another after every settled burst of vault
// changes, until ctx is canceled. Only notes and attachments the scanner
// would pick up trigger a pass.
func (r *Runtime) Watch(ctx context.Context, opts RunOptions, onPass func(orchestrator.Summary)) error {
	w, err := watch.New(watch.Options{
		Root:     r.Root(),
		Debounce: seconds(r.cfg.Watch.Debounce),
		Filter:   r.scanner.Tracks,
	}, r.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	r.logger.Info("watching vault",
		logging.String("vault", r.Root()),
		logging.Duration("debounce", seconds(r.cfg.Watch.Debounce)),
	)
	return w.Run(ctx, func(ctx context.Context) error {
		summary, err := r.Run(ctx, opts)
		if err != nil {
			return err
		}
		if onPass != nil {
			onPass(summary)
		}
		return nil
	})
}
