package orchestrator

import (
	"context"
	"log/slog"

	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/state"
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID  string
	Root   string
	DryRun bool
}

// Observer receives run lifecycle events. Item events arrive from worker
// goroutines and may be concurrent.
type Observer interface {
	RunStarted(ctx context.Context, info RunInfo)
	ItemStarted(ctx context.Context, item Item)
	ItemFinished(ctx context.Context, item Item, outcome Outcome)
	RunFinished(ctx context.Context, summary Summary)
}

// Observers fans events out to every member in order.
type Observers []Observer

func (o Observers) RunStarted(ctx context.Context, info RunInfo) {
	for _, obs := range o {
		obs.RunStarted(ctx, info)
	}
}

func (o Observers) ItemStarted(ctx context.Context, item Item) {
	for _, obs := range o {
		obs.ItemStarted(ctx, item)
	}
}

func (o Observers) ItemFinished(ctx context.Context, item Item, outcome Outcome) {
	for _, obs := range o {
		obs.ItemFinished(ctx, item, outcome)
	}
}

func (o Observers) RunFinished(ctx context.Context, summary Summary) {
	for _, obs := range o {
		obs.RunFinished(ctx, summary)
	}
}

// LogObserver writes lifecycle events to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an observer logging under the orchestrator component.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logging.NewComponentLogger(logger, "orchestrator")}
}

func (l *LogObserver) RunStarted(ctx context.Context, info RunInfo) {
	logging.WithContext(ctx, l.logger).Info("run started",
		logging.String("vault", info.Root),
		logging.Bool("dry_run", info.DryRun),
		logging.String(logging.FieldEventType, "run_start"),
	)
}

func (l *LogObserver) ItemStarted(ctx context.Context, item Item) {
	logging.WithContext(ctx, l.logger).Debug("item started",
		logging.Int("prior_attempts", item.PriorAttempts),
		logging.String(logging.FieldEventType, "item_start"),
	)
}

func (l *LogObserver) ItemFinished(ctx context.Context, item Item, outcome Outcome) {
	logger := logging.WithContext(ctx, l.logger)
	attrs := []logging.Attr{
		logging.Int("attempts", outcome.Attempts),
		logging.Duration("duration", outcome.Duration),
	}
	switch {
	case outcome.Err != nil:
		logging.ErrorWithContext(logger, "item state could not be written", "item_write_failed",
			append(attrs,
				logging.Error(outcome.Err),
				logging.String(logging.FieldErrorHint, "check permissions and free space for the note's directory"),
			)...,
		)
	case outcome.Status == state.StatusCompleted:
		logger.Info("item completed", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "item_completed"),
		)...)...)
	default:
		logging.WarnWithContext(logger, "item failed", "item_failed",
			append(attrs,
				logging.String("failure", string(outcome.Failure)),
				logging.String("message", outcome.Message),
				logging.String(logging.FieldImpact, "record marked failed; eligible again while attempts remain"),
			)...,
		)
	}
}

func (l *LogObserver) RunFinished(ctx context.Context, summary Summary) {
	logger := logging.WithContext(ctx, l.logger)
	attrs := []logging.Attr{
		logging.Int("scanned", summary.Scanned),
		logging.Int("skipped", summary.Skipped),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration),
		logging.String(logging.FieldEventType, "run_complete"),
	}
	if summary.DryRun {
		attrs = append(attrs, logging.Int("planned", len(summary.Planned)))
	}
	logger.Info("run finished", logging.Args(attrs...)...)
}
