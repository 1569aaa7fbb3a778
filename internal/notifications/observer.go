package notifications

import (
	"context"
	"log/slog"

	"github.com/rwese/obsidian-postprocessor/internal/config"
	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/orchestrator"
	"github.com/rwese/obsidian-postprocessor/internal/state"
)

// Observer publishes orchestrator events. Delivery failures are logged and
// never affect the run.
type Observer struct {
	svc        Service
	runSummary bool
	failures   bool
	logger     *slog.Logger
}

// NewObserver returns an observer honoring the [notifications] toggles.
func NewObserver(svc Service, cfg config.Notifications, logger *slog.Logger) *Observer {
	return &Observer{
		svc:        svc,
		runSummary: cfg.RunSummary,
		failures:   cfg.Failures,
		logger:     logging.NewComponentLogger(logger, "notifications"),
	}
}

func (o *Observer) RunStarted(context.Context, orchestrator.RunInfo) {}

func (o *Observer) ItemStarted(context.Context, orchestrator.Item) {}

func (o *Observer) ItemFinished(ctx context.Context, item orchestrator.Item, outcome orchestrator.Outcome) {
	if !o.failures || (outcome.Err == nil && outcome.Status == state.StatusCompleted) {
		return
	}
	if err := o.svc.NotifyItemFailed(ctx, item.Document, item.Attachment, item.Processor, outcome.Message); err != nil {
		o.warn(ctx, "failure notification not delivered", err)
	}
}

func (o *Observer) RunFinished(ctx context.Context, summary orchestrator.Summary) {
	if !o.runSummary || summary.DryRun {
		return
	}
	if summary.Processed == 0 && summary.Failed == 0 {
		return
	}
	stats := RunStats{
		Scanned:   summary.Scanned,
		Processed: summary.Processed,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Duration:  summary.Duration,
	}
	if err := o.svc.NotifyRunCompleted(ctx, stats); err != nil {
		o.warn(ctx, "run summary notification not delivered", err)
	}
}

func (o *Observer) warn(ctx context.Context, msg string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), msg, "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
		logging.String(logging.FieldImpact, "notification dropped; processing unaffected"),
	)
}
