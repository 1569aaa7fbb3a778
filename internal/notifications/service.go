package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rwese/obsidian-postprocessor/internal/config"
)

const userAgent = "obsidian-postprocessor/2"

// RunStats are the counters reported at the end of a run.
type RunStats struct {
	Scanned   int
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Service defines the notification surface used by the CLI and observer.
type Service interface {
	NotifyRunCompleted(ctx context.Context, stats RunStats) error
	NotifyItemFailed(ctx context.Context, document, attachment, processor, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, stats RunStats) error {
	duration := stats.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	data := payload{
		title:   "Obsidian Post-Processor - Run Complete",
		message: fmt.Sprintf("Processed %d attachments in %d notes (%d skipped) in %s", stats.Processed, stats.Scanned, stats.Skipped, duration),
		tags:    []string{"obsidian", "run", "completed"},
	}
	if stats.Failed > 0 {
		data.title = "Obsidian Post-Processor - Run Complete (with errors)"
		data.message = fmt.Sprintf("%d succeeded, %d failed, %d skipped across %d notes in %s", stats.Processed, stats.Failed, stats.Skipped, stats.Scanned, duration)
		data.tags = []string{"obsidian", "run", "warning"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, document, attachment, processor, message string) error {
	var builder strings.Builder
	builder.WriteString("❌ ")
	builder.WriteString(strings.TrimSpace(processor))
	builder.WriteString(" failed for ")
	builder.WriteString(strings.TrimSpace(attachment))
	if document = strings.TrimSpace(document); document != "" {
		builder.WriteString(" in ")
		builder.WriteString(document)
	}
	if message = strings.TrimSpace(message); message != "" {
		builder.WriteString(": ")
		builder.WriteString(message)
	}

	data := payload{
		title:    "Obsidian Post-Processor - Error",
		message:  builder.String(),
		tags:     []string{"obsidian", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Obsidian Post-Processor - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"obsidian", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunStats) error { return nil }
func (noopService) NotifyItemFailed(context.Context, string, string, string, string) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
