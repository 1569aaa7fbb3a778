// Package httpapi implements a processor backed by a transcription service
// reachable over HTTP.
//
// Two wire styles are supported. In async mode the attachment is submitted
// to {url}/async, the returned task is polled at {url}/tasks/{id}, and the
// transcript is fetched from {url}/tasks/{id}/result. In openai mode a single
// request goes to {url}/audio/transcriptions and the response's "text" field
// is the transcript.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwese/obsidian-postprocessor/internal/language"
	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/services"
)

const (
	ModeAsync  = "async"
	ModeOpenAI = "openai"

	defaultPollInterval = 2 * time.Second
	errorBodyLimit      = 2048
	userAgent           = "obsidian-postprocessor/2"
)

// Config describes the remote service.
type Config struct {
	URL          string
	Mode         string
	APIKey       string
	Model        string
	Language     string
	Prompt       string
	PollInterval time.Duration
	Extensions   []string
	// HTTPClient overrides the default client; the runner timeout bounds
	// each invocation, so the default carries none.
	HTTPClient *http.Client
}

// Processor transcribes attachments through the configured service.
type Processor struct {
	cfg    Config
	base   string
	client *http.Client
	logger *slog.Logger
}

// New constructs an HTTP processor.
func New(cfg Config, logger *slog.Logger) *Processor {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAsync
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	base = strings.TrimSuffix(base, "/async")
	return &Processor{
		cfg:    cfg,
		base:   base,
		client: client,
		logger: logging.NewComponentLogger(logger, "httpapi"),
	}
}

// CanProcess filters by extension.
func (p *Processor) CanProcess(doc processor.Document) bool {
	return processor.AcceptsExtension(p.cfg.Extensions, doc.Attachment.Ext)
}

// Process uploads the attachment and returns the transcript as a quote block.
func (p *Processor) Process(ctx context.Context, req processor.Request) (processor.Output, error) {
	if err := processor.RequireResolved(req.Attachment); err != nil {
		return processor.Output{}, err
	}

	var (
		text string
		err  error
	)
	switch p.cfg.Mode {
	case ModeOpenAI:
		text, err = p.transcribeOpenAI(ctx, req.Attachment.Path)
	case ModeAsync:
		text, err = p.transcribeAsync(ctx, req.Attachment.Path)
	default:
		err = services.Wrap(services.ErrConfiguration, "httpapi", "mode", fmt.Sprintf("unsupported mode %q", p.cfg.Mode), nil)
	}
	if err != nil {
		return processor.Output{}, err
	}

	artifact := processor.FormatTranscript(text)
	if artifact == "" {
		return processor.Output{}, services.Wrap(services.ErrExternalTool, "httpapi", "transcribe", "service returned an empty transcript", nil)
	}
	return processor.Output{
		Artifact: artifact,
		Message:  "transcribed " + req.Attachment.Name,
	}, nil
}

func (p *Processor) transcribeOpenAI(ctx context.Context, path string) (string, error) {
	fields := p.formFields()
	fields["response_format"] = "json"

	var body struct {
		Text string `json:"text"`
	}
	if err := p.upload(ctx, p.base+"/audio/transcriptions", path, fields, &body); err != nil {
		return "", err
	}
	return body.Text, nil
}

func (p *Processor) transcribeAsync(ctx context.Context, path string) (string, error) {
	fields := p.formFields()
	fields["output_format"] = "json"

	var submitted struct {
		TaskID string `json:"task_id"`
		ID     string `json:"id"`
	}
	if err := p.upload(ctx, p.base+"/async", path, fields, &submitted); err != nil {
		return "", err
	}
	taskID := submitted.TaskID
	if taskID == "" {
		taskID = submitted.ID
	}
	if taskID == "" {
		return "", services.Wrap(services.ErrExternalTool, "httpapi", "submit", "response did not include a task id", nil)
	}
	p.logger.Debug("transcription task submitted", logging.String("task_id", taskID))

	if err := p.waitForTask(ctx, taskID); err != nil {
		return "", err
	}

	var result struct {
		Transcription string `json:"transcription"`
		Text          string `json:"text"`
		Result        string `json:"result"`
	}
	if err := p.getJSON(ctx, p.base+"/tasks/"+taskID+"/result", &result); err != nil {
		return "", err
	}
	for _, text := range []string{result.Transcription, result.Text, result.Result} {
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "httpapi", "result", "no transcription in task result", nil)
}

type taskStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
	Message      string `json:"message"`
}

func (s taskStatus) failure() string {
	for _, msg := range []string{s.Error, s.ErrorMessage, s.Message} {
		if msg = strings.TrimSpace(msg); msg != "" {
			return msg
		}
	}
	return "task failed"
}

// waitForTask polls until the task finishes. Transient poll failures are
// logged and retried; the invocation deadline bounds the loop.
func (p *Processor) waitForTask(ctx context.Context, taskID string) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var status taskStatus
		err := p.getJSON(ctx, p.base+"/tasks/"+taskID, &status)
		switch {
		case err == nil:
			switch strings.ToLower(status.Status) {
			case "completed", "success", "done":
				return nil
			case "failed", "error":
				return services.Wrap(services.ErrExternalTool, "httpapi", "task "+taskID, status.failure(), nil)
			case "pending", "running", "processing", "queued":
			default:
				p.logger.Warn("unknown transcription task status",
					logging.String("task_id", taskID),
					logging.String("status", status.Status),
				)
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case services.IsPermanent(err):
			return err
		default:
			p.logger.Warn("transcription task poll failed",
				logging.String("task_id", taskID),
				logging.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Processor) formFields() map[string]string {
	fields := map[string]string{}
	if p.cfg.Model != "" {
		fields["model"] = p.cfg.Model
	}
	if lang := language.ToISO2(p.cfg.Language); lang != "" {
		fields["language"] = lang
	}
	if p.cfg.Prompt != "" {
		fields["prompt"] = p.cfg.Prompt
	}
	return fields
}

// upload streams the file as multipart/form-data and decodes the JSON reply.
func (p *Processor) upload(ctx context.Context, endpoint, path string, fields map[string]string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "httpapi", "open attachment", path, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, file, filepath.Base(path), fields))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "httpapi", "build request", endpoint, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return p.do(req, out)
}

func writeForm(form *multipart.Writer, file io.Reader, name string, fields map[string]string) error {
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return err
		}
	}
	return form.Close()
}

func (p *Processor) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "httpapi", "build request", endpoint, err)
	}
	return p.do(req, out)
}

func (p *Processor) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, "httpapi", req.Method+" "+req.URL.Path, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return statusError(req, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, "httpapi", req.Method+" "+req.URL.Path, "decode response", err)
	}
	return nil
}

// statusError maps an HTTP failure to an error marker. Client errors other
// than 408 and 429 are permanent; a 404 is reported as not found.
func statusError(req *http.Request, code int, body string) error {
	operation := req.Method + " " + req.URL.Path
	message := fmt.Sprintf("HTTP %d", code)
	if body != "" {
		message += ": " + body
	}
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return services.Wrap(services.ErrTransient, "httpapi", operation, message, nil)
	case code == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "httpapi", operation, message, nil)
	case code >= 400:
		return services.Wrap(services.ErrValidation, "httpapi", operation, message, nil)
	default:
		return services.Wrap(services.ErrExternalTool, "httpapi", operation, message, nil)
	}
}
