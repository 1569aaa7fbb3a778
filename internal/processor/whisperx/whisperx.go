// Package whisperx transcribes attachments locally by running WhisperX
// through uvx and reading its JSON output.
package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rwese/obsidian-postprocessor/internal/language"
	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/services"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Processor runs WhisperX for each attachment.
type Processor struct {
	cfg           Config
	commandRunner CommandRunner
}

// New creates a WhisperX processor with the given configuration.
func New(cfg Config) *Processor {
	return &Processor{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *Processor) WithCommandRunner(runner CommandRunner) {
	p.commandRunner = runner
}

// Model returns the configured model name for logging.
func (p *Processor) Model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return DefaultModel
}

// CanProcess filters by extension.
func (p *Processor) CanProcess(doc processor.Document) bool {
	return processor.AcceptsExtension(p.cfg.Extensions, doc.Attachment.Ext)
}

// Process transcribes the attachment into a scratch directory and returns the
// joined segment text as a transcript block.
func (p *Processor) Process(ctx context.Context, req processor.Request) (processor.Output, error) {
	if err := processor.RequireResolved(req.Attachment); err != nil {
		return processor.Output{}, err
	}

	outputDir, err := os.MkdirTemp("", "obsidian-whisperx-*")
	if err != nil {
		return processor.Output{}, services.Wrap(services.ErrTransient, "whisperx", "scratch dir", "", err)
	}
	defer os.RemoveAll(outputDir)

	source := req.Attachment.Path
	if err := p.run(ctx, UVXCommand, p.buildArgs(source, outputDir)...); err != nil {
		return processor.Output{}, err
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	text, err := loadTranscriptText(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return processor.Output{}, services.Wrap(services.ErrExternalTool, "whisperx", "read output", "", err)
	}
	artifact := processor.FormatTranscript(text)
	if artifact == "" {
		return processor.Output{}, services.Wrap(services.ErrExternalTool, "whisperx", "transcribe", "no speech recognized", nil)
	}
	return processor.Output{Artifact: artifact, Message: "transcribed " + req.Attachment.Name + " with " + p.Model()}, nil
}

// run executes a command, using the custom runner if set.
func (p *Processor) run(ctx context.Context, name string, args ...string) error {
	if p.commandRunner != nil {
		return p.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.WaitDelay = commandWaitDelay

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrConfiguration, "whisperx", "locate "+name, "install uv to provide uvx", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	tail := strings.TrimSpace(string(output))
	if len(tail) > outputTailLimit {
		tail = tail[len(tail)-outputTailLimit:]
	}
	return services.Wrap(services.ErrExternalTool, "whisperx", name, tail, err)
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (p *Processor) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if p.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", p.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := p.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && p.cfg.HFToken != "" {
		args = append(args, "--hf_token", p.cfg.HFToken)
	}

	if lang := language.ToISO2(p.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if p.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type payload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return out.Segments, nil
}

// loadTranscriptText joins segment text, one sentence per line.
func loadTranscriptText(jsonPath string) (string, error) {
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
