// Package script runs a local command for each attachment and uses its
// standard output as the artifact.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/services"
)

const (
	stderrLimit = 2048
	waitDelay   = 2 * time.Second
)

// Config describes the command to run.
type Config struct {
	Command string
	// Args may reference {attachment}, {note}, {vault}, and {name}.
	Args               []string
	Env                map[string]string
	WorkDir            string
	PermanentExitCodes []int
	Extensions         []string
}

// Processor executes Config.Command.
type Processor struct {
	cfg Config
}

// New constructs a script processor.
func New(cfg Config) *Processor {
	return &Processor{cfg: cfg}
}

// CanProcess filters by extension.
func (p *Processor) CanProcess(doc processor.Document) bool {
	return processor.AcceptsExtension(p.cfg.Extensions, doc.Attachment.Ext)
}

// Process runs the command. A missing command or attachment is permanent, as
// are exit codes listed in PermanentExitCodes.
func (p *Processor) Process(ctx context.Context, req processor.Request) (processor.Output, error) {
	if err := processor.RequireResolved(req.Attachment); err != nil {
		return processor.Output{}, err
	}

	replacer := strings.NewReplacer(
		"{attachment}", req.Attachment.Path,
		"{note}", req.DocumentPath,
		"{vault}", req.VaultRoot,
		"{name}", req.Attachment.Name,
	)
	args := make([]string, len(p.cfg.Args))
	for i, arg := range p.cfg.Args {
		args[i] = replacer.Replace(arg)
	}

	cmd := exec.CommandContext(ctx, p.cfg.Command, args...) //nolint:gosec
	cmd.WaitDelay = waitDelay
	cmd.Dir = p.cfg.WorkDir
	cmd.Env = append(os.Environ(),
		"OBSIDIAN_ATTACHMENT="+req.Attachment.Path,
		"OBSIDIAN_NOTE="+req.DocumentPath,
		"OBSIDIAN_VAULT="+req.VaultRoot,
	)
	for key, value := range p.cfg.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return processor.Output{}, p.classify(err, stderr.String())
	}
	return processor.Output{Artifact: strings.TrimRight(stdout.String(), "\r\n")}, nil
}

func (p *Processor) classify(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if len(detail) > stderrLimit {
		detail = detail[:stderrLimit]
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrConfiguration, "script", "start", fmt.Sprintf("command %q not found", p.cfg.Command), err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		message := fmt.Sprintf("exit status %d", code)
		if detail != "" {
			message += ": " + detail
		}
		if slices.Contains(p.cfg.PermanentExitCodes, code) {
			return services.Wrap(services.ErrPermanent, "script", p.cfg.Command, message, nil)
		}
		return services.Wrap(services.ErrExternalTool, "script", p.cfg.Command, message, nil)
	}
	return services.Wrap(services.ErrExternalTool, "script", p.cfg.Command, detail, err)
}
