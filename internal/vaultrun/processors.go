package vaultrun

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rwese/obsidian-postprocessor/internal/config"
	"github.com/rwese/obsidian-postprocessor/internal/orchestrator"
	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/processor/httpapi"
	"github.com/rwese/obsidian-postprocessor/internal/processor/script"
	"github.com/rwese/obsidian-postprocessor/internal/processor/whisperx"
)

// Registrations builds one registration per enabled processor.
func Registrations(cfg *config.Config, logger *slog.Logger) ([]orchestrator.Registration, error) {
	names := cfg.EnabledProcessors()
	regs := make([]orchestrator.Registration, 0, len(names))
	for _, name := range names {
		def := cfg.Processors[name]
		proc, err := buildProcessor(name, def, logger)
		if err != nil {
			return nil, err
		}
		regs = append(regs, orchestrator.Registration{
			Name:      name,
			Processor: proc,
			Policy: processor.RetryPolicy{
				Attempts: def.RetryAttempts,
				Delay:    seconds(cfg.Processing.RetryDelay),
				Backoff:  cfg.Processing.BackoffFactor,
			},
			Timeout: seconds(def.Timeout),
		})
	}
	return regs, nil
}

func buildProcessor(name string, def config.Processor, logger *slog.Logger) (processor.Processor, error) {
	switch def.Type {
	case config.ProcessorHTTP:
		return httpapi.New(httpapi.Config{
			URL:          def.URL,
			Mode:         def.Mode,
			APIKey:       def.APIKey,
			Model:        def.Model,
			Language:     def.Language,
			Prompt:       def.Prompt,
			PollInterval: seconds(def.PollInterval),
			Extensions:   def.Extensions,
		}, logger), nil
	case config.ProcessorScript:
		return script.New(script.Config{
			Command:            def.Command,
			Args:               def.Args,
			Env:                def.Env,
			WorkDir:            def.WorkDir,
			PermanentExitCodes: def.PermanentExitCodes,
			Extensions:         def.Extensions,
		}), nil
	case config.ProcessorWhisperX:
		return whisperx.New(whisperx.Config{
			Model:       def.Model,
			Language:    def.Language,
			CUDAEnabled: def.CUDA,
			VADMethod:   def.VADMethod,
			HFToken:     def.HFToken,
			Extensions:  def.Extensions,
		}), nil
	default:
		return nil, fmt.Errorf("processor %q: unknown type %q", name, def.Type)
	}
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
