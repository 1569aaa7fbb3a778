package preflight

import (
	"context"

	"github.com/rwese/obsidian-postprocessor/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional failures are reported but do not block a run.
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Vault", cfg.VaultPath)}

	for _, name := range cfg.EnabledProcessors() {
		results = append(results, CheckProcessor(ctx, name, cfg.Processors[name])...)
	}
	return results
}

// Blocking returns the failed checks that must pass before processing.
func Blocking(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
