package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rwese/obsidian-postprocessor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose vault lives in a fresh temp directory.
// Retry delays are zeroed so tests do not sleep.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.VaultPath = filepath.Join(base, "vault")
	cfgVal.Processing.RetryDelay = 0
	cfgVal.Processing.Timeout = 5
	cfgVal.Logging.Format = "json"
	if err := os.MkdirAll(cfgVal.VaultPath, 0o755); err != nil {
		t.Fatalf("mkdir vault: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithProcessor adds a processor definition to the test config.
func WithProcessor(name string, p config.Processor) ConfigOption {
	return func(b *configBuilder) {
		if p.Timeout == 0 {
			p.Timeout = b.cfg.Processing.Timeout
		}
		if p.RetryAttempts == 0 {
			p.RetryAttempts = b.cfg.Processing.RetryAttempts
		}
		b.cfg.Processors[name] = p
	}
}

// WithConcurrency overrides the worker pool size.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.ConcurrencyLimit = n
	}
}

// WithStubbedBinaries writes executable shell scripts into a bin directory
// and prepends it to PATH. Each script body follows the shebang line.
func WithStubbedBinaries(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for name, body := range scripts {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.VaultPath)
}
