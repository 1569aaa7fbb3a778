package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/rwese/obsidian-postprocessor/internal/config"
	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/vaultrun"
)

type commandContext struct {
	configFlag *string
	vaultFlag  *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, vaultFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		vaultFlag:  vaultFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if vault := flagValue(c.vaultFlag); vault != "" {
			// Load falls back to VAULT_PATH, which also steers config discovery.
			if err := os.Setenv("VAULT_PATH", vault); err != nil {
				c.configErr = fmt.Errorf("set vault path: %w", err)
				return
			}
		}
		cfg, path, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if vault := flagValue(c.vaultFlag); vault != "" {
			expanded, err := config.ExpandPath(vault)
			if err != nil {
				c.configErr = fmt.Errorf("resolve vault path: %w", err)
				return
			}
			cfg.VaultPath = expanded
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) runtime(opts ...vaultrun.Option) (*vaultrun.Runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(cfg.VaultPath); err != nil {
		return nil, fmt.Errorf("vault %s: %w", cfg.VaultPath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("vault %s is not a directory", cfg.VaultPath)
	}
	return vaultrun.New(cfg, logger, opts...)
}

func flagValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
