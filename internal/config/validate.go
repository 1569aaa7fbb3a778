package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rwese/obsidian-postprocessor/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVault(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateProcessors()
}

func (c *Config) validateVault() error {
	if c.VaultPath == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("vault_path is required. Set VAULT_PATH env var or edit %s (create with 'obsidian-postprocessor config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateScan() error {
	for _, pattern := range c.Scan.ExcludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("scan.exclude_patterns: invalid pattern %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateProcessing() error {
	p := c.Processing
	if p.ConcurrencyLimit <= 0 {
		return errors.New("processing.concurrency_limit must be positive")
	}
	if p.RetryAttempts <= 0 {
		return errors.New("processing.retry_attempts must be at least 1")
	}
	if p.RetryDelay < 0 {
		return errors.New("processing.retry_delay must be non-negative")
	}
	if p.BackoffFactor < 1 {
		return errors.New("processing.backoff_factor must be at least 1")
	}
	if p.Timeout <= 0 {
		return errors.New("processing.timeout must be positive")
	}
	if p.MaxAttempts < 0 {
		return errors.New("processing.max_attempts must be non-negative")
	}
	switch p.ArtifactPlacement {
	case PlacementAppend, PlacementAfterEmbed:
	default:
		return fmt.Errorf("processing.artifact_placement must be %q or %q", PlacementAppend, PlacementAfterEmbed)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be console, json, or auto (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return errors.New("notifications.ntfy_topic must be a full http(s) URL")
	}
	return nil
}

func (c *Config) validateProcessors() error {
	names := make([]string, 0, len(c.Processors))
	for name := range c.Processors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return errors.New("processors: name must not be empty")
		}
		p := c.Processors[name]
		key := "processors." + name
		switch p.Type {
		case ProcessorHTTP:
			if p.URL == "" {
				return fmt.Errorf("%s.url is required for http processors", key)
			}
			if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
				return fmt.Errorf("%s.url must be an http(s) URL", key)
			}
			if p.Mode != "async" && p.Mode != "openai" {
				return fmt.Errorf("%s.mode must be async or openai", key)
			}
		case ProcessorScript:
			if p.Command == "" {
				return fmt.Errorf("%s.command is required for script processors", key)
			}
		case ProcessorWhisperX:
			if p.VADMethod != "" && p.VADMethod != "silero" && p.VADMethod != "pyannote" {
				return fmt.Errorf("%s.vad_method must be silero or pyannote", key)
			}
		case "":
			return fmt.Errorf("%s.type is required (http, script, or whisperx)", key)
		default:
			return fmt.Errorf("%s.type %q is not supported", key, p.Type)
		}
		if !language.Valid(p.Language) {
			return fmt.Errorf("%s.language %q is not a recognized language code", key, p.Language)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("%s.timeout must be positive", key)
		}
		if p.RetryAttempts <= 0 {
			return fmt.Errorf("%s.retry_attempts must be at least 1", key)
		}
	}
	return nil
}
