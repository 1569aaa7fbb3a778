package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeVault(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeProcessing()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.normalizeNotifications()
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = defaultWatchDebounce
	}
	return c.normalizeProcessors()
}

func (c *Config) normalizeVault() error {
	c.VaultPath = strings.TrimSpace(os.ExpandEnv(c.VaultPath))
	if c.VaultPath == "" {
		if value, ok := os.LookupEnv(envVaultPath); ok {
			c.VaultPath = strings.TrimSpace(value)
		}
	}
	var err error
	if c.VaultPath, err = expandPath(c.VaultPath); err != nil {
		return fmt.Errorf("vault_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	if c.Scan.ExcludePatterns == nil {
		c.Scan.ExcludePatterns = append([]string(nil), defaultExcludePatterns...)
	}
	patterns := c.Scan.ExcludePatterns[:0]
	for _, p := range c.Scan.ExcludePatterns {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	c.Scan.ExcludePatterns = patterns

	c.Scan.DocumentExtensions = normalizeExtensions(c.Scan.DocumentExtensions, true)
	if len(c.Scan.DocumentExtensions) == 0 {
		c.Scan.DocumentExtensions = append([]string(nil), defaultDocumentExtensions...)
	}
	c.Scan.AttachmentExtensions = normalizeExtensions(c.Scan.AttachmentExtensions, false)
	if len(c.Scan.AttachmentExtensions) == 0 {
		c.Scan.AttachmentExtensions = append([]string(nil), defaultAttachmentExtensions...)
	}
}

// normalizeExtensions lowercases and deduplicates extensions. Document
// extensions keep a leading dot, attachment extensions drop it.
func normalizeExtensions(values []string, withDot bool) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.TrimPrefix(v, ".")
		if v == "" {
			continue
		}
		if withDot {
			v = "." + v
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (c *Config) normalizeProcessing() {
	c.Processing.ArtifactPlacement = strings.ToLower(strings.TrimSpace(c.Processing.ArtifactPlacement))
	if c.Processing.ArtifactPlacement == "" {
		c.Processing.ArtifactPlacement = defaultArtifactPlacement
	}
	if value, ok := os.LookupEnv("OBSIDIAN_POSTPROCESSOR_DRY_RUN"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes":
			c.Processing.DryRun = true
		}
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if file := strings.TrimSpace(c.Logging.File); file != "" {
		expanded, err := expandPath(os.ExpandEnv(file))
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = expanded
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(os.ExpandEnv(c.Notifications.NtfyTopic))
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeProcessors() error {
	if c.Processors == nil {
		c.Processors = map[string]Processor{}
	}
	for name, p := range c.Processors {
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		p.URL = strings.TrimRight(strings.TrimSpace(os.ExpandEnv(p.URL)), "/")
		p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
		p.Model = strings.TrimSpace(p.Model)
		p.Language = strings.TrimSpace(p.Language)
		p.Command = strings.TrimSpace(os.ExpandEnv(p.Command))
		p.HFToken = strings.TrimSpace(os.ExpandEnv(p.HFToken))
		p.VADMethod = strings.ToLower(strings.TrimSpace(p.VADMethod))
		p.Extensions = normalizeExtensions(p.Extensions, false)
		for i, arg := range p.Args {
			p.Args[i] = os.ExpandEnv(arg)
		}
		for key, value := range p.Env {
			p.Env[key] = os.ExpandEnv(value)
		}
		if p.WorkDir != "" {
			expanded, err := expandPath(os.ExpandEnv(p.WorkDir))
			if err != nil {
				return fmt.Errorf("processors.%s.work_dir: %w", name, err)
			}
			p.WorkDir = expanded
		}

		if p.Timeout <= 0 {
			p.Timeout = c.Processing.Timeout
		}
		if p.RetryAttempts <= 0 {
			p.RetryAttempts = c.Processing.RetryAttempts
		}
		if p.Type == ProcessorHTTP {
			p.Mode = strings.ToLower(strings.TrimSpace(p.Mode))
			if p.Mode == "" {
				p.Mode = defaultHTTPMode
			}
			if p.PollInterval <= 0 {
				p.PollInterval = defaultPollInterval
			}
		}
		if p.CleanupKeys == nil && name == "transcribe" {
			p.CleanupKeys = append([]string(nil), legacyTranscribeKeys...)
		}
		c.Processors[name] = p
	}
	return nil
}
