package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Scan controls which documents and attachments the scanner considers.
type Scan struct {
	ExcludePatterns      []string `toml:"exclude_patterns"`
	DocumentExtensions   []string `toml:"document_extensions"`
	AttachmentExtensions []string `toml:"attachment_extensions"`
}

// Processing contains the orchestrator's concurrency, retry, and timeout knobs.
// Durations are expressed in seconds.
type Processing struct {
	ConcurrencyLimit  int     `toml:"concurrency_limit"`
	RetryAttempts     int     `toml:"retry_attempts"`
	RetryDelay        float64 `toml:"retry_delay"`
	BackoffFactor     float64 `toml:"backoff_factor"`
	Timeout           float64 `toml:"timeout"`
	MaxAttempts       int     `toml:"max_attempts"`
	ArtifactPlacement string  `toml:"artifact_placement"`
	DryRun            bool    `toml:"dry_run"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunSummary     bool   `toml:"run_summary"`
	Failures       bool   `toml:"failures"`
}

// Watch contains configuration for the watch command.
type Watch struct {
	Debounce float64 `toml:"debounce"`
}

// Processor configures one named processor. Only the fields relevant to Type
// are read; the rest stay zero.
type Processor struct {
	Type          string   `toml:"type"`
	Enabled       *bool    `toml:"enabled"`
	Timeout       float64  `toml:"timeout"`
	RetryAttempts int      `toml:"retry_attempts"`
	Extensions    []string `toml:"extensions"`
	CleanupKeys   []string `toml:"cleanup_keys"`

	// http
	URL          string  `toml:"url"`
	Mode         string  `toml:"mode"`
	APIKey       string  `toml:"api_key"`
	Model        string  `toml:"model"`
	Language     string  `toml:"language"`
	Prompt       string  `toml:"prompt"`
	PollInterval float64 `toml:"poll_interval"`

	// script
	Command            string            `toml:"command"`
	Args               []string          `toml:"args"`
	Env                map[string]string `toml:"env"`
	WorkDir            string            `toml:"work_dir"`
	PermanentExitCodes []int             `toml:"permanent_exit_codes"`

	// whisperx
	CUDA      bool   `toml:"cuda"`
	VADMethod string `toml:"vad_method"`
	HFToken   string `toml:"hf_token"`
}

// IsEnabled reports whether the processor participates in runs. Processors
// are enabled unless explicitly disabled.
func (p Processor) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Config encapsulates all configuration values for the post-processor.
//
// Configuration sections by subsystem:
//   - VaultPath: root of the Obsidian vault
//   - Scan: exclusion globs and extension allow-lists
//   - Processing: worker pool size, retry policy, timeouts, artifact placement
//   - Logging: log format, level, and optional file
//   - Notifications: ntfy push notification settings
//   - Watch: debounce for the watch command
//   - Processors: processor name to processor settings
type Config struct {
	VaultPath     string               `toml:"vault_path"`
	Scan          Scan                 `toml:"scan"`
	Processing    Processing           `toml:"processing"`
	Logging       Logging              `toml:"logging"`
	Notifications Notifications        `toml:"notifications"`
	Watch         Watch                `toml:"watch"`
	Processors    map[string]Processor `toml:"processors"`
}

// EnabledProcessors returns the names of enabled processors in sorted order.
func (c *Config) EnabledProcessors() []string {
	names := make([]string, 0, len(c.Processors))
	for name, p := range c.Processors {
		if p.IsEnabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has paths expanded and environment references resolved.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if value, ok := os.LookupEnv(envConfigPath); ok {
			path = strings.TrimSpace(value)
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	candidates := make([]string, 0, 3)
	if vault, ok := os.LookupEnv(envVaultPath); ok && strings.TrimSpace(vault) != "" {
		if expanded, err := expandPath(strings.TrimSpace(vault)); err == nil {
			candidates = append(candidates, filepath.Join(expanded, ".obsidian", vaultConfigName))
		}
	}
	candidates = append(candidates, defaultPath)
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	candidates = append(candidates, projectPath)

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
