package config

const (
	defaultConfigPath        = "~/.config/obsidian-postprocessor/config.toml"
	projectConfigName        = "postprocessor.toml"
	vaultConfigName          = "postprocessor.toml"
	envConfigPath            = "OBSIDIAN_POSTPROCESSOR_CONFIG"
	envVaultPath             = "VAULT_PATH"
	defaultConcurrencyLimit  = 5
	defaultRetryAttempts     = 3
	defaultRetryDelay        = 1.0
	defaultBackoffFactor     = 2.0
	defaultTimeout           = 300.0
	defaultArtifactPlacement = "append"
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
	defaultNtfyTimeout       = 10
	defaultWatchDebounce     = 2.0
	defaultPollInterval      = 2.0
	defaultHTTPMode          = "async"
)

// Processor types understood by the wiring layer.
const (
	ProcessorHTTP     = "http"
	ProcessorScript   = "script"
	ProcessorWhisperX = "whisperx"
)

// Artifact placements understood by the state store.
const (
	PlacementAppend     = "append"
	PlacementAfterEmbed = "after_embed"
)

var (
	defaultExcludePatterns = []string{
		"templates/**",
		"**/Templates/**",
		".obsidian/**",
		".trash/**",
		"**/.*",
	}
	defaultDocumentExtensions   = []string{".md"}
	defaultAttachmentExtensions = []string{"m4a", "mp3", "wav", "flac", "aac", "ogg", "opus", "webm"}

	// legacyTranscribeKeys are v1 frontmatter fields that a successful
	// transcription supersedes.
	legacyTranscribeKeys = []string{"broken_recordings", "broken_recordings_info", "obsidian-postprocessor"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Scan: Scan{
			ExcludePatterns:      append([]string(nil), defaultExcludePatterns...),
			DocumentExtensions:   append([]string(nil), defaultDocumentExtensions...),
			AttachmentExtensions: append([]string(nil), defaultAttachmentExtensions...),
		},
		Processing: Processing{
			ConcurrencyLimit:  defaultConcurrencyLimit,
			RetryAttempts:     defaultRetryAttempts,
			RetryDelay:        defaultRetryDelay,
			BackoffFactor:     defaultBackoffFactor,
			Timeout:           defaultTimeout,
			ArtifactPlacement: defaultArtifactPlacement,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			RunSummary:     true,
			Failures:       true,
		},
		Watch: Watch{
			Debounce: defaultWatchDebounce,
		},
		Processors: map[string]Processor{},
	}
}
