// Package config loads, normalizes, and validates post-processor
// configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and ${VAR} references, reads TOML files, and honours environment
// fallbacks such as VAULT_PATH. The Config type centralizes every knob the
// CLI and orchestrator need so the vault root, retry policy, and processor
// credentials are discovered in one pass.
package config
