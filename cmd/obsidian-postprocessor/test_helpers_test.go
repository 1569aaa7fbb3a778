package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rwese/obsidian-postprocessor/internal/testsupport"
)

type cliTestEnv struct {
	vault      *testsupport.Vault
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a vault and a config with one script processor
// named "transcribe" that prints HELLO.
func setupCLITestEnv(t *testing.T, processorScript string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("VAULT_PATH", "")
	t.Setenv("OBSIDIAN_POSTPROCESSOR_CONFIG", "")

	vaultDir := filepath.Join(base, "vault")
	if err := os.MkdirAll(vaultDir, 0o755); err != nil {
		t.Fatalf("mkdir vault: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, vaultDir, processorScript)

	return &cliTestEnv{
		vault:      testsupport.OpenVault(t, vaultDir),
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path, vaultDir, script string) {
	t.Helper()
	content := fmt.Sprintf(`vault_path = %q

[processing]
concurrency_limit = 2
retry_attempts = 2
retry_delay = 0.01
timeout = 5

[logging]
level = "error"
format = "json"

[processors.transcribe]
type = "script"
command = "/bin/sh"
args = ["-c", %q]
`, vaultDir, script)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
