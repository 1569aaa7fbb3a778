package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rwese/obsidian-postprocessor/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckHTTPEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		status int
		passed bool
	}{
		{name: "ok", status: http.StatusOK, passed: true},
		{name: "not found counts as reachable", status: http.StatusNotFound, passed: true},
		{name: "unauthorized", status: http.StatusUnauthorized, passed: false},
		{name: "server error", status: http.StatusServiceUnavailable, passed: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer k" {
					t.Errorf("missing bearer token")
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			result := CheckHTTPEndpoint(context.Background(), "svc", srv.URL, "k")
			if result.Passed != tc.passed {
				t.Fatalf("Passed = %v want %v (%s)", result.Passed, tc.passed, result.Detail)
			}
		})
	}
}

func TestCheckHTTPEndpoint_MissingURL(t *testing.T) {
	if result := CheckHTTPEndpoint(context.Background(), "svc", "", ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ChecksVaultAndProcessors(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	disabled := false
	cfg := config.Default()
	cfg.VaultPath = t.TempDir()
	cfg.Processors = map[string]config.Processor{
		"local":   {Type: config.ProcessorWhisperX},
		"echo":    {Type: config.ProcessorScript, Command: "/bin/sh"},
		"skipped": {Type: config.ProcessorScript, Command: "nope", Enabled: &disabled},
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(results), results)
	}
	if !results[0].Passed || results[0].Name != "Vault" {
		t.Fatalf("unexpected vault result: %+v", results[0])
	}
	if !results[1].Passed || results[1].Name != "Processor echo" {
		t.Fatalf("unexpected script result: %+v", results[1])
	}
	if results[2].Passed || results[2].Name != "Processor local" {
		t.Fatalf("expected missing uvx, got %+v", results[2])
	}
	if blocking := Blocking(results); len(blocking) != 1 {
		t.Fatalf("expected one blocking failure, got %+v", blocking)
	}
}
