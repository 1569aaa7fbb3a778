package script_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/processor/script"
	"github.com/rwese/obsidian-postprocessor/internal/services"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proc.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func request(t *testing.T) processor.Request {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(dir, "rec.m4a")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return processor.Request{
		DocumentID:   "note.md",
		DocumentPath: filepath.Join(dir, "note.md"),
		VaultRoot:    dir,
		Attachment:   processor.Attachment{Target: "rec.m4a", Name: "rec.m4a", Ext: "m4a", Path: audio},
	}
}

func TestScriptUsesStdoutAsArtifact(t *testing.T) {
	cmd := writeScript(t, `echo "file=$(basename "$1") name=$2 env=$GREETING attach=$(basename "$OBSIDIAN_ATTACHMENT")"`)
	p := script.New(script.Config{
		Command: cmd,
		Args:    []string{"{attachment}", "{name}"},
		Env:     map[string]string{"GREETING": "hi"},
	})

	out, err := p.Process(context.Background(), request(t))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	want := "file=rec.m4a name=rec.m4a env=hi attach=rec.m4a"
	if out.Artifact != want {
		t.Fatalf("got %q want %q", out.Artifact, want)
	}
}

func TestScriptExitCodes(t *testing.T) {
	cmd := writeScript(t, `echo "bad input" >&2; exit "$1"`)
	p := script.New(script.Config{Command: cmd, Args: []string{"{name}"}, PermanentExitCodes: []int{2}})

	req := request(t)
	req.Attachment.Name = "2"
	_, err := p.Process(context.Background(), req)
	if !services.IsPermanent(err) {
		t.Fatalf("expected permanent error for exit 2, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("expected stderr in error, got %v", err)
	}

	req.Attachment.Name = "1"
	_, err = p.Process(context.Background(), req)
	if err == nil || services.IsPermanent(err) {
		t.Fatalf("expected retryable error for exit 1, got %v", err)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestScriptMissingCommandIsPermanent(t *testing.T) {
	p := script.New(script.Config{Command: filepath.Join(t.TempDir(), "nope")})
	_, err := p.Process(context.Background(), request(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestScriptRequiresResolvedAttachment(t *testing.T) {
	p := script.New(script.Config{Command: "true"})
	req := request(t)
	req.Attachment.Path = ""
	_, err := p.Process(context.Background(), req)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScriptCanProcessFiltersExtensions(t *testing.T) {
	p := script.New(script.Config{Command: "true", Extensions: []string{"m4a"}})
	if !p.CanProcess(processor.Document{Attachment: processor.Attachment{Ext: "m4a"}}) {
		t.Fatal("expected m4a accepted")
	}
	if p.CanProcess(processor.Document{Attachment: processor.Attachment{Ext: "mp3"}}) {
		t.Fatal("expected mp3 rejected")
	}
}
