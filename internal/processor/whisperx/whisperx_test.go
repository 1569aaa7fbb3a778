package whisperx_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/rwese/obsidian-postprocessor/internal/processor"
	"github.com/rwese/obsidian-postprocessor/internal/processor/whisperx"
	"github.com/rwese/obsidian-postprocessor/internal/services"
)

func request(t *testing.T) processor.Request {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(dir, "memo.m4a")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return processor.Request{
		DocumentID: "note.md",
		VaultRoot:  dir,
		Attachment: processor.Attachment{Target: "memo.m4a", Name: "memo.m4a", Ext: "m4a", Path: audio},
	}
}

func flagValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestProcessReadsSegments(t *testing.T) {
	p := whisperx.New(whisperx.Config{Language: "german", VADMethod: "pyannote", HFToken: "hf_x"})

	var gotName string
	var gotArgs []string
	p.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		out := filepath.Join(flagValue(args, "--output_dir"), "memo.json")
		return os.WriteFile(out, []byte(`{"segments":[{"text":" Hallo. "},{"text":""},{"text":"Zweiter Satz."}]}`), 0o644)
	})

	out, err := p.Process(context.Background(), request(t))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if want := "> **Transcript:**\n> Hallo.\n> Zweiter Satz."; out.Artifact != want {
		t.Fatalf("got %q want %q", out.Artifact, want)
	}

	if gotName != whisperx.UVXCommand {
		t.Fatalf("expected %s, got %s", whisperx.UVXCommand, gotName)
	}
	checks := map[string]string{
		"--model":         whisperx.DefaultModel,
		"--language":      "de",
		"--vad_method":    "pyannote",
		"--hf_token":      "hf_x",
		"--device":        "cpu",
		"--output_format": "json",
	}
	for flag, want := range checks {
		if got := flagValue(gotArgs, flag); got != want {
			t.Errorf("%s = %q want %q", flag, got, want)
		}
	}
}

func TestProcessCUDAArgs(t *testing.T) {
	p := whisperx.New(whisperx.Config{Model: "large-v3-turbo", CUDAEnabled: true})
	var gotArgs []string
	p.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		return os.WriteFile(filepath.Join(flagValue(args, "--output_dir"), "memo.json"), []byte(`{"segments":[{"text":"hi"}]}`), 0o644)
	})
	if _, err := p.Process(context.Background(), request(t)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got := flagValue(gotArgs, "--index-url"); got != whisperx.CUDAIndexURL {
		t.Fatalf("index url %q", got)
	}
	if got := flagValue(gotArgs, "--device"); got != "cuda" {
		t.Fatalf("device %q", got)
	}
	if slices.Contains(gotArgs, "--language") {
		t.Fatal("language should be omitted when unset")
	}
	if slices.Contains(gotArgs, "--hf_token") {
		t.Fatal("hf token only applies to pyannote")
	}
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name      string
		runner    whisperx.CommandRunner
		permanent bool
	}{
		{
			name:   "command fails",
			runner: func(context.Context, string, ...string) error { return errors.New("exit status 1") },
		},
		{
			name:   "no output",
			runner: func(context.Context, string, ...string) error { return nil },
		},
		{
			name: "empty transcript",
			runner: func(_ context.Context, _ string, args ...string) error {
				return os.WriteFile(filepath.Join(flagValue(args, "--output_dir"), "memo.json"), []byte(`{"segments":[]}`), 0o644)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := whisperx.New(whisperx.Config{})
			p.WithCommandRunner(tc.runner)
			_, err := p.Process(context.Background(), request(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if services.IsPermanent(err) != tc.permanent {
				t.Fatalf("IsPermanent = %v want %v (%v)", services.IsPermanent(err), tc.permanent, err)
			}
		})
	}
}

func TestMissingUVXIsConfigurationError(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	p := whisperx.New(whisperx.Config{})
	_, err := p.Process(context.Background(), request(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
