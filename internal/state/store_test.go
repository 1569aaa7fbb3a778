package state_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rwese/obsidian-postprocessor/internal/fileutil"
	"github.com/rwese/obsidian-postprocessor/internal/frontmatter"
	"github.com/rwese/obsidian-postprocessor/internal/state"
)

var fixedNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func newStore(opts ...state.Option) *state.Store {
	return state.NewStore(append([]state.Option{state.WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func writeNote(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write note: %v", err)
	}
	return path
}

func readNote(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	return string(raw)
}

func decodeNote(t *testing.T, path string) *frontmatter.Document {
	t.Helper()
	doc, err := frontmatter.Decode(readNote(t, path))
	if err != nil {
		t.Fatalf("decode note: %v", err)
	}
	return doc
}

func TestRecordEligible(t *testing.T) {
	tests := []struct {
		name string
		rec  state.Record
		want bool
	}{
		{"pending", state.Record{Status: state.StatusPending}, true},
		{"zero value", state.Record{}, true},
		{"stale in progress", state.Record{Status: state.StatusInProgress, Attempts: 2}, true},
		{"completed", state.Record{Status: state.StatusCompleted, Attempts: 1}, false},
		{"failed under limit", state.Record{Status: state.StatusFailed, Attempts: 2, Failure: state.FailureRetryable}, true},
		{"failed at limit", state.Record{Status: state.StatusFailed, Attempts: 3, Failure: state.FailureTimeout}, false},
		{"fatal", state.Record{Status: state.StatusFailed, Attempts: 1, Failure: state.FailureFatal}, false},
		{"canceled", state.Record{Status: state.StatusFailed, Attempts: 5, Failure: state.FailureCanceled}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.Eligible(3); got != tc.want {
				t.Fatalf("Eligible(3): got %v want %v", got, tc.want)
			}
		})
	}
}

func TestUpdateWritesRecordAndArtifact(t *testing.T) {
	path := writeNote(t, "![[rec.m4a]]\n")
	store := newStore()

	rec := state.Record{Status: state.StatusCompleted, Attempts: 1, Message: "transcribed"}
	if err := store.Update(context.Background(), path, "rec.m4a", "transcribe", rec, state.Artifact{Text: "HELLO", Embed: "![[rec.m4a]]"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	doc := decodeNote(t, path)
	if doc.Body != "![[rec.m4a]]\n\nHELLO\n" {
		t.Fatalf("body: got %q", doc.Body)
	}
	got, ok := store.Get(doc, "rec.m4a", "transcribe")
	if !ok {
		t.Fatal("expected record")
	}
	want := state.Record{Status: state.StatusCompleted, Attempts: 1, Timestamp: fixedNow, Message: "transcribed"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if !store.IsProcessed(doc, "rec.m4a", "transcribe") {
		t.Fatal("expected IsProcessed")
	}

	var ns map[string]struct {
		Status   string `yaml:"status"`
		Attempts int    `yaml:"attempts"`
	}
	if _, err := doc.Metadata.Decode(state.Namespace, &ns); err != nil {
		t.Fatal(err)
	}
	if ns["transcribe"].Status != "completed" || ns["transcribe"].Attempts != 1 {
		t.Fatalf("aggregate: got %+v", ns["transcribe"])
	}
}

func TestUpdatePreservesOtherFrontmatter(t *testing.T) {
	original := "---\ncreated: <% tp.date.now() %>\ntitle: {{title}}\n---\n# Meeting\n\n![[rec.m4a]]\n"
	path := writeNote(t, original)
	store := newStore()

	if err := store.Update(context.Background(), path, "rec.m4a", "transcribe", state.Record{Status: state.StatusInProgress}, state.Artifact{}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	text := readNote(t, path)
	if !strings.HasPrefix(text, "---\ncreated: <% tp.date.now() %>\ntitle: {{title}}\nprocessor_state:\n") {
		t.Fatalf("unexpected frontmatter:\n%s", text)
	}
	if !strings.HasSuffix(text, "---\n# Meeting\n\n![[rec.m4a]]\n") {
		t.Fatalf("body changed:\n%s", text)
	}
}

func TestAggregateReflectsAttachments(t *testing.T) {
	path := writeNote(t, "![[a.m4a]]\n![[b.m4a]]\n")
	store := newStore()
	ctx := context.Background()

	if err := store.Update(ctx, path, "a.m4a", "transcribe", state.Record{Status: state.StatusCompleted, Attempts: 1}, state.Artifact{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Update(ctx, path, "b.m4a", "transcribe", state.Record{Status: state.StatusFailed, Attempts: 2, Message: "boom", Failure: state.FailureRetryable}, state.Artifact{}); err != nil {
		t.Fatal(err)
	}

	doc := decodeNote(t, path)
	var ns map[string]struct {
		Status   string `yaml:"status"`
		Attempts int    `yaml:"attempts"`
		Message  string `yaml:"message"`
	}
	if _, err := doc.Metadata.Decode(state.Namespace, &ns); err != nil {
		t.Fatal(err)
	}
	agg := ns["transcribe"]
	if agg.Status != "failed" || agg.Attempts != 3 || agg.Message != "boom" {
		t.Fatalf("aggregate: got %+v", agg)
	}

	counts, err := state.Summarize(doc)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]state.StatusCounts{"transcribe": {Completed: 1, Failed: 1}}, counts); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestManualRemovalMeansPending(t *testing.T) {
	path := writeNote(t, "![[rec.m4a]]\n")
	store := newStore()
	if err := store.Update(context.Background(), path, "rec.m4a", "transcribe", state.Record{Status: state.StatusCompleted, Attempts: 1}, state.Artifact{}); err != nil {
		t.Fatal(err)
	}

	doc := decodeNote(t, path)
	doc.Metadata.Delete(state.Namespace)
	text, err := frontmatter.Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	edited := decodeNote(t, path)
	if store.IsProcessed(edited, "rec.m4a", "transcribe") {
		t.Fatal("expected removed record to read as unprocessed")
	}
	if _, ok := store.Get(edited, "rec.m4a", "transcribe"); ok {
		t.Fatal("expected no record after manual removal")
	}
}

func TestResetRemovesRecords(t *testing.T) {
	path := writeNote(t, "---\ntitle: x\n---\n![[a.m4a]]\n![[b.m4a]]\n")
	store := newStore()
	ctx := context.Background()
	for _, name := range []string{"a.m4a", "b.m4a"} {
		if err := store.Update(ctx, path, name, "transcribe", state.Record{Status: state.StatusCompleted, Attempts: 1}, state.Artifact{}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.Reset(ctx, path, "transcribe", "a.m4a")
	if err != nil || n != 1 {
		t.Fatalf("Reset single: n=%d err=%v", n, err)
	}
	doc := decodeNote(t, path)
	if store.IsProcessed(doc, "a.m4a", "transcribe") || !store.IsProcessed(doc, "b.m4a", "transcribe") {
		t.Fatal("expected only a.m4a reset")
	}

	n, err = store.Reset(ctx, path, "", "")
	if err != nil || n != 1 {
		t.Fatalf("Reset all: n=%d err=%v", n, err)
	}
	if got := readNote(t, path); got != "---\ntitle: x\n---\n![[a.m4a]]\n![[b.m4a]]\n" {
		t.Fatalf("expected namespace removed entirely, got:\n%s", got)
	}

	n, err = store.Reset(ctx, path, "", "")
	if err != nil || n != 0 {
		t.Fatalf("Reset empty: n=%d err=%v", n, err)
	}
}

func TestUpdateRefusesMalformedFrontmatter(t *testing.T) {
	original := "---\nkey: [oops\n---\n![[rec.m4a]]\n"
	path := writeNote(t, original)
	store := newStore()

	err := store.Update(context.Background(), path, "rec.m4a", "transcribe", state.Record{Status: state.StatusCompleted}, state.Artifact{Text: "HELLO"})
	var werr *state.WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	var perr *frontmatter.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected wrapped ParseError, got %v", err)
	}
	if got := readNote(t, path); got != original {
		t.Fatalf("malformed note was modified:\n%s", got)
	}
}

func TestUpdateReportsWriteFailure(t *testing.T) {
	original := "![[rec.m4a]]\n"
	path := writeNote(t, original)
	restore := fileutil.SetRenameForTests(func(string, string) error { return errors.New("read-only filesystem") })
	defer restore()

	err := newStore().Update(context.Background(), path, "rec.m4a", "transcribe", state.Record{Status: state.StatusCompleted}, state.Artifact{Text: "HELLO"})
	var werr *state.WriteError
	if !errors.As(err, &werr) || werr.Op != "write" {
		t.Fatalf("expected write WriteError, got %v", err)
	}
	if got := readNote(t, path); got != original {
		t.Fatalf("note changed despite failed write: %q", got)
	}
}

func TestConcurrentUpdatesToSameNote(t *testing.T) {
	path := writeNote(t, "# many\n")
	store := newStore()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("clip-%02d.m4a", i)
			errs <- store.Update(context.Background(), path, name, "transcribe", state.Record{Status: state.StatusCompleted, Attempts: 1}, state.Artifact{})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
	}

	records, err := state.Records(decodeNote(t, path))
	if err != nil {
		t.Fatal(err)
	}
	if len(records["transcribe"]) != n {
		t.Fatalf("expected %d records, got %d", n, len(records["transcribe"]))
	}
}

func TestCleanupKeysRemovedOnCompletion(t *testing.T) {
	path := writeNote(t, "---\nbroken_recordings: [rec.m4a]\nkeep: yes\n---\n![[rec.m4a]]\n")
	store := newStore(state.WithCleanupKeys("transcribe", []string{"broken_recordings"}))
	ctx := context.Background()

	if err := store.Update(ctx, path, "rec.m4a", "transcribe", state.Record{Status: state.StatusFailed, Attempts: 1}, state.Artifact{}); err != nil {
		t.Fatal(err)
	}
	if !decodeNote(t, path).Metadata.Has("broken_recordings") {
		t.Fatal("cleanup key removed on failure")
	}
	if err := store.Update(ctx, path, "rec.m4a", "transcribe", state.Record{Status: state.StatusCompleted, Attempts: 2}, state.Artifact{}); err != nil {
		t.Fatal(err)
	}
	doc := decodeNote(t, path)
	if doc.Metadata.Has("broken_recordings") || !doc.Metadata.Has("keep") {
		t.Fatalf("unexpected keys after completion: %v", doc.Metadata.Keys())
	}
}

func TestArtifactPlacement(t *testing.T) {
	tests := []struct {
		name      string
		placement state.Placement
		body      string
		want      string
		// repeat is the body after a second identical insert.
		repeat string
	}{
		{
			name:      "append adds trailing newline",
			placement: state.PlacementAppend,
			body:      "![[rec.m4a]]",
			want:      "![[rec.m4a]]\n\n> **Transcript:**\n> hi\n",
			repeat:    "![[rec.m4a]]\n\n> **Transcript:**\n> hi\n\n> **Transcript:**\n> hi\n",
		},
		{
			name:      "after embed",
			placement: state.PlacementAfterEmbed,
			body:      "intro\n![[rec.m4a]]\noutro\n",
			want:      "intro\n![[rec.m4a]]\n\n> **Transcript:**\n> hi\n\noutro\n",
			repeat:    "intro\n![[rec.m4a]]\n\n> **Transcript:**\n> hi\n\noutro\n",
		},
		{
			name:      "after embed missing falls back to append",
			placement: state.PlacementAfterEmbed,
			body:      "nothing here\n",
			want:      "nothing here\n\n> **Transcript:**\n> hi\n",
			repeat:    "nothing here\n\n> **Transcript:**\n> hi\n\n> **Transcript:**\n> hi\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeNote(t, tc.body)
			store := newStore(state.WithPlacement(tc.placement))
			artifact := state.Artifact{Text: "> **Transcript:**\n> hi\n", Embed: "![[rec.m4a]]"}
			rec := state.Record{Status: state.StatusCompleted, Attempts: 1}
			if err := store.Update(context.Background(), path, "rec.m4a", "transcribe", rec, artifact); err != nil {
				t.Fatal(err)
			}
			if got := decodeNote(t, path).Body; got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			if err := store.Update(context.Background(), path, "rec.m4a", "transcribe", rec, artifact); err != nil {
				t.Fatal(err)
			}
			if got := decodeNote(t, path).Body; got != tc.repeat {
				t.Fatalf("repeat insert: got %q want %q", got, tc.repeat)
			}
		})
	}
}

func TestUpdateHonoursCanceledContext(t *testing.T) {
	path := writeNote(t, "x\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newStore().Update(ctx, path, "a.m4a", "p", state.Record{Status: state.StatusCompleted}, state.Artifact{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAppendKeepsTextAlreadyInBody(t *testing.T) {
	path := writeNote(t, "Say Yes.\n![[a.m4a]]\n![[b.m4a]]\n")
	store := newStore()
	ctx := context.Background()
	rec := state.Record{Status: state.StatusCompleted, Attempts: 1}
	for _, name := range []string{"a.m4a", "b.m4a"} {
		if err := store.Update(ctx, path, name, "transcribe", rec, state.Artifact{Text: "Yes.", Embed: "![[" + name + "]]"}); err != nil {
			t.Fatal(err)
		}
	}
	want := "Say Yes.\n![[a.m4a]]\n![[b.m4a]]\n\nYes.\n\nYes.\n"
	if got := decodeNote(t, path).Body; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestProcessorLevelRecordAppliesToAttachments(t *testing.T) {
	doc, err := frontmatter.Decode("---\nprocessor_state:\n  transcribe:\n    status: completed\n    attempts: 1\n    timestamp: 1760432400.5\n---\n![[a.m4a]]\n![[b.m4a]]\n")
	if err != nil {
		t.Fatal(err)
	}
	store := newStore()
	for _, name := range []string{"a.m4a", "b.m4a"} {
		rec, ok := store.Get(doc, name, "transcribe")
		if !ok || rec.Status != state.StatusCompleted || rec.Attempts != 1 {
			t.Fatalf("%s: got %+v ok=%v", name, rec, ok)
		}
		if want := time.Unix(1760432400, 5e8).UTC(); !rec.Timestamp.Equal(want) {
			t.Fatalf("%s timestamp: got %v want %v", name, rec.Timestamp, want)
		}
	}
	if _, ok := store.Get(doc, "a.m4a", "summarize"); ok {
		t.Fatal("unexpected record for another processor")
	}

	counts, err := state.Summarize(doc)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]state.StatusCounts{"transcribe": {Completed: 1}}, counts); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusStringRecordIsReadAndRewritten(t *testing.T) {
	tests := []struct {
		raw  string
		want state.Status
	}{
		{"failed", state.StatusFailed},
		{"completed", state.StatusCompleted},
		{"processing", state.StatusInProgress},
		{"skipped", state.StatusCompleted},
		{"Pending", state.StatusPending},
		{"unheard-of", state.StatusPending},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			path := writeNote(t, "---\ntitle: x\nprocessor_state:\n  transcribe: "+tc.raw+"\n---\n![[rec.m4a]]\n")
			store := newStore()

			rec, ok := store.Get(decodeNote(t, path), "rec.m4a", "transcribe")
			if !ok || rec.Status != tc.want {
				t.Fatalf("got %+v ok=%v want status %s", rec, ok, tc.want)
			}

			if err := store.Update(context.Background(), path, "rec.m4a", "transcribe", state.Record{Status: state.StatusCompleted, Attempts: 1}, state.Artifact{}); err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			records, err := state.Records(decodeNote(t, path))
			if err != nil {
				t.Fatal(err)
			}
			if got := records["transcribe"]["rec.m4a"]; got.Status != state.StatusCompleted || got.Attempts != 1 {
				t.Fatalf("rewritten record: %+v", got)
			}
		})
	}
}

func TestUnreadableNamespace(t *testing.T) {
	for name, text := range map[string]string{
		"sequence namespace": "---\nprocessor_state: [a, b]\n---\nbody\n",
		"sequence entry":     "---\nprocessor_state:\n  transcribe: [a, b]\n---\nbody\n",
		"bad attachments":    "---\nprocessor_state:\n  transcribe:\n    attachments: nope\n---\nbody\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeNote(t, text)
			doc := decodeNote(t, path)
			if err := state.Validate(doc); !errors.Is(err, state.ErrInvalidNamespace) {
				t.Fatalf("Validate: expected ErrInvalidNamespace, got %v", err)
			}
			if _, ok := newStore().Get(doc, "rec.m4a", "transcribe"); ok {
				t.Fatal("expected no record")
			}
			err := newStore().Update(context.Background(), path, "rec.m4a", "transcribe", state.Record{Status: state.StatusCompleted}, state.Artifact{})
			if !errors.Is(err, state.ErrInvalidNamespace) {
				t.Fatalf("Update: expected ErrInvalidNamespace, got %v", err)
			}
			if got := readNote(t, path); got != text {
				t.Fatalf("note changed: %q", got)
			}
		})
	}
}

func TestNullEntriesAreIgnored(t *testing.T) {
	doc, err := frontmatter.Decode("---\nprocessor_state:\n  transcribe:\n---\nbody\n")
	if err != nil {
		t.Fatal(err)
	}
	if err := state.Validate(doc); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if _, ok := newStore().Get(doc, "rec.m4a", "transcribe"); ok {
		t.Fatal("expected no record")
	}
}

func TestPathLocksAreReleased(t *testing.T) {
	store := newStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 8 {
		path := writeNote(t, "# note\n")
		for j := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				name := fmt.Sprintf("clip-%d-%d.m4a", i, j)
				if err := store.Update(ctx, path, name, "transcribe", state.Record{Status: state.StatusCompleted, Attempts: 1}, state.Artifact{}); err != nil {
					t.Errorf("Update returned error: %v", err)
				}
			}()
		}
	}
	wg.Wait()
	if n := state.HeldLocks(store); n != 0 {
		t.Fatalf("expected no path locks after updates, found %d", n)
	}
}
