package frontmatter_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rwese/obsidian-postprocessor/internal/frontmatter"
)

func TestMetadataOrderAndAccessors(t *testing.T) {
	doc := mustDecode(t, "---\nb: 2\na: 1\n---\n")
	m := doc.Metadata

	if diff := cmp.Diff([]string{"b", "a"}, m.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if !m.Has("a") || m.Has("c") {
		t.Fatal("unexpected Has results")
	}
	if m.Changed() {
		t.Fatal("fresh metadata should be unchanged")
	}

	var missing int
	found, err := m.Decode("c", &missing)
	if err != nil || found {
		t.Fatalf("missing key: found=%v err=%v", found, err)
	}

	if err := m.Set("c", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if !m.Delete("b") {
		t.Fatal("expected delete to report presence")
	}
	if m.Delete("b") {
		t.Fatal("second delete should report absence")
	}
	if diff := cmp.Diff([]string{"a", "c"}, m.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	got, err := m.Map()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"a": 1, "c": []any{"x"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("map mismatch (-want +got):\n%s", diff)
	}
	if !m.Changed() {
		t.Fatal("expected metadata to be changed")
	}
}

func TestNewDocumentHasNoBlock(t *testing.T) {
	doc := frontmatter.New("body")
	if doc.HasBlock() || doc.Malformed() {
		t.Fatal("unexpected flags on new document")
	}
	if got := mustEncode(t, doc); got != "body" {
		t.Fatalf("got %q want %q", got, "body")
	}
}
