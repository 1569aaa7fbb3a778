package frontmatter_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rwese/obsidian-postprocessor/internal/frontmatter"
)

func mustDecode(t *testing.T, text string) *frontmatter.Document {
	t.Helper()
	doc, err := frontmatter.Decode(text)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	return doc
}

func mustEncode(t *testing.T, doc *frontmatter.Document) string {
	t.Helper()
	out, err := frontmatter.Encode(doc)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	return out
}

func TestDecodeWithoutFrontmatter(t *testing.T) {
	text := "# Title\n\n![[rec.m4a]]\n"
	doc := mustDecode(t, text)
	if doc.HasBlock() {
		t.Fatal("expected no metadata block")
	}
	if doc.Metadata.Len() != 0 {
		t.Fatalf("expected empty metadata, got %v", doc.Metadata.Keys())
	}
	if doc.Body != text {
		t.Fatalf("body: got %q want %q", doc.Body, text)
	}
	if got := mustEncode(t, doc); got != text {
		t.Fatalf("encode: got %q want %q", got, text)
	}
}

func TestDecodeUnclosedFenceIsBody(t *testing.T) {
	text := "---\ntitle: x\nno closing fence"
	doc := mustDecode(t, text)
	if doc.HasBlock() {
		t.Fatal("expected unclosed fence to be treated as body")
	}
	if doc.Body != text {
		t.Fatalf("body: got %q want %q", doc.Body, text)
	}
}

func TestDecodeAcceptsDotsClosingFence(t *testing.T) {
	doc := mustDecode(t, "---\ntitle: x\n...\nbody\n")
	var title string
	if _, err := doc.Metadata.Decode("title", &title); err != nil {
		t.Fatal(err)
	}
	if title != "x" {
		t.Fatalf("title: got %q want %q", title, "x")
	}
	if doc.Body != "body\n" {
		t.Fatalf("body: got %q", doc.Body)
	}
}

func TestTemplatePlaceholdersSurviveRoundTrip(t *testing.T) {
	text := strings.Join([]string{
		"---",
		`created: <% tp.date.now("YYYY-MM-DD") %>`,
		"title: {{title}}",
		"tags: [meeting, {{tag}}]",
		"summary: \"Call on {% date %}\"",
		"---",
		"# Notes",
		"",
	}, "\n")

	doc := mustDecode(t, text)
	if got := mustEncode(t, doc); got != text {
		t.Fatalf("unchanged encode is not byte-identical:\ngot  %q\nwant %q", got, text)
	}

	var created, title, summary string
	var tags []string
	for key, out := range map[string]any{"created": &created, "title": &title, "summary": &summary, "tags": &tags} {
		if _, err := doc.Metadata.Decode(key, out); err != nil {
			t.Fatalf("decode %s: %v", key, err)
		}
	}
	if created != `<% tp.date.now("YYYY-MM-DD") %>` {
		t.Fatalf("created: got %q", created)
	}
	if title != "{{title}}" {
		t.Fatalf("title: got %q", title)
	}
	if summary != "Call on {% date %}" {
		t.Fatalf("summary: got %q", summary)
	}
	if diff := cmp.Diff([]string{"meeting", "{{tag}}"}, tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}

	if err := doc.Metadata.Set("status", "done"); err != nil {
		t.Fatal(err)
	}
	out := mustEncode(t, doc)
	for _, line := range []string{
		`created: <% tp.date.now("YYYY-MM-DD") %>`,
		"title: {{title}}",
		"tags: [meeting, {{tag}}]",
		"status: done",
	} {
		if !strings.Contains(out, line+"\n") {
			t.Fatalf("expected line %q in output:\n%s", line, out)
		}
	}
	if !strings.HasSuffix(out, "---\n# Notes\n") {
		t.Fatalf("body not preserved:\n%s", out)
	}
	if strings.Contains(out, "__fmtpl_") {
		t.Fatalf("mask token leaked into output:\n%s", out)
	}
}

func TestEncodeSplicesUntouchedKeys(t *testing.T) {
	text := "---\n# header comment\ntitle:   'Quoted'   # keep\ntags:\n  - a\n  - b\n\n# about status\nstatus: draft\n---\nBody text\n"

	tests := []struct {
		name   string
		mutate func(*frontmatter.Metadata) error
		want   string
	}{
		{
			name: "append key",
			mutate: func(m *frontmatter.Metadata) error {
				return m.Set("reviewed", true)
			},
			want: "---\n# header comment\ntitle:   'Quoted'   # keep\ntags:\n  - a\n  - b\n\n# about status\nstatus: draft\nreviewed: true\n---\nBody text\n",
		},
		{
			name: "replace key keeps lead comment",
			mutate: func(m *frontmatter.Metadata) error {
				return m.Set("status", "final")
			},
			want: "---\n# header comment\ntitle:   'Quoted'   # keep\ntags:\n  - a\n  - b\n\n# about status\nstatus: final\n---\nBody text\n",
		},
		{
			name: "delete key",
			mutate: func(m *frontmatter.Metadata) error {
				m.Delete("tags")
				return nil
			},
			want: "---\n# header comment\ntitle:   'Quoted'   # keep\n\n# about status\nstatus: draft\n---\nBody text\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := mustDecode(t, text)
			if err := tc.mutate(doc.Metadata); err != nil {
				t.Fatal(err)
			}
			if got := mustEncode(t, doc); got != tc.want {
				t.Fatalf("got %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestEncodeNewBlock(t *testing.T) {
	doc := mustDecode(t, "![[rec.m4a]]\n")
	if err := doc.Metadata.Set("processed", true); err != nil {
		t.Fatal(err)
	}
	want := "---\nprocessed: true\n---\n![[rec.m4a]]\n"
	if got := mustEncode(t, doc); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEncodePreservesCRLF(t *testing.T) {
	doc := mustDecode(t, "---\r\ntitle: A\r\n---\r\nbody\r\n")
	if doc.Newline() != "\r\n" {
		t.Fatalf("newline: got %q", doc.Newline())
	}
	if err := doc.Metadata.Set("b", "c"); err != nil {
		t.Fatal(err)
	}
	want := "---\r\ntitle: A\r\nb: c\r\n---\r\nbody\r\n"
	if got := mustEncode(t, doc); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestByteOrderMarkBeforeFence(t *testing.T) {
	doc := mustDecode(t, "\ufeff---\ntitle: x\n---\n![[rec.m4a]]\n")
	if !doc.HasBlock() {
		t.Fatal("expected metadata block after byte order mark")
	}
	var title string
	if ok, err := doc.Metadata.Decode("title", &title); err != nil || !ok || title != "x" {
		t.Fatalf("title: got %q ok=%v err=%v", title, ok, err)
	}
	if doc.Body != "![[rec.m4a]]\n" {
		t.Fatalf("body: got %q", doc.Body)
	}
	if err := doc.Metadata.Set("processed", true); err != nil {
		t.Fatal(err)
	}
	want := "\ufeff---\ntitle: x\nprocessed: true\n---\n![[rec.m4a]]\n"
	got := mustEncode(t, doc)
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if n := strings.Count(got, "---\n"); n != 2 {
		t.Fatalf("expected a single metadata block, found %d fences", n)
	}
}

func TestByteOrderMarkWithoutBlock(t *testing.T) {
	doc := mustDecode(t, "\ufeffbody\n")
	if doc.Body != "body\n" {
		t.Fatalf("body: got %q", doc.Body)
	}
	if got := mustEncode(t, doc); got != "\ufeffbody\n" {
		t.Fatalf("unchanged encode: got %q", got)
	}
	if err := doc.Metadata.Set("processed", true); err != nil {
		t.Fatal(err)
	}
	want := "\ufeff---\nprocessed: true\n---\nbody\n"
	if got := mustEncode(t, doc); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEncodeUsesDetectedIndent(t *testing.T) {
	doc := mustDecode(t, "---\nparent:\n    child: 1\n---\n")
	if err := doc.Metadata.Set("extra", map[string]int{"x": 1}); err != nil {
		t.Fatal(err)
	}
	want := "---\nparent:\n    child: 1\nextra:\n    x: 1\n---\n"
	if got := mustEncode(t, doc); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEncodeCommentOnlyBlock(t *testing.T) {
	doc := mustDecode(t, "---\n# nothing yet\n---\nbody")
	if doc.Metadata.Len() != 0 {
		t.Fatalf("expected no keys, got %v", doc.Metadata.Keys())
	}
	if err := doc.Metadata.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	want := "---\n# nothing yet\nk: v\n---\nbody"
	if got := mustEncode(t, doc); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEncodeFlowMappingFallsBackToBlock(t *testing.T) {
	doc := mustDecode(t, "---\n{a: 1, b: 2}\n---\n")
	if err := doc.Metadata.Set("c", 3); err != nil {
		t.Fatal(err)
	}
	want := "---\na: 1\nb: 2\nc: 3\n---\n"
	if got := mustEncode(t, doc); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMalformedMetadata(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":  "---\nkey: [unclosed\n---\nbody\n",
		"duplicate key": "---\na: 1\na: 2\n---\nbody\n",
		"not a mapping": "---\n- a\n- b\n---\nbody\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			doc, err := frontmatter.Decode(text)
			var perr *frontmatter.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if doc == nil || !doc.Malformed() {
				t.Fatal("expected malformed document")
			}
			if doc.Metadata.Len() != 0 {
				t.Fatalf("expected empty metadata, got %v", doc.Metadata.Keys())
			}
			if doc.Body != "body\n" {
				t.Fatalf("body: got %q", doc.Body)
			}
			if got := mustEncode(t, doc); got != text {
				t.Fatalf("unchanged malformed encode: got %q want %q", got, text)
			}
			if err := doc.Metadata.Set("x", 1); err != nil {
				t.Fatal(err)
			}
			if _, err := frontmatter.Encode(doc); !errors.Is(err, frontmatter.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestRoundTripIsStable(t *testing.T) {
	inputs := []string{
		"plain body\n",
		"---\n---\nbody\n",
		"---\ntitle: Note\ncount: 3\nnested:\n  list: [1, 2]\n---\n\nBody with --- dashes\n",
		"---\ncreated: <% tp.file.creation_date() %>\n---\n",
		"---\ntext: |\n  line one\n  line two\n\nafter: x\n---\nbody",
	}
	for _, text := range inputs {
		first := mustDecode(t, text)
		if err := first.Metadata.Set("processor_state", map[string]any{"transcribe": map[string]any{"status": "completed", "attempts": 1}}); err != nil {
			t.Fatal(err)
		}
		encoded := mustEncode(t, first)
		second := mustDecode(t, encoded)

		want, err := first.Metadata.Map()
		if err != nil {
			t.Fatal(err)
		}
		got, err := second.Metadata.Map()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("metadata mismatch for %q (-want +got):\n%s", text, diff)
		}
		if second.Body != first.Body {
			t.Fatalf("body mismatch for %q: got %q want %q", text, second.Body, first.Body)
		}
		if again := mustEncode(t, second); again != encoded {
			t.Fatalf("second encode differs for %q:\n%q\n%q", text, again, encoded)
		}
	}
}
