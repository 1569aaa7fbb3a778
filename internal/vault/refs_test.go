package vault_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rwese/obsidian-postprocessor/internal/vault"
)

func TestExtractAttachments(t *testing.T) {
	allowed := map[string]struct{}{"m4a": {}, "mp3": {}, "webm": {}}
	body := "Intro ![[Voice 001.M4A]] and ![[clip.mp3#t=10|Clip]]\n" +
		"![alt](<My Recording.webm>)\n" +
		"![title](song%20one.mp3 \"Song\")\n" +
		"![remote](https://example.com/a.mp3)\n" +
		"![[image.png]]\n" +
		"[[not-embed.m4a]]\n" +
		"![[Café.m4a]]\n" +
		"![again](clip.mp3)\n"

	refs := vault.ExtractAttachments(body, allowed)

	type view struct {
		Target string
		Ext    string
		Syntax vault.Syntax
	}
	var got []view
	for _, r := range refs {
		got = append(got, view{r.Target, r.Ext, r.Syntax})
	}
	want := []view{
		{"Voice 001.M4A", "m4a", vault.SyntaxWikilink},
		{"clip.mp3", "mp3", vault.SyntaxWikilink},
		{"My Recording.webm", "webm", vault.SyntaxMarkdown},
		{"song one.mp3", "mp3", vault.SyntaxMarkdown},
		{"Café.m4a", "m4a", vault.SyntaxWikilink},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("refs mismatch (-want +got):\n%s", diff)
	}
	if refs[0].Raw != "![[Voice 001.M4A]]" {
		t.Fatalf("raw: got %q", refs[0].Raw)
	}
	if refs[1].Raw != "![[clip.mp3#t=10|Clip]]" {
		t.Fatalf("raw: got %q", refs[1].Raw)
	}
}

func TestExtractAttachmentsNestedPath(t *testing.T) {
	refs := vault.ExtractAttachments(`![[audio\2024\memo.m4a]]`, map[string]struct{}{"m4a": {}})
	if len(refs) != 1 {
		t.Fatalf("got %d refs", len(refs))
	}
	if refs[0].Target != "audio/2024/memo.m4a" || refs[0].Name != "memo.m4a" {
		t.Fatalf("unexpected ref: %+v", refs[0])
	}
}
