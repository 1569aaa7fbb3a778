package vault

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Syntax identifies the embed form an attachment was referenced with.
type Syntax string

const (
	SyntaxWikilink Syntax = "wikilink"
	SyntaxMarkdown Syntax = "markdown"
)

// AttachmentRef is one embedded attachment found in a note body.
type AttachmentRef struct {
	// Target is the reference as written, NFC-normalized with forward slashes.
	Target string
	Name   string
	Ext    string
	Syntax Syntax
	Raw    string
	Offset int
	// Path is the resolved file on disk; empty when it could not be found.
	Path string
}

var (
	wikiEmbed     = regexp.MustCompile(`!\[\[([^\[\]|#\n]+)(?:#[^\[\]|\n]*)?(?:\|[^\[\]\n]*)?\]\]`)
	markdownEmbed = regexp.MustCompile(`!\[[^\]\n]*\]\((?:<([^>\n]+)>|([^)\s]+))(?:\s+"[^"\n]*")?\s*\)`)
	urlScheme     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)
)

// ExtractAttachments returns the embeds in body whose extension is in
// allowed (lowercase, without dot). Results are in body order and unique by
// target.
func ExtractAttachments(body string, allowed map[string]struct{}) []AttachmentRef {
	var refs []AttachmentRef

	for _, m := range wikiEmbed.FindAllStringSubmatchIndex(body, -1) {
		target := body[m[2]:m[3]]
		if ref, ok := newRef(target, SyntaxWikilink, body[m[0]:m[1]], m[0], allowed); ok {
			refs = append(refs, ref)
		}
	}
	for _, m := range markdownEmbed.FindAllStringSubmatchIndex(body, -1) {
		var target string
		if m[2] >= 0 {
			target = body[m[2]:m[3]]
		} else {
			target = body[m[4]:m[5]]
		}
		if urlScheme.MatchString(target) {
			continue
		}
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		if ref, ok := newRef(target, SyntaxMarkdown, body[m[0]:m[1]], m[0], allowed); ok {
			refs = append(refs, ref)
		}
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Offset < refs[j].Offset })
	seen := make(map[string]struct{}, len(refs))
	out := refs[:0]
	for _, ref := range refs {
		if _, dup := seen[ref.Target]; dup {
			continue
		}
		seen[ref.Target] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func newRef(target string, syntax Syntax, raw string, offset int, allowed map[string]struct{}) (AttachmentRef, bool) {
	target = strings.TrimSpace(strings.ReplaceAll(target, `\`, "/"))
	if target == "" {
		return AttachmentRef{}, false
	}
	target = norm.NFC.String(target)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(target), "."))
	if _, ok := allowed[ext]; !ok {
		return AttachmentRef{}, false
	}
	return AttachmentRef{
		Target: target,
		Name:   path.Base(target),
		Ext:    ext,
		Syntax: syntax,
		Raw:    raw,
		Offset: offset,
	}, true
}
