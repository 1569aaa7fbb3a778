package state

import "strings"

func insertArtifact(body string, artifact Artifact, placement Placement, nl string) string {
	text := strings.TrimRight(artifact.Text, "\r\n")
	if nl != "\n" {
		text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", nl)
	}
	if placement == PlacementAfterEmbed && artifact.Embed != "" {
		if out, ok := insertAfterEmbed(body, artifact.Embed, text, nl); ok {
			return out
		}
	}
	return appendArtifact(body, text, nl)
}

func appendArtifact(body, text, nl string) string {
	if body == "" {
		return text + nl
	}
	if !strings.HasSuffix(body, "\n") {
		body += nl
	}
	return body + nl + text + nl
}

// insertAfterEmbed places text as its own paragraph below the line holding
// embed. It reports false when the embed is not in the body.
func insertAfterEmbed(body, embed, text, nl string) (string, bool) {
	idx := strings.Index(body, embed)
	if idx < 0 {
		return "", false
	}
	lineEnd := len(body)
	hasEOL := false
	if rel := strings.IndexByte(body[idx+len(embed):], '\n'); rel >= 0 {
		lineEnd = idx + len(embed) + rel + 1
		hasEOL = true
	}
	rest := body[lineEnd:]
	if strings.HasPrefix(rest, nl+text+nl) {
		return body, true
	}

	var b strings.Builder
	b.WriteString(body[:lineEnd])
	if !hasEOL {
		b.WriteString(nl)
	}
	b.WriteString(nl)
	b.WriteString(text)
	b.WriteString(nl)
	if rest != "" && !strings.HasPrefix(rest, nl) {
		b.WriteString(nl)
	}
	b.WriteString(rest)
	return b.String(), true
}
