package processor

import "strings"

const transcriptHeading = "> **Transcript:**"

// FormatTranscript renders text as a quoted transcript block. Blank input
// yields an empty string.
func FormatTranscript(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(transcriptHeading)
	for line := range strings.SplitSeq(text, "\n") {
		b.WriteString("\n>")
		if line = strings.TrimRight(line, " \t"); line != "" {
			b.WriteString(" ")
			b.WriteString(line)
		}
	}
	return b.String()
}
