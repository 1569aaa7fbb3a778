// Package frontmatter splits Markdown documents into a YAML metadata block and
// a body, and writes them back without disturbing text the caller did not
// change.
//
// Decode tolerates template placeholders such as <% tp.date.now() %> or
// {{title}} inside the block by masking them before parsing and restoring the
// exact text afterwards. When the block still fails to parse, the document is
// marked malformed and carries empty metadata; Encode then refuses to replace
// the block so user text is never lost.
//
// Encode is stable: an unchanged document is reproduced byte-for-byte and only
// keys touched through the Metadata API are re-serialized.
package frontmatter
