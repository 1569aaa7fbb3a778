package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultIndent = 2
	byteOrderMark = "\ufeff"
)

// Document is a Markdown file split into metadata and body.
type Document struct {
	Metadata *Metadata
	Body     string

	hasBlock  bool
	malformed bool
	newline   string
	bom       string
	head      string // original text up to the start of Body, including bom
	openLine  string
	closeLine string
	closeEOL  bool
	lines     []string
	layout    *layout
	indent    int
}

// HasBlock reports whether the source text carried a fenced metadata block.
func (d *Document) HasBlock() bool { return d.hasBlock }

// Malformed reports whether the metadata block failed to parse.
func (d *Document) Malformed() bool { return d.malformed }

// Newline returns the line terminator detected in the source text.
func (d *Document) Newline() string { return d.newline }

// New returns a document without a metadata block.
func New(body string) *Document {
	return &Document{Metadata: NewMetadata(), Body: body, newline: detectNewline(body), indent: defaultIndent}
}

type keySpan struct {
	lead  []string
	lines []string
}

// layout records the raw lines of every top-level key so unchanged keys can
// be spliced back verbatim.
type layout struct {
	prefix []string
	order  []string
	spans  map[string]keySpan
	suffix []string
}

// Decode splits text into metadata and body. The returned document is never
// nil. A non-nil error is always a *ParseError and leaves the document usable
// with empty metadata.
func Decode(text string) (*Document, error) {
	doc := New(text)
	if strings.HasPrefix(text, byteOrderMark) {
		doc.bom = byteOrderMark
		doc.Body = text[len(byteOrderMark):]
	}

	first, next := readLine(text, len(doc.bom))
	if !isFence(first, false) {
		return doc, nil
	}
	openLine := strings.TrimSuffix(first, "\r")

	var lines []string
	pos := next
	for pos < len(text) {
		line, after := readLine(text, pos)
		line = strings.TrimSuffix(line, "\r")
		if isFence(line, true) {
			doc.hasBlock = true
			doc.openLine = openLine
			doc.closeLine = line
			doc.closeEOL = text[after-1] == '\n'
			doc.head = text[:after]
			doc.Body = text[after:]
			doc.lines = lines
			break
		}
		lines = append(lines, line)
		pos = after
	}
	if !doc.hasBlock {
		return doc, nil
	}
	doc.indent = detectIndent(lines)

	masked, replacer := mask(strings.Join(lines, "\n"))
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(masked), &root); err != nil {
		doc.malformed = true
		return doc, &ParseError{Reason: "invalid yaml", Err: demaskError(err, replacer)}
	}
	demask(&root, replacer)

	mapping, err := rootMapping(&root)
	if err != nil {
		doc.malformed = true
		return doc, err
	}
	if mapping == nil {
		doc.layout = &layout{prefix: lines, spans: map[string]keySpan{}}
		return doc, nil
	}

	meta := NewMetadata()
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		if meta.Has(key.Value) {
			doc.malformed = true
			return doc, &ParseError{Reason: fmt.Sprintf("duplicate key %q", key.Value)}
		}
		meta.add(key, mapping.Content[i+1])
	}
	doc.Metadata = meta
	doc.layout = buildLayout(lines, mapping)
	return doc, nil
}

func rootMapping(root *yaml.Node) (*yaml.Node, error) {
	if root.Kind == 0 {
		return nil, nil
	}
	node := root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	switch {
	case node.Kind == yaml.MappingNode:
		return node, nil
	case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
		return nil, nil
	default:
		return nil, &ParseError{Reason: "metadata is not a mapping"}
	}
}

func buildLayout(lines []string, mapping *yaml.Node) *layout {
	if mapping.Style&yaml.FlowStyle != 0 {
		return nil
	}
	var starts []int
	lastLine := -1
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		line := mapping.Content[i].Line - 1
		if line <= lastLine || line >= len(lines) {
			return nil
		}
		starts = append(starts, line)
		lastLine = line
	}

	l := &layout{spans: make(map[string]keySpan, len(starts))}
	if len(starts) == 0 {
		l.prefix = lines
		return l
	}
	l.prefix = lines[:starts[0]]

	suffixStart := len(lines)
	for suffixStart-1 > starts[len(starts)-1] && isDetached(lines[suffixStart-1]) {
		suffixStart--
	}
	l.suffix = lines[suffixStart:]

	leadStart := starts[0]
	for i, start := range starts {
		end := suffixStart
		nextLead := suffixStart
		if i+1 < len(starts) {
			nextLead = starts[i+1]
			for nextLead-1 > start && isDetached(lines[nextLead-1]) {
				nextLead--
			}
			end = nextLead
		}
		key := mapping.Content[i*2].Value
		l.order = append(l.order, key)
		l.spans[key] = keySpan{lead: lines[leadStart:start], lines: lines[start:end]}
		leadStart = nextLead
	}
	return l
}

// Encode renders doc back to text.
func Encode(doc *Document) (string, error) {
	meta := doc.Metadata
	if meta == nil {
		meta = NewMetadata()
	}
	if doc.malformed {
		if meta.Changed() || meta.Len() > 0 {
			return "", ErrMalformed
		}
		return doc.head + doc.Body, nil
	}
	if !doc.hasBlock {
		if meta.Len() == 0 {
			return doc.bom + doc.Body, nil
		}
		lines, err := encodeMapping(meta, meta.keys, doc.indent)
		if err != nil {
			return "", err
		}
		nl := doc.newline
		return doc.bom + "---" + nl + joinLines(lines, nl) + "---" + nl + doc.Body, nil
	}
	if !meta.Changed() {
		return doc.head + doc.Body, nil
	}

	var lines []string
	if doc.layout == nil {
		encoded, err := encodeMapping(meta, meta.keys, doc.indent)
		if err != nil {
			return "", err
		}
		lines = encoded
	} else {
		spliced, err := doc.splice(meta)
		if err != nil {
			return "", err
		}
		lines = spliced
	}

	nl := doc.newline
	var b strings.Builder
	b.WriteString(doc.bom)
	b.WriteString(doc.openLine)
	b.WriteString(nl)
	b.WriteString(joinLines(lines, nl))
	b.WriteString(doc.closeLine)
	if doc.closeEOL || doc.Body != "" {
		b.WriteString(nl)
	}
	b.WriteString(doc.Body)
	return b.String(), nil
}

func (d *Document) splice(meta *Metadata) ([]string, error) {
	l := d.layout
	out := append([]string(nil), l.prefix...)
	original := make(map[string]bool, len(l.order))
	for _, key := range l.order {
		original[key] = true
		if !meta.Has(key) {
			continue
		}
		span := l.spans[key]
		out = append(out, span.lead...)
		if !meta.dirty[key] {
			out = append(out, span.lines...)
			continue
		}
		encoded, err := encodeMapping(meta, []string{key}, d.indent)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	var added []string
	for _, key := range meta.keys {
		if !original[key] {
			added = append(added, key)
		}
	}
	if len(added) > 0 {
		encoded, err := encodeMapping(meta, added, d.indent)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	return append(out, l.suffix...), nil
}

// encodeMapping serializes the given keys as a block mapping and returns the
// lines without terminators.
func encodeMapping(meta *Metadata, keys []string, indent int) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range keys {
		keyNode := *meta.keyNode(key)
		keyNode.HeadComment = ""
		keyNode.FootComment = ""
		value := *meta.values[key]
		value.FootComment = ""
		mapping.Content = append(mapping.Content, &keyNode, &value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("frontmatter: encode metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("frontmatter: encode metadata: %w", err)
	}
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n"), nil
}

func joinLines(lines []string, nl string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, nl) + nl
}

// readLine returns the line starting at pos, without its trailing "\n", and
// the offset of the next line.
func readLine(text string, pos int) (string, int) {
	idx := strings.IndexByte(text[pos:], '\n')
	if idx < 0 {
		return text[pos:], len(text)
	}
	return text[pos : pos+idx], pos + idx + 1
}

func isFence(line string, closing bool) bool {
	trimmed := strings.TrimRight(line, " \t\r")
	if trimmed == "---" {
		return true
	}
	return closing && trimmed == "..."
}

// isDetached reports whether a raw line is blank or a column-zero comment,
// which binds to the following key rather than the preceding value.
func isDetached(line string) bool {
	return strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#")
}

func detectNewline(text string) string {
	idx := strings.IndexByte(text, '\n')
	if idx > 0 && text[idx-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

func detectIndent(lines []string) int {
	best := 0
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		n := len(line) - len(trimmed)
		if n == 0 || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if best == 0 || n < best {
			best = n
		}
	}
	if best < 2 || best > 9 {
		return defaultIndent
	}
	return best
}

func demaskError(err error, r *strings.Replacer) error {
	if r == nil {
		return err
	}
	return errors.New(r.Replace(err.Error()))
}
