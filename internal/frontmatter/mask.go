package frontmatter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// placeholderPattern matches single-line Templater, Handlebars, and Jinja
// style placeholders.
var placeholderPattern = regexp.MustCompile(`<%.*?%>|\{\{.*?\}\}|\{%.*?%\}`)

// mask replaces every placeholder in block with an opaque token that is a
// valid plain YAML scalar. The returned replacer restores the original text.
func mask(block string) (string, *strings.Replacer) {
	if !placeholderPattern.MatchString(block) {
		return block, nil
	}
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	var pairs []string
	n := 0
	masked := placeholderPattern.ReplaceAllStringFunc(block, func(match string) string {
		token := fmt.Sprintf("__fmtpl_%s_%d__", nonce, n)
		n++
		pairs = append(pairs, token, match)
		return token
	})
	return masked, strings.NewReplacer(pairs...)
}

// demask walks the node tree restoring placeholders in values, keys,
// anchors, and comments.
func demask(node *yaml.Node, r *strings.Replacer) {
	if node == nil || r == nil {
		return
	}
	node.Value = r.Replace(node.Value)
	node.Anchor = r.Replace(node.Anchor)
	node.HeadComment = r.Replace(node.HeadComment)
	node.LineComment = r.Replace(node.LineComment)
	node.FootComment = r.Replace(node.FootComment)
	for _, child := range node.Content {
		demask(child, r)
	}
}
