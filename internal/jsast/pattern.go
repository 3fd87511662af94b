package jsast

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// MatchesPattern reports whether node is a member-access chain spelling the
// dotted pattern exactly, e.g. "React.Component" matches `React.Component`
// but neither `Component` nor `x.React.Component`. A one-segment pattern
// matches a bare identifier.
func MatchesPattern(node *sitter.Node, src []byte, pattern string) bool {
	if node == nil || pattern == "" {
		return false
	}
	parts := strings.Split(pattern, ".")

	cur := node
	for i := len(parts) - 1; i >= 0; i-- {
		if cur == nil {
			return false
		}
		if i == 0 {
			return cur.Kind() == KindIdentifier && Text(cur, src) == parts[0]
		}
		if cur.Kind() != KindMemberExpression {
			return false
		}
		prop := cur.ChildByFieldName("property")
		if !Is(prop, KindPropertyIdentifier) || Text(prop, src) != parts[i] {
			return false
		}
		cur = cur.ChildByFieldName("object")
	}
	return false
}

// MatchesAnyPattern reports whether node matches one of patterns
func MatchesAnyPattern(node *sitter.Node, src []byte, patterns ...string) bool {
	for _, p := range patterns {
		if MatchesPattern(node, src, p) {
			return true
		}
	}
	return false
}

// IsAnnotated reports whether a comment trailing node, before the next
// token, reads exactly marker once its delimiters and surrounding
// whitespace are stripped.
func IsAnnotated(node *sitter.Node, src []byte, marker string) bool {
	if node == nil || marker == "" {
		return false
	}
	for _, c := range TrailingComments(node) {
		if CommentBody(Text(c, src)) == marker {
			return true
		}
	}
	return false
}

// TrailingComments returns the comments that directly follow node. Tree-sitter
// keeps comments as extra nodes, usually hoisted to be siblings of the node
// they trail; a comment left as the node's own last child is included too.
func TrailingComments(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node

	if n := node.ChildCount(); n > 0 {
		var inner []*sitter.Node
		for i := n; i > 0; i-- {
			child := node.Child(i - 1)
			if child == nil || child.Kind() != KindComment {
				break
			}
			inner = append([]*sitter.Node{child}, inner...)
		}
		out = append(out, inner...)
	}

	for sib := node.NextSibling(); sib != nil && sib.Kind() == KindComment; sib = sib.NextSibling() {
		out = append(out, sib)
	}
	return out
}

// CommentBody strips comment delimiters and trims whitespace
func CommentBody(text string) string {
	switch {
	case strings.HasPrefix(text, "//"):
		text = text[2:]
	case strings.HasPrefix(text, "/*"):
		text = strings.TrimSuffix(text[2:], "*/")
	}
	return strings.TrimSpace(text)
}
