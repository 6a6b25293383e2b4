package liquid

import (
	"regexp"
	"strings"
)

type NodeType int

const (
	NodeDocument NodeType = iota
	NodeTag
	NodeVariable
)

func (t NodeType) String() string {
	switch t {
	case NodeDocument:
		return "document"
	case NodeTag:
		return "tag"
	case NodeVariable:
		return "variable"
	}
	return "unknown"
}

// Node is a directive in the parsed template. Block tags own the directives between
// their opening and `end` tags.
type Node struct {
	Type NodeType
	// Name is the tag name ("assign", "if", "#") for tags, empty otherwise.
	Name string
	// Markup is the directive text the check sees: for tags everything after the
	// opening delimiter with leading whitespace removed, for variables the raw text
	// between the braces.
	Markup string
	// MarkupStart is the byte offset of Markup in the source.
	MarkupStart int
	// Start and End delimit the whole directive, delimiters included.
	Start int
	End   int
	// Line is the 1-indexed line the directive starts on.
	Line int

	TrimLeft  bool
	TrimRight bool

	// InsideLiquidTag is true for tags written with their own `{% %}` delimiters and
	// false for the lines of a `{% liquid %}` tag.
	InsideLiquidTag bool

	// Block is set for tags closed by a matching end tag.
	Block bool
	// Body is the raw text between the opening and end tags of raw and comment blocks.
	Body string

	Children []*Node
}

var (
	tagNameRegex = regexp.MustCompile(`^(#|[A-Za-z_][\w-]*)`)

	// BlockTags lists the tags that are closed by `end<name>`.
	BlockTags = map[string]bool{
		"capture":    true,
		"case":       true,
		"comment":    true,
		"for":        true,
		"form":       true,
		"if":         true,
		"javascript": true,
		"paginate":   true,
		"raw":        true,
		"schema":     true,
		"style":      true,
		"stylesheet": true,
		"tablerow":   true,
		"unless":     true,
	}

	// rawTags do not parse the directives in their bodies.
	rawTags = map[string]bool{
		"comment": true,
		"raw":     true,
	}
)

func tagName(markup string) string {
	return tagNameRegex.FindString(markup)
}

// Walk calls fn for n and each of its descendants, depth first. Returning false skips
// the children of the node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Arguments returns the markup following the tag name.
func (n *Node) Arguments() string {
	if n.Type != NodeTag {
		return n.Markup
	}
	return strings.TrimLeft(strings.TrimPrefix(n.Markup, n.Name), " \t\r\n")
}
