// Package markup builds a lenient element tree out of an HTML fragment.
//
// It is deliberately forgiving: unknown end tags are dropped, unclosed elements are closed
// by their parent's end tag or by the end of input, and void elements never get children.
// What it does not forgive is unbounded input: trees deeper than Limits.MaxDepth or
// elements with more than Limits.MaxAttributes attributes fail the parse.
package markup

import (
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"
)

var (
	ErrTreeTooDeep       = errors.Base("markup tree exceeds maximum depth")
	ErrTooManyAttributes = errors.Base("element exceeds maximum attribute count")
)

type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	DoctypeNode
)

// DocumentName is the name of the synthetic root of every parsed fragment.
const DocumentName = "#document-fragment"

type Limits struct {
	MaxDepth      int
	MaxAttributes int
}

// DefaultLimits bounds a single template file.
var DefaultLimits = Limits{MaxDepth: 400, MaxAttributes: 400}

type Attribute struct {
	Key string
	Val string
}

// Node is an element, text, comment or doctype of the fragment, or the fragment itself.
type Node struct {
	Type NodeType
	// Name is the lowercased tag name for elements, "text", "comment", "doctype" or DocumentName.
	Name string
	// Raw is the unmodified source text of the token: the opening tag for elements,
	// the text itself for text and comments.
	Raw  string
	Attr []Attribute
	// Line is the 1-indexed line the token starts on.
	Line int
	// Offset is the byte offset the token starts at.
	Offset int

	Children []*Node
}

func (n *Node) IsElement() bool {
	return n.Type == ElementNode
}

// Content returns the concatenated raw text of n and its descendants.
func (n *Node) Content() string {
	if n.Type == TextNode {
		return n.Raw
	}
	var sb strings.Builder
	for _, child := range n.Children {
		if child.Type == TextNode || child.Type == ElementNode {
			sb.WriteString(child.Content())
		}
	}
	return sb.String()
}

var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// Parse tokenizes text and assembles the element tree.
func Parse(text string, limits Limits) (*Node, error) {
	root := &Node{Type: DocumentNode, Name: DocumentName, Line: 1}
	stack := []*Node{root}

	z := html.NewTokenizer(strings.NewReader(text))
	offset, line := 0, 1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return root, nil
			}
			return nil, errors.Errorf("tokenizing markup: %w", z.Err())
		}

		raw := string(z.Raw())
		n := &Node{Raw: raw, Line: line, Offset: offset}
		offset += len(raw)
		line += strings.Count(raw, "\n")

		top := stack[len(stack)-1]

		switch tt {
		case html.TextToken:
			n.Type, n.Name = TextNode, "text"
		case html.CommentToken:
			n.Type, n.Name = CommentNode, "comment"
		case html.DoctypeToken:
			n.Type, n.Name = DoctypeNode, "doctype"
		case html.StartTagToken, html.SelfClosingTagToken:
			if err := readTag(z, n, limits); err != nil {
				return nil, err
			}
			if limits.MaxDepth > 0 && len(stack) > limits.MaxDepth {
				return nil, errors.WithDetails(ErrTreeTooDeep, "line", n.Line, "max", limits.MaxDepth)
			}
			top.Children = append(top.Children, n)
			if tt == html.SelfClosingTagToken || voidElements[n.Name] {
				continue
			}
			stack = append(stack, n)
			continue
		case html.EndTagToken:
			name, _ := z.TagName()
			stack = closeElement(stack, string(name))
			continue
		}

		top.Children = append(top.Children, n)
	}
}

func readTag(z *html.Tokenizer, n *Node, limits Limits) error {
	name, hasAttr := z.TagName()
	n.Type = ElementNode
	n.Name = string(name)

	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		n.Attr = append(n.Attr, Attribute{Key: string(key), Val: string(val)})
		if limits.MaxAttributes > 0 && len(n.Attr) > limits.MaxAttributes {
			return errors.WithDetails(ErrTooManyAttributes, "line", n.Line, "element", n.Name, "max", limits.MaxAttributes)
		}
	}
	return nil
}

// closeElement pops up to and including the innermost open element called name.
// End tags without a matching open element are ignored.
func closeElement(stack []*Node, name string) []*Node {
	for i := len(stack) - 1; i > 0; i-- {
		if stack[i].Name == name {
			return stack[:i]
		}
	}
	return stack
}

// Outline renders the tree structure one node per line, for debugging.
func Outline(n *Node) string {
	var sb strings.Builder
	var walk func(*Node, int)
	walk = func(n *Node, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.Name)
		if n.Type == TextNode {
			sb.WriteString(" " + strings.TrimSpace(n.Raw))
		}
		sb.WriteString("\n")
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	walk(n, 0)
	return sb.String()
}
