package liquid

import (
	"strings"
)

const whitespace = " \t\r\n"

// Parse builds the directive tree of src. Unterminated directives, stray end tags and
// unclosed blocks are reported as *ParseError.
func Parse(src string) (*Node, error) {
	dirs, err := directives(src)
	if err != nil {
		return nil, err
	}

	root := &Node{Type: NodeDocument, Start: 0, End: len(src), Line: 1}
	stack := []*Node{root}
	var raw *Node

	for _, d := range dirs {
		if !d.closed() {
			if d.variable {
				return nil, newParseErrorf(d, "Variable '%s' was not properly terminated with regexp: /}}/", d.open)
			}
			return nil, newParseErrorf(d, "Tag '%s' was not properly terminated with regexp: /%%}/", d.open)
		}

		if raw != nil {
			if !d.variable && tagName(strings.TrimLeft(d.body, whitespace)) == "end"+raw.Name {
				raw.Body = src[raw.End:d.start]
				stack = stack[:len(stack)-1]
				raw = nil
			}
			continue
		}

		n := newNode(d)
		top := stack[len(stack)-1]

		if n.Type == NodeTag && strings.HasPrefix(n.Name, "end") && BlockTags[n.Name[3:]] {
			if top == root {
				return nil, newParseErrorf(d, "Unknown tag '%s'", n.Name)
			}
			if top.Name != n.Name[3:] {
				return nil, newParseErrorf(d, "'%s' is not a valid delimiter for %s tags. use end%s", n.Name, top.Name, top.Name)
			}
			stack = stack[:len(stack)-1]
			continue
		}

		top.Children = append(top.Children, n)

		if n.Type != NodeTag {
			continue
		}
		if n.Name == "liquid" {
			n.Children = liquidLines(n)
		}
		if BlockTags[n.Name] {
			n.Block = true
			stack = append(stack, n)
			if rawTags[n.Name] {
				raw = n
			}
		}
	}

	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return nil, &ParseError{
			Message: "'" + open.Name + "' tag was never closed",
			Line:    open.Line,
			Markup:  src[open.Start:open.End],
		}
	}

	return root, nil
}

func newNode(d directive) *Node {
	n := &Node{
		Start:           d.start,
		End:             d.end,
		Line:            d.line,
		TrimLeft:        strings.HasSuffix(d.open, "-"),
		TrimRight:       strings.HasPrefix(d.close, "-"),
		InsideLiquidTag: true,
	}

	if d.variable {
		n.Type = NodeVariable
		n.Markup = d.body
		n.MarkupStart = d.bodyStart
		return n
	}

	trimmed := strings.TrimLeft(d.body, whitespace)
	n.Type = NodeTag
	n.Markup = trimmed
	n.MarkupStart = d.bodyStart + len(d.body) - len(trimmed)
	n.Name = tagName(trimmed)
	return n
}

// liquidLines splits the body of a `{% liquid %}` tag into one tag per non-empty line.
func liquidLines(tag *Node) []*Node {
	var (
		out    []*Node
		offset = tag.MarkupStart + len(tag.Name)
		line   = tag.Line
	)

	for i, raw := range strings.Split(tag.Markup[len(tag.Name):], "\n") {
		if i > 0 {
			line++
		}
		trimmed := strings.Trim(raw, whitespace)
		if trimmed != "" {
			start := offset + strings.Index(raw, trimmed)
			out = append(out, &Node{
				Type:        NodeTag,
				Name:        tagName(trimmed),
				Markup:      trimmed,
				MarkupStart: start,
				Start:       start,
				End:         start + len(trimmed),
				Line:        line,
			})
		}
		offset += len(raw) + 1
	}
	return out
}
