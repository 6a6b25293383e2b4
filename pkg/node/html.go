package node

import (
	"context"
	"regexp"
	"sync"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/liquid"
	"github.com/walteh/tmplcheck/pkg/markup"
	"github.com/walteh/tmplcheck/pkg/placeholder"
	"github.com/walteh/tmplcheck/pkg/position"
	"github.com/walteh/tmplcheck/pkg/source"
)

var _ Node = (*HTML)(nil)

// HTML is a markup node whose text and attributes have their directives restored.
type HTML struct {
	value  *markup.Node
	file   *source.File
	enc    *placeholder.Encoded
	parent *HTML

	childrenOnce sync.Once
	children     []Node

	markupOnce sync.Once
	markup     string
	parseable  string
	parseStart int
	markupErr  error

	contentOnce sync.Once
	content     string

	attrsOnce  sync.Once
	attributes map[string]string

	positionOnce sync.Once
	position     position.Position
	positionErr  error
}

// ParseHTML encodes the directives of file, parses the result as markup and wraps the tree.
// Limit violations surface as markup.ErrTreeTooDeep or markup.ErrTooManyAttributes.
func ParseHTML(ctx context.Context, file *source.File, limits markup.Limits) (*HTML, error) {
	spans, err := liquid.Scan(file.Source())
	if err != nil {
		return nil, errors.Errorf("scanning directives of %s: %w", file.RelativePath(), err)
	}

	enc, err := placeholder.Encode(ctx, file.Source(), spans)
	if err != nil {
		return nil, errors.Errorf("encoding directives of %s: %w", file.RelativePath(), err)
	}

	doc, err := markup.Parse(enc.Text, limits)
	if err != nil {
		return nil, errors.Errorf("parsing markup of %s: %w", file.RelativePath(), err)
	}

	return NewHTML(doc, file, enc), nil
}

func NewHTML(doc *markup.Node, file *source.File, enc *placeholder.Encoded) *HTML {
	return &HTML{value: doc, file: file, enc: enc}
}

func (me *HTML) Name() string {
	if me.value.Type == markup.DocumentNode {
		return DocumentName
	}
	return me.value.Name
}

func (me *HTML) File() *source.File {
	return me.file
}

func (me *HTML) Parent() Node {
	if me.parent == nil {
		return nil
	}
	return me.parent
}

func (me *HTML) LineNumber() int {
	return me.value.Line
}

func (me *HTML) Literal() bool {
	return me.value.Type == markup.TextNode
}

func (me *HTML) Element() bool {
	return me.value.IsElement()
}

func (me *HTML) Kind() string {
	return "html." + me.value.Name
}

// Value returns the wrapped markup node. Its text still contains placeholders.
func (me *HTML) Value() *markup.Node {
	return me.value
}

func (me *HTML) Children() []Node {
	me.childrenOnce.Do(func() {
		me.children = make([]Node, 0, len(me.value.Children))
		for _, child := range me.value.Children {
			me.children = append(me.children, &HTML{
				value:  child,
				file:   me.file,
				enc:    me.enc,
				parent: me,
			})
		}
	})
	return me.children
}

// Markup is the opening tag of an element, the text of a literal, and empty for the document.
// An element whose tag cannot be located has empty markup; Position reports why.
func (me *HTML) Markup() string {
	me.loadMarkup()
	return me.markup
}

// ParseableMarkup is the markup as the markup parser saw it, placeholders included.
func (me *HTML) ParseableMarkup() (string, error) {
	me.loadMarkup()
	return me.parseable, me.markupErr
}

func (me *HTML) loadMarkup() {
	me.markupOnce.Do(func() {
		switch me.value.Type {
		case markup.DocumentNode:
			return
		case markup.ElementNode:
			me.parseStart, me.parseable, me.markupErr = me.findOpeningTag()
			if me.markupErr != nil {
				return
			}
			me.markup = me.enc.Resolve(me.parseable)
		default:
			me.parseStart = me.value.Offset
			me.parseable = me.value.Raw
			me.markup = me.enc.Resolve(me.value.Raw)
		}
	})
}

// findOpeningTag searches the encoded source for `<name ...>` starting on the node's line.
// The tokenizer's own offset bounds the search from below so that an earlier element of
// the same name on that line is not picked up.
func (me *HTML) findOpeningTag() (int, string, error) {
	text := me.enc.Text
	start := position.Offset(text, me.value.Line-1, 0)
	if me.value.Offset > start {
		start = me.value.Offset
	}

	re, err := regexp.Compile(`(?is)<\s*` + regexp.QuoteMeta(me.value.Name) + `[^>]*>`)
	if err != nil {
		return 0, "", errors.Errorf("compiling opening tag pattern: %w", err)
	}

	loc := re.FindStringIndex(text[start:])
	if loc == nil {
		return 0, "", errors.WithDetails(ErrMarkupNotFound, "element", me.value.Name, "line", me.value.Line)
	}
	return start + loc[0], text[start+loc[0] : start+loc[1]], nil
}

// Content is the resolved text of the node and its descendants.
func (me *HTML) Content() string {
	me.contentOnce.Do(func() {
		me.content = me.enc.Resolve(me.value.Content())
	})
	return me.content
}

// Text is the content of a literal and the markup of anything else.
func (me *HTML) Text() string {
	if me.Literal() {
		return me.Content()
	}
	return me.Markup()
}

// Attributes maps resolved attribute names to resolved values.
func (me *HTML) Attributes() map[string]string {
	me.attrsOnce.Do(func() {
		me.attributes = make(map[string]string, len(me.value.Attr))
		for _, attr := range me.value.Attr {
			me.attributes[me.enc.Resolve(attr.Key)] = me.enc.Resolve(attr.Val)
		}
	})
	return me.attributes
}

// Attribute returns a single resolved attribute value.
func (me *HTML) Attribute(name string) (string, bool) {
	v, ok := me.Attributes()[name]
	return v, ok
}

func (me *HTML) Position() (position.Position, error) {
	me.positionOnce.Do(func() {
		src := me.file.Source()
		switch me.value.Type {
		case markup.DocumentNode:
			me.position = position.At(src, 0, len(src))
		case markup.ElementNode:
			if _, err := me.ParseableMarkup(); err != nil {
				me.positionErr = err
				return
			}
			me.position = position.At(src, me.parseStart, len(me.parseable))
		default:
			// placeholders have the length of the directives they replace, so the
			// tokenizer offset is the source offset
			me.loadMarkup()
			me.position = position.At(src, me.parseStart, len(me.parseable))
		}
	})
	return me.position, me.positionErr
}

func (me *HTML) StartIndex() (int, error) {
	if !me.Element() {
		return 0, errors.WithDetails(ErrNotImplemented, "kind", me.Kind())
	}
	pos, err := me.Position()
	if err != nil {
		return 0, err
	}
	return pos.StartIndex, nil
}

func (me *HTML) EndIndex() (int, error) {
	if !me.Element() {
		return 0, errors.WithDetails(ErrNotImplemented, "kind", me.Kind())
	}
	pos, err := me.Position()
	if err != nil {
		return 0, err
	}
	return pos.EndIndex, nil
}
