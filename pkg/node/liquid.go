package node

import (
	"sync"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/liquid"
	"github.com/walteh/tmplcheck/pkg/position"
	"github.com/walteh/tmplcheck/pkg/source"
)

var _ Node = (*Liquid)(nil)

// Liquid is a tag or variable of the directive tree, or its document.
type Liquid struct {
	value  *liquid.Node
	file   *source.File
	parent *Liquid

	childrenOnce sync.Once
	children     []Node

	positionOnce sync.Once
	position     position.Position
}

// ParseLiquid parses the directives of file. Syntax errors are *liquid.ParseError.
func ParseLiquid(file *source.File) (*Liquid, error) {
	doc, err := liquid.Parse(file.Source())
	if err != nil {
		return nil, err
	}
	return NewLiquid(doc, file), nil
}

func NewLiquid(doc *liquid.Node, file *source.File) *Liquid {
	return &Liquid{value: doc, file: file}
}

func (me *Liquid) Name() string {
	switch me.value.Type {
	case liquid.NodeDocument:
		return DocumentName
	case liquid.NodeTag:
		return me.value.Name
	}
	return me.value.Type.String()
}

// TypeName is the tag name for tags and the node type otherwise.
func (me *Liquid) TypeName() string {
	return me.Name()
}

func (me *Liquid) Markup() string {
	return me.value.Markup
}

func (me *Liquid) File() *source.File {
	return me.file
}

func (me *Liquid) Parent() Node {
	if me.parent == nil {
		return nil
	}
	return me.parent
}

func (me *Liquid) LineNumber() int {
	return me.value.Line
}

func (me *Liquid) Literal() bool {
	return false
}

func (me *Liquid) Element() bool {
	return false
}

func (me *Liquid) Kind() string {
	return "liquid." + me.value.Type.String()
}

func (me *Liquid) Document() bool {
	return me.value.Type == liquid.NodeDocument
}

func (me *Liquid) Tag() bool {
	return me.value.Type == liquid.NodeTag
}

func (me *Liquid) Variable() bool {
	return me.value.Type == liquid.NodeVariable
}

// Block reports whether the tag is closed by an end tag.
func (me *Liquid) Block() bool {
	return me.value.Block
}

// Body is the raw text between the tags of a raw or comment block.
func (me *Liquid) Body() string {
	return me.value.Body
}

// Arguments is the tag markup after the tag name.
func (me *Liquid) Arguments() string {
	return me.value.Arguments()
}

// WhitespaceTrimmed reports whether the directive closes with a `-` trim marker.
func (me *Liquid) WhitespaceTrimmed() bool {
	return me.value.TrimRight
}

func (me *Liquid) InsideLiquidTag() bool {
	return me.value.InsideLiquidTag
}

// Range returns the byte offsets of the whole directive, delimiters included.
func (me *Liquid) Range() (start, end int) {
	return me.value.Start, me.value.End
}

// Value returns the wrapped directive node.
func (me *Liquid) Value() *liquid.Node {
	return me.value
}

func (me *Liquid) Children() []Node {
	me.childrenOnce.Do(func() {
		me.children = make([]Node, 0, len(me.value.Children))
		for _, child := range me.value.Children {
			me.children = append(me.children, &Liquid{value: child, file: me.file, parent: me})
		}
	})
	return me.children
}

func (me *Liquid) Position() (position.Position, error) {
	me.positionOnce.Do(func() {
		src := me.file.Source()
		if me.Document() {
			me.position = position.At(src, 0, len(src))
			return
		}
		me.position = position.At(src, me.value.MarkupStart, len(me.value.Markup))
	})
	return me.position, nil
}

func (me *Liquid) StartIndex() (int, error) {
	if me.Document() {
		return 0, errors.WithDetails(ErrNotImplemented, "kind", me.Kind())
	}
	return me.value.MarkupStart, nil
}

func (me *Liquid) EndIndex() (int, error) {
	if me.Document() {
		return 0, errors.WithDetails(ErrNotImplemented, "kind", me.Kind())
	}
	return me.value.MarkupStart + len(me.value.Markup), nil
}
