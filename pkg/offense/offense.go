// Package offense defines the findings checks report and the edits that fix them.
package offense

import (
	"fmt"
	"strings"

	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/position"
	"github.com/walteh/tmplcheck/pkg/source"
)

// Meta identifies the check an offense comes from. It is copied into the offense when
// the offense is created.
type Meta struct {
	Check      string
	Severity   Severity
	Categories []string
}

type Offense struct {
	Check      string
	Message    string
	Severity   Severity
	Categories []string

	File *source.File
	Node node.Node
	// Markup is the text the offense points at.
	Markup   string
	Position position.Position

	// Edits fix the offense when applied together.
	Edits []Edit
	// FixErr is set when the fix callback asked for an edit that could not be built.
	FixErr error
}

type options struct {
	markup string
	offset *int
	fix    func(*Corrector)
}

type Option func(*options)

// WithMarkup points the offense at the first occurrence of markup at or after the node's
// start instead of at the whole node.
func WithMarkup(markup string) Option {
	return func(o *options) {
		o.markup = markup
	}
}

// WithOffset points the offense at an explicit byte offset of the source.
func WithOffset(offset int) Option {
	return func(o *options) {
		o.offset = &offset
	}
}

// WithFix records the edits fn makes through the Corrector on the offense.
func WithFix(fn func(*Corrector)) Option {
	return func(o *options) {
		o.fix = fn
	}
}

// New creates an offense bound to n's file. It fails when n cannot be located.
func New(meta Meta, message string, n node.Node, opts ...Option) (*Offense, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	base, err := n.Position()
	if err != nil {
		return nil, err
	}

	src := n.File().Source()
	markup := n.Markup()
	start, length := base.StartIndex, base.Length()

	if o.markup != "" {
		markup, length = o.markup, len(o.markup)
		if o.offset == nil {
			if i := strings.Index(src[start:], o.markup); i >= 0 {
				start += i
			}
		}
	}
	if o.offset != nil {
		start = *o.offset
	}

	off := &Offense{
		Check:      meta.Check,
		Message:    message,
		Severity:   meta.Severity,
		Categories: append([]string(nil), meta.Categories...),
		File:       n.File(),
		Node:       n,
		Markup:     markup,
		Position:   position.At(src, start, length),
	}

	if o.fix != nil {
		c := NewCorrector(n.File())
		o.fix(c)
		off.Edits = c.Edits()
		off.FixErr = c.Err()
	}

	return off, nil
}

func (o *Offense) Line() int {
	return o.Position.StartRow
}

// Correctable reports whether the offense carries a usable fix.
func (o *Offense) Correctable() bool {
	return len(o.Edits) > 0 && o.FixErr == nil
}

func (o *Offense) Location() string {
	return fmt.Sprintf("%s:%d", o.File.RelativePath(), o.Line())
}

func (o *Offense) String() string {
	return fmt.Sprintf("%s at %s", o.Message, o.Location())
}
