// Package node presents markup elements and template directives through one tree API.
//
// HTML nodes wrap the markup tree built from the placeholder-encoded source and resolve
// placeholders back to directive text on access. Liquid nodes wrap the directive tree.
// Both point at the source.File they came from and report positions in the original source.
//
// Trees are owned top-down. Parent pointers exist for upward traversal only. A tree is
// read-only once built and may be shared between goroutines; lazily computed values are
// guarded by sync.Once.
package node

import (
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/position"
	"github.com/walteh/tmplcheck/pkg/source"
)

var (
	// ErrNotImplemented is returned by offset accessors of nodes that have no single offset,
	// such as literal text and documents. Use Position for row and column queries.
	ErrNotImplemented = errors.Base("not implemented for this node kind")
	// ErrMarkupNotFound means the opening tag of an element could not be found again in the
	// encoded source. This is a defect of the tree layer, not of the analyzed template.
	ErrMarkupNotFound = errors.Base("element markup not found in parseable source")
)

// DocumentName is the name of the root node of every tree.
const DocumentName = "document"

type Node interface {
	Name() string
	// Markup is the source text of the node with directives restored.
	Markup() string
	Children() []Node
	// Parent is nil for the document. It must only be used for traversal.
	Parent() Node
	File() *source.File
	// LineNumber is the 1-indexed line the node starts on.
	LineNumber() int
	Literal() bool
	Element() bool
	Position() (position.Position, error)
	// StartIndex and EndIndex are byte offsets of Markup in the source.
	StartIndex() (int, error)
	EndIndex() (int, error)
	// Kind names the concrete type of the wrapped value.
	Kind() string
}

// Walk visits n and its descendants depth first. enter returning false skips the children;
// leave, when non-nil, runs after the children.
func Walk(n Node, enter func(Node) (bool, error), leave func(Node) error) error {
	descend, err := enter(n)
	if err != nil {
		return err
	}
	if descend {
		for _, child := range n.Children() {
			if err := Walk(child, enter, leave); err != nil {
				return err
			}
		}
	}
	if leave != nil {
		return leave(n)
	}
	return nil
}
