package offense

import (
	"sort"

	"github.com/hashicorp/go-multierror"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/source"
)

var (
	ErrConflictingEdit = errors.Base("conflicting edits")
	ErrEditOutOfRange  = errors.Base("edit out of range")
	ErrForeignNode     = errors.Base("node belongs to another file")
)

type EditKind uint8

const (
	InsertBefore EditKind = iota
	InsertAfter
	Replace
)

func (k EditKind) String() string {
	switch k {
	case InsertBefore:
		return "insert-before"
	case InsertAfter:
		return "insert-after"
	case Replace:
		return "replace"
	}
	return "unknown"
}

// Edit replaces the bytes [Start, End) of a source with Text. Insertions have Start == End.
type Edit struct {
	Kind  EditKind
	Start int
	End   int
	Text  string
}

// Corrector collects the edits of one offense. Edits target the markup span of a node
// and are only recorded; Apply performs them.
type Corrector struct {
	file  *source.File
	edits []Edit
	err   error
}

func NewCorrector(file *source.File) *Corrector {
	return &Corrector{file: file}
}

func (c *Corrector) InsertBefore(n node.Node, text string) {
	start, _, ok := c.span(n)
	if !ok {
		return
	}
	c.edits = append(c.edits, Edit{Kind: InsertBefore, Start: start, End: start, Text: text})
}

func (c *Corrector) InsertAfter(n node.Node, text string) {
	_, end, ok := c.span(n)
	if !ok {
		return
	}
	c.edits = append(c.edits, Edit{Kind: InsertAfter, Start: end, End: end, Text: text})
}

func (c *Corrector) Replace(n node.Node, text string) {
	start, end, ok := c.span(n)
	if !ok {
		return
	}
	c.edits = append(c.edits, Edit{Kind: Replace, Start: start, End: end, Text: text})
}

func (c *Corrector) span(n node.Node) (int, int, bool) {
	if n.File() != c.file {
		c.err = multierror.Append(c.err, errors.WithDetails(ErrForeignNode, "path", n.File().RelativePath()))
		return 0, 0, false
	}
	start, err := n.StartIndex()
	if err != nil {
		c.err = multierror.Append(c.err, err)
		return 0, 0, false
	}
	end, err := n.EndIndex()
	if err != nil {
		c.err = multierror.Append(c.err, err)
		return 0, 0, false
	}
	return start, end, true
}

func (c *Corrector) Edits() []Edit {
	return append([]Edit(nil), c.edits...)
}

// Err returns every failure of the edits asked for, or nil.
func (c *Corrector) Err() error {
	return c.err
}

// Apply performs edits on src. Edits are applied from the highest start offset down so
// that no edit shifts the offsets of one still pending. Insertions at the same offset keep
// their recorded order and land before a replacement starting there. Overlapping edits fail with ErrConflictingEdit.
func Apply(src string, edits []Edit) (string, error) {
	for i, e := range edits {
		if e.Start < 0 || e.End < e.Start || e.End > len(src) {
			return "", errors.WithDetails(ErrEditOutOfRange, "start", e.Start, "end", e.End, "length", len(src))
		}
		for _, other := range edits[:i] {
			if conflict(e, other) {
				return "", errors.WithDetails(ErrConflictingEdit, "first", other.Kind.String(), "second", e.Kind.String(), "start", e.Start)
			}
		}
	}

	order := make([]int, len(edits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := edits[order[i]], edits[order[j]]
		if a.Start != b.Start {
			return a.Start > b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		return order[i] > order[j]
	})

	out := src
	for _, i := range order {
		e := edits[i]
		out = out[:e.Start] + e.Text + out[e.End:]
	}
	return out, nil
}

// conflict treats spans as half-open intervals. Two insertions never conflict, an insertion
// conflicts with a replacement it falls strictly inside of.
func conflict(a, b Edit) bool {
	if a.Start == a.End && b.Start == b.End {
		return false
	}
	if a.Start == a.End {
		return b.Start < a.Start && a.Start < b.End
	}
	if b.Start == b.End {
		return a.Start < b.Start && b.Start < a.End
	}
	return a.Start < b.End && b.Start < a.End
}

// ApplyAll applies the fixes of offenses one offense at a time. An offense whose edits
// conflict with an already accepted offense is skipped and returned. An offense whose own
// edits conflict fails the whole call.
func ApplyAll(src string, offenses []*Offense) (string, []*Offense, error) {
	var (
		accepted []Edit
		skipped  []*Offense
	)

	for _, o := range offenses {
		if !o.Correctable() {
			continue
		}
		if _, err := Apply(src, o.Edits); err != nil {
			return "", nil, errors.Errorf("fix for %q: %w", o.String(), err)
		}
		if conflictsWithAny(o.Edits, accepted) {
			skipped = append(skipped, o)
			continue
		}
		accepted = append(accepted, o.Edits...)
	}

	out, err := Apply(src, accepted)
	if err != nil {
		return "", nil, err
	}
	return out, skipped, nil
}

func conflictsWithAny(edits, accepted []Edit) bool {
	for _, e := range edits {
		for _, a := range accepted {
			if conflict(e, a) {
				return true
			}
		}
	}
	return false
}
