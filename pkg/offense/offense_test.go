package offense_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/offense"
	"github.com/walteh/tmplcheck/pkg/source"
)

var meta = offense.Meta{Check: "TestCheck", Severity: offense.SeverityStyle, Categories: []string{"liquid"}}

func variables(t *testing.T, src string) (*source.File, []node.Node) {
	t.Helper()
	file := source.NewFile("templates/index.liquid", src)
	doc, err := node.ParseLiquid(file)
	require.NoError(t, err)
	return file, doc.Children()
}

func TestNew(t *testing.T) {
	_, nodes := variables(t, "<p>\n{{ x}}</p>")

	o, err := offense.New(meta, "Space missing before '}}'", nodes[0])
	require.NoError(t, err)

	assert.Equal(t, "TestCheck", o.Check)
	assert.Equal(t, offense.SeverityStyle, o.Severity)
	assert.Equal(t, []string{"liquid"}, o.Categories)
	assert.Equal(t, " x", o.Markup)
	assert.Equal(t, 2, o.Line())
	assert.Equal(t, 3, o.Position.StartColumn)
	assert.False(t, o.Correctable())
	assert.Equal(t, "Space missing before '}}' at templates/index.liquid:2", o.String())
}

func TestNewCopiesMeta(t *testing.T) {
	_, nodes := variables(t, "{{ x }}")
	m := offense.Meta{Check: "A", Severity: offense.SeverityError, Categories: []string{"a"}}

	o, err := offense.New(m, "msg", nodes[0])
	require.NoError(t, err)

	m.Severity = offense.SeverityStyle
	m.Categories[0] = "changed"
	assert.Equal(t, offense.SeverityError, o.Severity)
	assert.Equal(t, []string{"a"}, o.Categories)
}

func TestNewWithMarkup(t *testing.T) {
	src := "{% assign x = 1%}"
	file := source.NewFile("t.liquid", src)
	doc, err := node.ParseLiquid(file)
	require.NoError(t, err)

	o, err := offense.New(meta, "Space missing before '%}'", doc.Children()[0], offense.WithMarkup("1%}"))
	require.NoError(t, err)
	assert.Equal(t, "1%}", o.Markup)
	assert.Equal(t, 14, o.Position.StartIndex)
	assert.Equal(t, "1%}", src[o.Position.StartIndex:o.Position.EndIndex])
}

func TestNewWithOffset(t *testing.T) {
	src := "{% form 'a',  b %}{% endform %}"
	file := source.NewFile("t.liquid", src)
	doc, err := node.ParseLiquid(file)
	require.NoError(t, err)

	o, err := offense.New(meta, "Too many spaces after ','", doc.Children()[0], offense.WithMarkup(",  "), offense.WithOffset(11))
	require.NoError(t, err)
	assert.Equal(t, ",  ", src[o.Position.StartIndex:o.Position.EndIndex])
	assert.Equal(t, 12, o.Position.StartColumn)
	assert.Equal(t, 15, o.Position.EndColumn)
}

func TestFix(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fix  func(*offense.Corrector, node.Node)
		want string
	}{
		{
			name: "insert before",
			src:  "{{x }}",
			fix:  func(c *offense.Corrector, n node.Node) { c.InsertBefore(n, " ") },
			want: "{{ x }}",
		},
		{
			name: "insert after",
			src:  "{{ x}}",
			fix:  func(c *offense.Corrector, n node.Node) { c.InsertAfter(n, " ") },
			want: "{{ x }}",
		},
		{
			name: "replace",
			src:  "{{  x }}\n",
			fix:  func(c *offense.Corrector, n node.Node) { c.Replace(n, " x ") },
			want: "{{ x }}\n",
		},
		{
			name: "insert on both sides",
			src:  "{{x}}",
			fix: func(c *offense.Corrector, n node.Node) {
				c.InsertBefore(n, " ")
				c.InsertAfter(n, " ")
			},
			want: "{{ x }}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, nodes := variables(t, tt.src)
			n := nodes[0]

			o, err := offense.New(meta, "msg", n, offense.WithFix(func(c *offense.Corrector) { tt.fix(c, n) }))
			require.NoError(t, err)
			require.True(t, o.Correctable())

			got, err := offense.Apply(tt.src, o.Edits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFixOnNodeWithoutOffsets(t *testing.T) {
	file, _ := variables(t, "{{ x }}")
	doc, err := node.ParseLiquid(file)
	require.NoError(t, err)

	c := offense.NewCorrector(file)
	c.Replace(doc, "nope")
	assert.Empty(t, c.Edits())
	assert.True(t, errors.Is(c.Err(), node.ErrNotImplemented))
}

func TestFixOnForeignNode(t *testing.T) {
	_, nodes := variables(t, "{{ x }}")

	c := offense.NewCorrector(source.NewFile("other.liquid", "{{ x }}"))
	c.InsertBefore(nodes[0], " ")
	assert.True(t, errors.Is(c.Err(), offense.ErrForeignNode))
}

func TestApply(t *testing.T) {
	src := "abcdef"

	got, err := offense.Apply(src, []offense.Edit{
		{Kind: offense.Replace, Start: 0, End: 1, Text: "A"},
		{Kind: offense.InsertAfter, Start: 6, End: 6, Text: "!"},
		{Kind: offense.InsertBefore, Start: 3, End: 3, Text: "1"},
		{Kind: offense.InsertBefore, Start: 3, End: 3, Text: "2"},
		{Kind: offense.Replace, Start: 3, End: 4, Text: "D"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Abc12Def!", got)
}

func TestApplyConflicts(t *testing.T) {
	_, err := offense.Apply("abcdef", []offense.Edit{
		{Kind: offense.Replace, Start: 0, End: 3, Text: "x"},
		{Kind: offense.Replace, Start: 2, End: 4, Text: "y"},
	})
	assert.True(t, errors.Is(err, offense.ErrConflictingEdit))

	_, err = offense.Apply("abcdef", []offense.Edit{
		{Kind: offense.Replace, Start: 0, End: 3, Text: "x"},
		{Kind: offense.InsertBefore, Start: 1, End: 1, Text: "y"},
	})
	assert.True(t, errors.Is(err, offense.ErrConflictingEdit))

	_, err = offense.Apply("abc", []offense.Edit{{Start: 2, End: 9}})
	assert.True(t, errors.Is(err, offense.ErrEditOutOfRange))
}

func TestApplyAll(t *testing.T) {
	src := "{{  x }}\n{{ y}}\n"
	_, nodes := variables(t, src)

	replace := func(n node.Node, text string) *offense.Offense {
		o, err := offense.New(meta, "msg", n, offense.WithFix(func(c *offense.Corrector) { c.Replace(n, text) }))
		require.NoError(t, err)
		return o
	}

	first := replace(nodes[0], " x ")
	duplicate := replace(nodes[0], "  x  ")
	second := replace(nodes[1], " y ")
	noFix, err := offense.New(meta, "msg", nodes[1])
	require.NoError(t, err)

	got, skipped, err := offense.ApplyAll(src, []*offense.Offense{first, duplicate, noFix, second})
	require.NoError(t, err)
	assert.Equal(t, "{{ x }}\n{{ y }}\n", got)
	assert.Equal(t, []*offense.Offense{duplicate}, skipped)
}
