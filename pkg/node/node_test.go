package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/markup"
	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/source"
)

const page = `<div class="{{ klass }}">
  <img src="{{ 'a.jpg' | asset_url }}" alt="x">
  {% if x %}<p>{{ x }}</p>{% endif %}
  <a
    href="{{ url }}">link</a>
</div>
`

func parseHTML(t *testing.T, src string) *node.HTML {
	t.Helper()
	doc, err := node.ParseHTML(context.Background(), source.NewFile("templates/index.liquid", src), markup.DefaultLimits)
	require.NoError(t, err)
	return doc
}

func elements(n node.Node) []*node.HTML {
	var out []*node.HTML
	_ = node.Walk(n, func(n node.Node) (bool, error) {
		if n.Element() {
			out = append(out, n.(*node.HTML))
		}
		return true, nil
	}, nil)
	return out
}

func TestHTMLTree(t *testing.T) {
	doc := parseHTML(t, page)

	assert.Equal(t, node.DocumentName, doc.Name())
	assert.Nil(t, doc.Parent())
	assert.Equal(t, "templates/index.liquid", doc.File().RelativePath())

	els := elements(doc)
	var names []string
	for _, el := range els {
		names = append(names, el.Name())
	}
	assert.Equal(t, []string{"div", "img", "p", "a"}, names)

	div, img, p, a := els[0], els[1], els[2], els[3]

	assert.Equal(t, `<div class="{{ klass }}">`, div.Markup())
	assert.Equal(t, map[string]string{"class": "{{ klass }}"}, div.Attributes())

	assert.Equal(t, `<img src="{{ 'a.jpg' | asset_url }}" alt="x">`, img.Markup())
	src, ok := img.Attribute("src")
	assert.True(t, ok)
	assert.Equal(t, "{{ 'a.jpg' | asset_url }}", src)
	assert.Same(t, div, img.Parent())

	assert.Equal(t, "{{ x }}", p.Content())
	assert.Equal(t, "<a\n    href=\"{{ url }}\">", a.Markup())

	parseable, err := img.ParseableMarkup()
	require.NoError(t, err)
	assert.Len(t, parseable, len(img.Markup()))
	assert.NotContains(t, parseable, "asset_url")
}

func TestHTMLMarkupMatchesSource(t *testing.T) {
	doc := parseHTML(t, page)

	_ = node.Walk(doc, func(n node.Node) (bool, error) {
		if n.Name() == node.DocumentName {
			return true, nil
		}
		pos, err := n.Position()
		require.NoError(t, err)
		assert.Equal(t, n.Markup(), page[pos.StartIndex:pos.EndIndex], "%s on line %d", n.Name(), n.LineNumber())
		return true, nil
	}, nil)
}

func TestHTMLLineStability(t *testing.T) {
	doc := parseHTML(t, page)

	_ = node.Walk(doc, func(n node.Node) (bool, error) {
		pos, err := n.Position()
		require.NoError(t, err)
		assert.Equal(t, n.LineNumber(), pos.StartRow, "%s %q", n.Name(), n.Markup())
		return true, nil
	}, nil)
}

func TestHTMLPositionIsCached(t *testing.T) {
	doc := parseHTML(t, page)
	a := elements(doc)[3]

	first, err := a.Position()
	require.NoError(t, err)
	second, err := a.Position()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 4, first.StartRow)
	assert.Equal(t, 3, first.StartColumn)
	assert.Equal(t, 5, first.EndRow)
}

func TestHTMLSameNameOnOneLine(t *testing.T) {
	src := "<br><br class=\"{{ c }}\">"
	doc := parseHTML(t, src)

	els := elements(doc)
	require.Len(t, els, 2)
	assert.Equal(t, `<br class="{{ c }}">`, els[1].Markup())

	start, err := els[1].StartIndex()
	require.NoError(t, err)
	assert.Equal(t, 4, start)
}

func TestHTMLOffsetsNotImplementedForLiterals(t *testing.T) {
	doc := parseHTML(t, "<p>hello {{ name }}</p>")
	p := elements(doc)[0]
	text := p.Children()[0]

	assert.True(t, text.Literal())
	assert.Equal(t, "hello {{ name }}", text.Markup())

	_, err := text.StartIndex()
	assert.True(t, errors.Is(err, node.ErrNotImplemented))
	_, err = doc.EndIndex()
	assert.True(t, errors.Is(err, node.ErrNotImplemented))

	pos, err := text.Position()
	require.NoError(t, err)
	assert.Equal(t, 1, pos.StartRow)
	assert.Equal(t, 4, pos.StartColumn)
}

func TestHTMLLiteralPositionUsesTokenOffset(t *testing.T) {
	src := "<p title=\"hi\">hi</p>"
	doc := parseHTML(t, src)
	text := elements(doc)[0].Children()[0]
	require.True(t, text.Literal())

	pos, err := text.Position()
	require.NoError(t, err)
	assert.Equal(t, 15, pos.StartColumn)
	assert.Equal(t, "hi", src[pos.StartIndex:pos.EndIndex])
}

func TestParseHTMLLimits(t *testing.T) {
	_, err := node.ParseHTML(context.Background(), source.NewFile("x", "<a><b><c></c></b></a>"), markup.Limits{MaxDepth: 2})
	assert.True(t, errors.Is(err, markup.ErrTreeTooDeep))
}

func TestLiquidTree(t *testing.T) {
	src := "{% assign x = 1%}\n{{ x}}\n{% form 'f' %}\n  {{x }}\n{% endform %}\n"
	doc, err := node.ParseLiquid(source.NewFile("templates/index.liquid", src))
	require.NoError(t, err)

	assert.True(t, doc.Document())
	_, err = doc.StartIndex()
	assert.True(t, errors.Is(err, node.ErrNotImplemented))

	children := doc.Children()
	require.Len(t, children, 3)

	assign := children[0].(*node.Liquid)
	assert.True(t, assign.Tag())
	assert.Equal(t, "assign", assign.TypeName())
	assert.Equal(t, "assign x = 1", assign.Markup())
	assert.Equal(t, "x = 1", assign.Arguments())

	variable := children[1].(*node.Liquid)
	assert.True(t, variable.Variable())
	assert.Equal(t, "variable", variable.Name())
	pos, err := variable.Position()
	require.NoError(t, err)
	assert.Equal(t, 2, pos.StartRow)
	assert.Equal(t, 3, pos.StartColumn)
	assert.Equal(t, " x", src[pos.StartIndex:pos.EndIndex])

	form := children[2].(*node.Liquid)
	assert.True(t, form.Block())
	require.Len(t, form.Children(), 1)
	inner := form.Children()[0]
	assert.Same(t, form, inner.Parent())
	assert.Equal(t, 4, inner.LineNumber())
	assert.Equal(t, "liquid.variable", inner.Kind())
}

func TestParseLiquidReturnsParseError(t *testing.T) {
	_, err := node.ParseLiquid(source.NewFile("x", "{% if a %}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'if' tag was never closed")
}
