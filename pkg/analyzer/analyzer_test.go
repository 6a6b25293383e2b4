package analyzer_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/analyzer"
	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/checks"
	"github.com/walteh/tmplcheck/pkg/liquid"
	"github.com/walteh/tmplcheck/pkg/markup"
	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/offense"
	"github.com/walteh/tmplcheck/pkg/source"
)

// eventLog records the order in which events reach it.
type eventLog struct {
	*check.Base
	mu     sync.Mutex
	events []string
}

func newEventLog() *eventLog {
	return &eventLog{Base: check.NewBase("EventLog", offense.SeverityStyle)}
}

func (me *eventLog) add(s string) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.events = append(me.events, s)
}

func (me *eventLog) OnDocument(ctx context.Context, n node.Node) error {
	me.add("document")
	return nil
}

func (me *eventLog) OnNode(ctx context.Context, n node.Node) error {
	me.add("node:" + n.Name())
	return nil
}

func (me *eventLog) OnTag(ctx context.Context, n *node.Liquid) error {
	me.add("tag:" + n.Name())
	return nil
}

func (me *eventLog) AfterTag(ctx context.Context, n *node.Liquid) error {
	me.add("after_tag:" + n.Name())
	return nil
}

func (me *eventLog) OnVariable(ctx context.Context, n *node.Liquid) error {
	me.add("variable:" + strings.TrimSpace(n.Markup()))
	return nil
}

func (me *eventLog) OnElement(ctx context.Context, n *node.HTML) error {
	me.add("element:" + n.Name())
	return nil
}

func (me *eventLog) AfterNode(ctx context.Context, n node.Node) error {
	me.add("after_node:" + n.Name())
	return nil
}

func (me *eventLog) AfterDocument(ctx context.Context, n node.Node) error {
	me.add("after_document")
	return nil
}

// brokenElements fails on every element it sees.
type brokenElements struct {
	*check.Base
}

func (me *brokenElements) OnElement(ctx context.Context, n *node.HTML) error {
	return errors.Errorf("cannot handle <%s>", n.Name())
}

func TestAnalyzeEventOrder(t *testing.T) {
	log := newEventLog()
	src := "<p>{% if x %}{{ y }}{% endif %}</p>"

	_, err := analyzer.Analyze(context.Background(), source.NewFile("a.liquid", src), []check.Check{log})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"document",
		"node:if",
		"tag:if",
		"node:variable",
		"variable:y",
		"after_node:variable",
		"after_tag:if",
		"after_node:if",
		"element:p",
		"after_document",
	}, log.events)
}

// captureSkipper stops looking at variables inside a capture block.
type captureSkipper struct {
	*check.Base
	seen []string
}

func (me *captureSkipper) OnTag(ctx context.Context, n *node.Liquid) error {
	if n.Name() == "capture" {
		me.SetIgnored(true)
	}
	return nil
}

func (me *captureSkipper) OnVariable(ctx context.Context, n *node.Liquid) error {
	me.seen = append(me.seen, strings.TrimSpace(n.Markup()))
	return nil
}

// captureReleaser clears the ignored flag of skipper once a capture block ends.
type captureReleaser struct {
	*check.Base
	skipper *captureSkipper
}

func (me *captureReleaser) AfterTag(ctx context.Context, n *node.Liquid) error {
	if n.Name() == "capture" {
		me.skipper.SetIgnored(false)
	}
	return nil
}

func TestAnalyzeCheckIgnoresItself(t *testing.T) {
	skipper := &captureSkipper{Base: check.NewBase("Skipper", offense.SeverityStyle)}
	releaser := &captureReleaser{Base: check.NewBase("Releaser", offense.SeverityStyle), skipper: skipper}
	src := "{{ a }}{% capture x %}{{ b }}{% if y %}{{ c }}{% endif %}{% endcapture %}{{ d }}"

	_, err := analyzer.Analyze(context.Background(), source.NewFile("a.liquid", src), []check.Check{skipper, releaser})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "d"}, skipper.seen)
	assert.False(t, skipper.Ignored())
}

func TestAnalyzeFaultIsolation(t *testing.T) {
	src := "<img src=\"https://example.com/a.png\">\n{{x }}\n"
	broken := &brokenElements{Base: check.NewBase("Broken", offense.SeverityError)}
	remote := checks.NewRemoteAsset()
	spaces := checks.NewSpaceInsideBraces()

	res, err := analyzer.Analyze(context.Background(), source.NewFile("templates/index.liquid", src), []check.Check{broken, remote, spaces})
	require.NoError(t, err)

	require.Len(t, res.Faults, 1)
	f := res.Faults[0]
	assert.Equal(t, "Broken", f.Check)
	assert.Equal(t, check.EventElement, f.Event)
	assert.Equal(t, "html.img", f.NodeKind)
	assert.Equal(t, "templates/index.liquid", f.Template)

	var names []string
	for _, o := range res.Offenses {
		names = append(names, o.Check)
	}
	assert.Equal(t, []string{"RemoteAsset", "SpaceInsideBraces"}, names)
}

func TestAnalyzeParseError(t *testing.T) {
	_, err := analyzer.Analyze(context.Background(), source.NewFile("a.liquid", "{% if x %}\n{% endfor %}"), checks.All())
	require.Error(t, err)

	var perr *liquid.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

func TestAnalyzeResourceLimit(t *testing.T) {
	src := strings.Repeat("<div>", 20)
	_, err := analyzer.Analyze(context.Background(), source.NewFile("deep.liquid", src), checks.All(),
		analyzer.WithLimits(markup.Limits{MaxDepth: 5, MaxAttributes: 5}))
	require.Error(t, err)

	var fe *analyzer.FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, analyzer.KindResourceLimit, fe.Kind)
	assert.Equal(t, "deep.liquid", fe.Path)
	assert.ErrorIs(t, err, markup.ErrTreeTooDeep)
}

func TestAnalyzeDisableComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []int
	}{
		{
			name: "region",
			src:  "{{x }}\n{% # tmplcheck-disable SpaceInsideBraces %}\n{{x }}\n{% # tmplcheck-enable SpaceInsideBraces %}\n{{x }}\n",
			want: []int{1, 5},
		},
		{
			name: "all checks",
			src:  "{{x }}\n{% comment %}tmplcheck-disable{% endcomment %}\n{{x }}\n",
			want: []int{1},
		},
		{
			name: "whole file",
			src:  "{% # tmplcheck-disable %}\n{{x }}\n{{x }}\n",
		},
		{
			name: "other check",
			src:  "{% # tmplcheck-disable RemoteAsset %}\n{{x }}\n",
			want: []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := checks.NewSpaceInsideBraces()
			res, err := analyzer.Analyze(context.Background(), source.NewFile("a.liquid", tt.src), []check.Check{c})
			require.NoError(t, err)

			var got []int
			for _, o := range res.Offenses {
				got = append(got, o.Line())
			}
			assert.Equal(t, tt.want, got)
			assert.False(t, c.Ignored())
		})
	}
}

func TestAnalyzeDisableRespectsCanDisable(t *testing.T) {
	c := checks.NewSpaceInsideBraces()
	c.SetCanDisable(false)

	res, err := analyzer.Analyze(context.Background(), source.NewFile("a.liquid", "{% # tmplcheck-disable %}\n{{x }}\n"), []check.Check{c})
	require.NoError(t, err)
	assert.Len(t, res.Offenses, 1)
}

func TestAnalyzeFiles(t *testing.T) {
	files := []*source.File{
		source.NewFile("a.liquid", "{{x }}\n"),
		source.NewFile("b.liquid", "{% if %}"),
		source.NewFile("c.liquid", "<script src=\"https://example.com/a.js\"></script>\n"),
	}

	var (
		mu        sync.Mutex
		instances []check.Check
	)
	factory := func() []check.Check {
		cs := checks.All()
		mu.Lock()
		instances = append(instances, cs...)
		mu.Unlock()
		return cs
	}

	results, err := analyzer.AnalyzeFiles(context.Background(), files, factory, analyzer.WithConcurrency(2))
	require.Error(t, err)

	var fe *analyzer.FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "b.liquid", fe.Path)
	assert.Equal(t, analyzer.KindParse, fe.Kind)

	require.Len(t, results, 2)
	assert.Equal(t, "a.liquid", results[0].File.RelativePath())
	assert.Equal(t, "c.liquid", results[1].File.RelativePath())
	require.Len(t, results[0].Offenses, 1)
	require.Len(t, results[1].Offenses, 1)
	assert.Equal(t, "RemoteAsset", results[1].Offenses[0].Check)

	assert.Len(t, instances, 6)
}

func TestFixReportsSkippedOffenses(t *testing.T) {
	file := source.NewFile("a.liquid", "{{  x  }}\n")
	fixed, res, skipped, err := analyzer.Fix(context.Background(), file, []check.Check{checks.NewSpaceInsideBraces()})
	require.NoError(t, err)

	require.Len(t, res.Offenses, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, "{{ x  }}\n", fixed)
}
