package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/offense"
)

const SpaceInsideBracesName = "SpaceInsideBraces"

var (
	tooManySpacesAfter = regexp.MustCompile(`([,:]) {2,}`)
	spaceMissingAfter  = regexp.MustCompile(`([,:])\S`)
	trailingSpaces     = regexp.MustCompile(`(\n?)( {2,})$`)
)

// SpaceInsideBraces ensures `{% ... %}` and `{{ ... }}` have consistent spaces.
type SpaceInsideBraces struct {
	*check.Base
}

func NewSpaceInsideBraces() *SpaceInsideBraces {
	return &SpaceInsideBraces{Base: check.NewBase(SpaceInsideBracesName, offense.SeverityStyle, "liquid")}
}

func (me *SpaceInsideBraces) OnNode(ctx context.Context, n node.Node) error {
	l, ok := n.(*node.Liquid)
	if !ok || l.Document() || l.Markup() == "" || l.Name() == "#" {
		return nil
	}

	start, err := l.StartIndex()
	if err != nil {
		return err
	}

	var reportErr error
	report := func(message string, opts ...offense.Option) {
		if reportErr == nil {
			reportErr = me.Report(ctx, message, l, opts...)
		}
	}

	outsideOfStrings(l.Markup(), func(chunk string, chunkStart int) {
		for _, m := range tooManySpacesAfter.FindAllStringSubmatchIndex(chunk, -1) {
			report(fmt.Sprintf("Too many spaces after '%s'", chunk[m[2]:m[3]]),
				offense.WithMarkup(chunk[m[0]:m[1]]),
				offense.WithOffset(start+chunkStart+m[0]))
		}
		for _, m := range spaceMissingAfter.FindAllStringSubmatchIndex(chunk, -1) {
			report(fmt.Sprintf("Space missing after '%s'", chunk[m[2]:m[3]]),
				offense.WithMarkup(chunk[m[0]:m[1]]),
				offense.WithOffset(start+chunkStart+m[0]))
		}
	})
	return reportErr
}

func (me *SpaceInsideBraces) OnTag(ctx context.Context, n *node.Liquid) error {
	if !n.InsideLiquidTag() {
		return nil
	}

	closing := "%}"
	if n.WhitespaceTrimmed() {
		closing = "-%}"
	}

	markup := n.Markup()
	last := markup[len(markup)-1]
	if last != ' ' && last != '\n' {
		return me.Report(ctx, fmt.Sprintf("Space missing before '%s'", closing), n,
			offense.WithMarkup(string(last)+closing))
	}
	if m := trailingSpaces.FindStringSubmatch(markup); m != nil && m[1] != "\n" {
		return me.Report(ctx, fmt.Sprintf("Too many spaces before '%s'", closing), n,
			offense.WithMarkup(m[2]+closing))
	}
	return nil
}

func (me *SpaceInsideBraces) OnVariable(ctx context.Context, n *node.Liquid) error {
	markup := n.Markup()
	if markup == "" {
		return nil
	}

	type finding struct {
		message string
		fix     func(*offense.Corrector)
	}
	var found []finding

	if markup[0] != ' ' {
		found = append(found, finding{"Space missing after '{{'", func(c *offense.Corrector) {
			c.InsertBefore(n, " ")
		}})
	}
	if markup[len(markup)-1] != ' ' {
		found = append(found, finding{"Space missing before '}}'", func(c *offense.Corrector) {
			c.InsertAfter(n, " ")
		}})
	}
	if strings.HasPrefix(markup, "  ") {
		found = append(found, finding{"Too many spaces after '{{'", func(c *offense.Corrector) {
			c.Replace(n, " "+strings.TrimLeft(markup, " \t\n"))
		}})
	}
	if strings.HasSuffix(markup, "  ") {
		found = append(found, finding{"Too many spaces before '}}'", func(c *offense.Corrector) {
			c.Replace(n, strings.TrimRight(markup, " \t\n")+" ")
		}})
	}

	for _, f := range found {
		if err := me.Report(ctx, f.message, n, offense.WithFix(f.fix)); err != nil {
			return err
		}
	}
	return nil
}
