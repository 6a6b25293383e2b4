package analyzer

import (
	"regexp"
	"strings"

	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/offense"
)

const allChecks = "all"

var disableComment = regexp.MustCompile(`^\s*tmplcheck-(disable|enable)\b\s*(.*?)\s*$`)

type region struct {
	start int
	// end is -1 while the region is still open.
	end int
}

func (r region) covers(offset int) bool {
	return offset >= r.start && (r.end < 0 || offset < r.end)
}

// disabledRegions tracks the parts of a file in which checks were turned off by
// `{% # tmplcheck-disable Name %}` or `{% comment %}tmplcheck-disable{% endcomment %}`
// and back on by the matching enable comment. Without names a comment applies to all checks.
type disabledRegions struct {
	regions map[string][]region
}

func collectDisabledRegions(doc *node.Liquid) *disabledRegions {
	d := &disabledRegions{regions: map[string][]region{}}
	_ = node.Walk(doc, func(n node.Node) (bool, error) {
		if l, ok := n.(*node.Liquid); ok {
			d.update(l)
		}
		return true, nil
	}, nil)
	return d
}

func commentText(n *node.Liquid) (string, bool) {
	switch n.Name() {
	case "#":
		return strings.TrimPrefix(n.Markup(), "#"), true
	case "comment":
		return n.Body(), true
	}
	return "", false
}

func (d *disabledRegions) update(n *node.Liquid) {
	text, ok := commentText(n)
	if !ok {
		return
	}
	m := disableComment.FindStringSubmatch(text)
	if m == nil {
		return
	}

	names := []string{allChecks}
	if m[2] != "" {
		names = strings.FieldsFunc(m[2], func(r rune) bool { return r == ',' || r == ' ' })
	}

	start, _ := n.Range()
	for _, name := range names {
		open := d.open(name)
		switch {
		case m[1] == "disable" && open == nil:
			d.regions[name] = append(d.regions[name], region{start: start, end: -1})
		case m[1] == "enable" && open != nil:
			open.end = start
		}
	}
}

func (d *disabledRegions) open(name string) *region {
	rs := d.regions[name]
	if len(rs) > 0 && rs[len(rs)-1].end < 0 {
		return &rs[len(rs)-1]
	}
	return nil
}

func (d *disabledRegions) disabled(name string, offset int) bool {
	for _, key := range []string{allChecks, name} {
		for _, r := range d.regions[key] {
			if r.covers(offset) {
				return true
			}
		}
	}
	return false
}

// wholeFile reports whether name is disabled from the first directive of the file on.
func (d *disabledRegions) wholeFile(name string, firstDirective int) bool {
	for _, key := range []string{allChecks, name} {
		for _, r := range d.regions[key] {
			if r.start == firstDirective && r.end < 0 {
				return true
			}
		}
	}
	return false
}

// ignoreWholeFile marks the checks disabled by a comment on the first line, and never
// enabled again, as ignored. It returns a func restoring them.
func (d *disabledRegions) ignoreWholeFile(doc *node.Liquid, checks []check.Check) func() {
	children := doc.Children()
	if len(children) == 0 || children[0].LineNumber() != 1 {
		return func() {}
	}
	first, _ := children[0].(*node.Liquid).Range()

	var ignored []check.Check
	for _, c := range checks {
		if !c.Ignored() && d.wholeFile(c.Name(), first) {
			c.SetIgnored(true)
			ignored = append(ignored, c)
		}
	}
	return func() {
		for _, c := range ignored {
			c.SetIgnored(false)
		}
	}
}

func (d *disabledRegions) filter(offenses []*offense.Offense, disableable []check.Check) []*offense.Offense {
	names := map[string]bool{}
	for _, c := range disableable {
		names[c.Name()] = true
	}

	out := offenses[:0:0]
	for _, o := range offenses {
		if names[o.Check] && d.disabled(o.Check, o.Position.StartIndex) {
			continue
		}
		out = append(out, o)
	}
	return out
}
