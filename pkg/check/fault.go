package check

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/walteh/tmplcheck/pkg/node"
)

// Fault is an internal failure of a check while handling one event. Faults are kept apart
// from offenses and never stop a run.
type Fault struct {
	Check    string
	Event    Event
	Template string
	Markup   string
	NodeKind string
	Options  map[string]any
	Err      error
}

func newFault(c Check, event Event, n node.Node, err error) *Fault {
	f := &Fault{
		Check:    c.Name(),
		Event:    event,
		NodeKind: "unknown",
		Options:  c.Options(),
		Err:      err,
	}
	if n == nil {
		return f
	}
	f.NodeKind = n.Kind()
	f.Markup = n.Markup()
	if file := n.File(); file != nil {
		f.Template = file.RelativePath()
	}
	return f
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s#%s: %v", f.Check, f.Event, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Report renders the fault for a human filing a bug against the check.
func (f *Fault) Report() string {
	printer := pp.New()
	printer.SetColoringEnabled(false)

	var b strings.Builder
	fmt.Fprintf(&b, "Exception while running `%s#%s`:\n", f.Check, f.Event)
	fmt.Fprintf(&b, "```\n%+v\n```\n\n", f.Err)
	fmt.Fprintf(&b, "Template: `%s`\n", f.Template)
	fmt.Fprintf(&b, "Node: `%s`\n", f.NodeKind)
	fmt.Fprintf(&b, "Markup:\n```\n%s\n```\n", f.Markup)
	fmt.Fprintf(&b, "Check options: `%s`\n", strings.TrimSpace(printer.Sprint(f.Options)))
	return b.String()
}
