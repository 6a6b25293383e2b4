// Package check defines the contract analysis rules implement and the engine that runs them.
//
// A check embeds *Base for its identity, configuration and offense reporting, and opts into
// tree events by implementing the matching visitor interfaces. An event a check has no
// visitor for is never dispatched to it.
package check

import (
	"context"
	"sync"

	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/offense"
)

type Check interface {
	Name() string
	Severity() offense.Severity
	Categories() []string
	// Ignored checks receive no events. A check may ignore itself while inside content it
	// already judged and clear the flag on the matching exit event.
	Ignored() bool
	SetIgnored(bool)
	Options() map[string]any
	// CanDisable reports whether the check honors disable comments.
	CanDisable() bool

	base() *Base
}

type DocumentVisitor interface {
	OnDocument(ctx context.Context, n node.Node) error
}

type AfterDocumentVisitor interface {
	AfterDocument(ctx context.Context, n node.Node) error
}

// NodeVisitor receives every tag and variable before its type specific event.
type NodeVisitor interface {
	OnNode(ctx context.Context, n node.Node) error
}

type AfterNodeVisitor interface {
	AfterNode(ctx context.Context, n node.Node) error
}

type TagVisitor interface {
	OnTag(ctx context.Context, n *node.Liquid) error
}

// AfterTagVisitor runs once the tag's body has been visited.
type AfterTagVisitor interface {
	AfterTag(ctx context.Context, n *node.Liquid) error
}

type VariableVisitor interface {
	OnVariable(ctx context.Context, n *node.Liquid) error
}

type ElementVisitor interface {
	OnElement(ctx context.Context, n *node.HTML) error
}

// Base carries what every check shares. Embed it as a pointer created by NewBase.
type Base struct {
	name       string
	categories []string

	mu         sync.Mutex
	severity   offense.Severity
	ignored    bool
	canDisable bool
	options    map[string]any
	offenses   []*offense.Offense
}

func NewBase(name string, severity offense.Severity, categories ...string) *Base {
	return &Base{
		name:       name,
		severity:   severity,
		categories: categories,
		canDisable: true,
		options:    map[string]any{},
	}
}

func (b *Base) base() *Base {
	return b
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Severity() offense.Severity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.severity
}

func (b *Base) SetSeverity(s offense.Severity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.severity = s
}

func (b *Base) Categories() []string {
	return append([]string(nil), b.categories...)
}

func (b *Base) Ignored() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ignored
}

func (b *Base) SetIgnored(ignored bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ignored = ignored
}

func (b *Base) CanDisable() bool {
	return b.canDisable
}

func (b *Base) SetCanDisable(v bool) {
	b.canDisable = v
}

func (b *Base) Options() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.options))
	for k, v := range b.options {
		out[k] = v
	}
	return out
}

// Configure merges opts into the check's options.
func (b *Base) Configure(opts map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range opts {
		b.options[k] = v
	}
}

// StringOption returns a string option or def when unset or of another type.
func (b *Base) StringOption(key, def string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.options[key].(string); ok {
		return v
	}
	return def
}

func (b *Base) meta() offense.Meta {
	return offense.Meta{Check: b.name, Severity: b.Severity(), Categories: b.categories}
}

// Report records an offense against n. Inside an engine dispatch the offense is kept only
// if the call completes. Outside of one it is kept on the check, see Offenses.
func (b *Base) Report(ctx context.Context, message string, n node.Node, opts ...offense.Option) error {
	o, err := offense.New(b.meta(), message, n, opts...)
	if err != nil {
		return err
	}

	if c := collectorFrom(ctx); c != nil {
		c.add(o)
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.offenses = append(b.offenses, o)
	return nil
}

// Offenses returns what was reported outside of engine dispatch.
func (b *Base) Offenses() []*offense.Offense {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*offense.Offense(nil), b.offenses...)
}

type collectorKey struct{}

// collector buffers the offenses of a single handler call. Once closed it drops reports,
// which is what happens to a call abandoned after its timeout.
type collector struct {
	mu       sync.Mutex
	closed   bool
	offenses []*offense.Offense
}

func withCollector(ctx context.Context) (context.Context, *collector) {
	c := &collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func collectorFrom(ctx context.Context) *collector {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(collectorKey{}).(*collector)
	return c
}

func (c *collector) add(o *offense.Offense) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.offenses = append(c.offenses, o)
}

func (c *collector) close() []*offense.Offense {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.offenses
}
