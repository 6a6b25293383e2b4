package check

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/liquid"
	"github.com/walteh/tmplcheck/pkg/node"
)

var ErrTimeout = errors.Base("check timed out")

type Engine struct {
	run    *Run
	checks []Check

	// abandoned holds the checks with a call still running past its timeout. They get no
	// further events, whatever their ignored flag says.
	abandoned map[Check]bool
}

func NewEngine(run *Run, checks ...Check) *Engine {
	if run == nil {
		run = NewRun()
	}
	return &Engine{run: run, checks: checks, abandoned: map[Check]bool{}}
}

func (e *Engine) Run() *Run {
	return e.run
}

func (e *Engine) Checks() []Check {
	return append([]Check(nil), e.checks...)
}

// Disableable returns the checks that honor disable comments, in registration order.
func (e *Engine) Disableable() []Check {
	var out []Check
	for _, c := range e.checks {
		if c.CanDisable() {
			out = append(out, c)
		}
	}
	return out
}

// Dispatch sends event to every check that handles it and is not ignored, in registration
// order. Only a *liquid.ParseError or a cancelled ctx is returned; any other failure of a
// check is recorded as a Fault on the run. A check that times out is skipped for the rest
// of the run.
func (e *Engine) Dispatch(ctx context.Context, event Event, n node.Node) error {
	for _, c := range e.checks {
		if c.Ignored() || e.abandoned[c] {
			continue
		}
		call, ok := handler(c, event, n)
		if !ok {
			continue
		}
		if err := e.invoke(ctx, c, event, n, call); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) invoke(ctx context.Context, c Check, event Event, n node.Node, call func(context.Context) error) error {
	logger := zerolog.Ctx(ctx)
	template := templatePath(n)

	if e.run.Trace {
		logger.Trace().Str("check", c.Name()).Stringer("event", event).Str("template", template).Msg("start")
		defer func() {
			logger.Trace().Str("check", c.Name()).Stringer("event", event).Str("template", template).Msg("end")
		}()
	}

	callCtx, cancel := context.WithTimeout(ctx, e.run.Timeout)
	defer cancel()
	callCtx, buf := withCollector(callCtx)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("panic: %v", r)
			}
		}()
		done <- call(callCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		if ctx.Err() != nil {
			buf.close()
			return ctx.Err()
		}
		err = errors.WithDetails(ErrTimeout, "timeout", e.run.Timeout.String())
		e.abandoned[c] = true
	}

	found := buf.close()
	if err == nil {
		e.run.commit(found)
		return nil
	}

	var perr *liquid.ParseError
	if errors.As(err, &perr) {
		return err
	}

	f := newFault(c, event, n, err)
	e.run.fault(f)
	logger.Error().Err(err).Str("check", c.Name()).Stringer("event", event).Str("template", template).Msg("check fault")
	return nil
}

func templatePath(n node.Node) string {
	if n == nil || n.File() == nil {
		return ""
	}
	return n.File().RelativePath()
}

func handler(c Check, event Event, n node.Node) (func(context.Context) error, bool) {
	switch event {
	case EventDocument:
		if v, ok := c.(DocumentVisitor); ok {
			return func(ctx context.Context) error { return v.OnDocument(ctx, n) }, true
		}
	case EventAfterDocument:
		if v, ok := c.(AfterDocumentVisitor); ok {
			return func(ctx context.Context) error { return v.AfterDocument(ctx, n) }, true
		}
	case EventNode:
		if v, ok := c.(NodeVisitor); ok {
			return func(ctx context.Context) error { return v.OnNode(ctx, n) }, true
		}
	case EventAfterNode:
		if v, ok := c.(AfterNodeVisitor); ok {
			return func(ctx context.Context) error { return v.AfterNode(ctx, n) }, true
		}
	case EventTag:
		if v, ok := c.(TagVisitor); ok {
			if l, isLiquid := n.(*node.Liquid); isLiquid {
				return func(ctx context.Context) error { return v.OnTag(ctx, l) }, true
			}
		}
	case EventAfterTag:
		if v, ok := c.(AfterTagVisitor); ok {
			if l, isLiquid := n.(*node.Liquid); isLiquid {
				return func(ctx context.Context) error { return v.AfterTag(ctx, l) }, true
			}
		}
	case EventVariable:
		if v, ok := c.(VariableVisitor); ok {
			if l, isLiquid := n.(*node.Liquid); isLiquid {
				return func(ctx context.Context) error { return v.OnVariable(ctx, l) }, true
			}
		}
	case EventElement:
		if v, ok := c.(ElementVisitor); ok {
			if h, isHTML := n.(*node.HTML); isHTML {
				return func(ctx context.Context) error { return v.OnElement(ctx, h) }, true
			}
		}
	}
	return nil, false
}
