// Package analyzer drives checks over templates: it builds both trees of a file, dispatches
// their events to an engine and collects what the checks found.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/liquid"
	"github.com/walteh/tmplcheck/pkg/markup"
	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/offense"
	"github.com/walteh/tmplcheck/pkg/source"
)

type ErrorKind int

const (
	KindParse ErrorKind = iota
	KindResourceLimit
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindResourceLimit:
		return "resource limit"
	}
	return "internal"
}

// FileError is a file that could not be analyzed. It is reported apart from offenses.
type FileError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Path, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func newFileError(file *source.File, err error) *FileError {
	fe := &FileError{Path: file.RelativePath(), Kind: KindInternal, Err: err}
	var perr *liquid.ParseError
	switch {
	case errors.As(err, &perr):
		fe.Kind = KindParse
	case errors.Is(err, markup.ErrTreeTooDeep), errors.Is(err, markup.ErrTooManyAttributes):
		fe.Kind = KindResourceLimit
	}
	return fe
}

type Result struct {
	File     *source.File
	Offenses []*offense.Offense
	Faults   []*check.Fault
}

type options struct {
	limits      markup.Limits
	timeout     time.Duration
	trace       bool
	concurrency int
}

type Option func(*options)

func WithLimits(limits markup.Limits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithTrace(trace bool) Option {
	return func(o *options) {
		o.trace = trace
	}
}

// WithConcurrency bounds the number of files AnalyzeFiles works on at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		limits:      markup.DefaultLimits,
		timeout:     check.DefaultTimeout,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze runs checks over file. A template syntax error is returned as the
// *liquid.ParseError it is; markup exceeding the parser limits is returned as a *FileError.
func Analyze(ctx context.Context, file *source.File, checks []check.Check, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	logger := zerolog.Ctx(ctx).With().Str("template", file.RelativePath()).Logger()
	ctx = logger.WithContext(ctx)

	doc, err := node.ParseLiquid(file)
	if err != nil {
		return nil, err
	}

	html, err := node.ParseHTML(ctx, file, o.limits)
	if err != nil {
		return nil, newFileError(file, err)
	}

	run := check.NewRun(check.WithTimeout(o.timeout), check.WithTrace(o.trace))
	engine := check.NewEngine(run, checks...)

	disabled := collectDisabledRegions(doc)
	restore := disabled.ignoreWholeFile(doc, engine.Disableable())
	defer restore()

	logger.Debug().Str("run", run.ID).Int("checks", len(checks)).Msg("analyzing")

	if err := visit(ctx, engine, doc, html); err != nil {
		return nil, err
	}

	found := disabled.filter(run.Offenses(), engine.Disableable())
	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i].Position, found[j].Position
		if a.StartRow != b.StartRow {
			return a.StartRow < b.StartRow
		}
		return a.StartColumn < b.StartColumn
	})

	return &Result{File: file, Offenses: found, Faults: run.Faults()}, nil
}

func visit(ctx context.Context, engine *check.Engine, doc *node.Liquid, html *node.HTML) error {
	if err := engine.Dispatch(ctx, check.EventDocument, doc); err != nil {
		return err
	}

	for _, child := range doc.Children() {
		if err := visitLiquid(ctx, engine, child.(*node.Liquid)); err != nil {
			return err
		}
	}

	err := node.Walk(html, func(n node.Node) (bool, error) {
		if n.Element() {
			return true, engine.Dispatch(ctx, check.EventElement, n)
		}
		return true, nil
	}, nil)
	if err != nil {
		return err
	}

	return engine.Dispatch(ctx, check.EventAfterDocument, doc)
}

func visitLiquid(ctx context.Context, engine *check.Engine, n *node.Liquid) error {
	if err := engine.Dispatch(ctx, check.EventNode, n); err != nil {
		return err
	}

	switch {
	case n.Tag():
		if err := engine.Dispatch(ctx, check.EventTag, n); err != nil {
			return err
		}
	case n.Variable():
		if err := engine.Dispatch(ctx, check.EventVariable, n); err != nil {
			return err
		}
	}

	for _, child := range n.Children() {
		if err := visitLiquid(ctx, engine, child.(*node.Liquid)); err != nil {
			return err
		}
	}

	if n.Tag() {
		if err := engine.Dispatch(ctx, check.EventAfterTag, n); err != nil {
			return err
		}
	}
	return engine.Dispatch(ctx, check.EventAfterNode, n)
}

// AnalyzeFiles analyzes files in parallel. newChecks is called once per file so no check
// instance is shared between files. Files that fail are left out of the results and their
// errors are returned together.
func AnalyzeFiles(ctx context.Context, files []*source.File, newChecks func() []check.Check, opts ...Option) ([]*Result, error) {
	o := newOptions(opts)

	results := make([]*Result, len(files))

	var (
		mu   sync.Mutex
		merr *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}

	for i, file := range files {
		g.Go(func() error {
			res, err := Analyze(gctx, file, newChecks(), opts...)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				var fe *FileError
				if !errors.As(err, &fe) {
					fe = newFileError(file, err)
				}
				zerolog.Ctx(ctx).Warn().Err(err).Str("template", file.RelativePath()).Msg("template skipped")
				mu.Lock()
				merr = multierror.Append(merr, fe)
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out, merr.ErrorOrNil()
}

// Fix analyzes file and applies the fixes of its correctable offenses. Offenses whose edits
// overlap an already applied fix are returned as skipped.
func Fix(ctx context.Context, file *source.File, checks []check.Check, opts ...Option) (string, *Result, []*offense.Offense, error) {
	res, err := Analyze(ctx, file, checks, opts...)
	if err != nil {
		return "", nil, nil, err
	}

	fixed, skipped, err := offense.ApplyAll(file.Source(), res.Offenses)
	if err != nil {
		return "", nil, nil, errors.Errorf("fixing %s: %w", file.RelativePath(), err)
	}
	return fixed, res, skipped, nil
}
