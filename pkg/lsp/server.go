// Package lsp serves offenses to editors over the language server protocol.
package lsp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/analyzer"
	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/liquid"
	"github.com/walteh/tmplcheck/pkg/offense"
	"github.com/walteh/tmplcheck/pkg/source"
)

const (
	diagnosticSource = "tmplcheck"
	syntaxErrorCode  = "SyntaxError"
)

type Server struct {
	id        string
	version   string
	documents *DocumentManager
	newChecks func() []check.Check
	opts      []analyzer.Option

	mu   sync.Mutex
	root string
}

// NewServer returns a server that analyzes every document with a fresh set of checks
// from newChecks.
func NewServer(version string, newChecks func() []check.Check, opts ...analyzer.Option) *Server {
	return &Server{
		id:        xid.New().String(),
		version:   version,
		documents: NewDocumentManager(),
		newChecks: newChecks,
		opts:      opts,
	}
}

func (s *Server) Documents() *DocumentManager {
	return s.documents
}

func (s *Server) Handlers() handler.Map {
	return handler.Map{
		"initialize":              createHandler(s.Initialize),
		"initialized":             createEmptyResultHandler(s.Initialized),
		"shutdown":                createEmptyParamsHandler(s.Shutdown),
		"exit":                    createEmptyParamsHandler(s.Exit),
		"textDocument/didOpen":    createEmptyResultHandler(s.DidOpen),
		"textDocument/didChange":  createEmptyResultHandler(s.DidChange),
		"textDocument/didSave":    createEmptyResultHandler(s.DidSave),
		"textDocument/didClose":   createEmptyResultHandler(s.DidClose),
		"textDocument/codeAction": createHandler(s.CodeAction),
	}
}

// Serve runs the server on a header-framed stream until the client exits or the stream
// closes.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.WriteCloser) error {
	ctx = zerolog.Ctx(ctx).With().Str("server_id", s.id).Logger().WithContext(ctx)

	srv := jrpc2.NewServer(s.Handlers(), &jrpc2.ServerOptions{
		AllowPush:   true,
		Concurrency: 1,
		RPCLog:      &RPCLogger{},
		NewContext: func() context.Context {
			return ctx
		},
	})

	status := srv.Start(channel.LSP(r, w)).WaitStatus()
	if !status.Success() {
		return errors.Errorf("serving language server: %w", status.Err)
	}
	return nil
}

func (s *Server) Initialize(ctx context.Context, params *InitializeParams) (*InitializeResult, error) {
	s.mu.Lock()
	s.root = params.RootURI
	s.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("root", params.RootURI).Msg("initializing server")

	return &InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    syncFull,
				Save:      &SaveOptions{IncludeText: true},
			},
			CodeActionProvider: true,
		},
		ServerInfo: &ServerInfo{Name: "tmplcheck", Version: s.version},
	}, nil
}

func (s *Server) Initialized(ctx context.Context, params *InitializedParams) error {
	zerolog.Ctx(ctx).Debug().Msg("server initialized")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) (any, error) {
	zerolog.Ctx(ctx).Debug().Msg("shutting down")
	return nil, nil
}

func (s *Server) Exit(ctx context.Context) (any, error) {
	if srv := jrpc2.ServerFromContext(ctx); srv != nil {
		go srv.Stop()
	}
	return nil, nil
}

func (s *Server) DidOpen(ctx context.Context, params *DidOpenTextDocumentParams) error {
	return s.update(ctx, params.TextDocument.URI, params.TextDocument.Version, params.TextDocument.Text)
}

func (s *Server) DidChange(ctx context.Context, params *DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// full sync, the last change holds the whole text
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	return s.update(ctx, params.TextDocument.URI, params.TextDocument.Version, text)
}

func (s *Server) DidSave(ctx context.Context, params *DidSaveTextDocumentParams) error {
	doc, ok := s.documents.Get(params.TextDocument.URI)
	if !ok {
		return nil
	}
	text := doc.File.Source()
	if params.Text != nil {
		text = *params.Text
	}
	return s.update(ctx, params.TextDocument.URI, doc.Version, text)
}

func (s *Server) DidClose(ctx context.Context, params *DidCloseTextDocumentParams) error {
	s.documents.Delete(params.TextDocument.URI)
	return s.publish(ctx, &PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
}

// CodeAction offers the fix of every correctable offense that overlaps the requested range.
func (s *Server) CodeAction(ctx context.Context, params *CodeActionParams) ([]CodeAction, error) {
	actions := []CodeAction{}

	doc, ok := s.documents.Get(params.TextDocument.URI)
	if !ok || doc.Result == nil {
		return actions, nil
	}

	text := doc.File.Source()
	for _, o := range doc.Result.Offenses {
		if !o.Correctable() {
			continue
		}
		diag := toDiagnostic(o)
		if !overlaps(diag.Range, params.Range) {
			continue
		}

		edits := make([]TextEdit, 0, len(o.Edits))
		for _, e := range o.Edits {
			edits = append(edits, TextEdit{
				Range:   toRange(text, e.Start, e.End),
				NewText: e.Text,
			})
		}

		actions = append(actions, CodeAction{
			Title:       fmt.Sprintf("Fix %s: %s", o.Check, o.Message),
			Kind:        "quickfix",
			Diagnostics: []Diagnostic{diag},
			IsPreferred: true,
			Edit: &WorkspaceEdit{
				Changes: map[string][]TextEdit{params.TextDocument.URI: edits},
			},
		})
	}

	return actions, nil
}

// update stores the new text of a document, analyzes it and publishes what was found.
func (s *Server) update(ctx context.Context, uri string, version int32, text string) error {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()

	doc := &Document{
		URI:     uri,
		Version: version,
		File:    source.NewFile(relativePath(root, uri), text),
	}

	diagnostics, res := s.analyze(ctx, doc.File)
	doc.Result = res

	if !s.documents.Store(doc) {
		zerolog.Ctx(ctx).Debug().Str("uri", uri).Int32("version", version).Msg("dropping stale document version")
		return nil
	}

	return s.publish(ctx, &PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diagnostics,
	})
}

func (s *Server) analyze(ctx context.Context, file *source.File) ([]Diagnostic, *analyzer.Result) {
	logger := zerolog.Ctx(ctx)

	res, err := analyzer.Analyze(ctx, file, s.newChecks(), s.opts...)
	if err != nil {
		logger.Debug().Err(err).Str("path", file.RelativePath()).Msg("template could not be analyzed")
		return []Diagnostic{errorDiagnostic(file.Source(), err)}, nil
	}

	for _, f := range res.Faults {
		logger.Warn().Err(f.Err).Str("check", f.Check).Str("event", f.Event.String()).Msg("check failed")
	}

	diagnostics := make([]Diagnostic, 0, len(res.Offenses))
	for _, o := range res.Offenses {
		diagnostics = append(diagnostics, toDiagnostic(o))
	}
	return diagnostics, res
}

func (s *Server) publish(ctx context.Context, params *PublishDiagnosticsParams) error {
	srv := jrpc2.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	if err := srv.Notify(ctx, "textDocument/publishDiagnostics", params); err != nil {
		return errors.Errorf("publishing diagnostics for %s: %w", params.URI, err)
	}
	return nil
}

func toDiagnostic(o *offense.Offense) Diagnostic {
	return Diagnostic{
		Range:    toRange(o.File.Source(), o.Position.StartIndex, o.Position.EndIndex),
		Severity: toSeverity(o.Severity),
		Code:     o.Check,
		Source:   diagnosticSource,
		Message:  o.Message,
	}
}

func toSeverity(s offense.Severity) DiagnosticSeverity {
	switch s {
	case offense.SeverityError:
		return SeverityError
	case offense.SeveritySuggestion:
		return SeverityWarning
	}
	return SeverityInformation
}

// errorDiagnostic turns a file that could not be analyzed into a single diagnostic. Syntax
// errors point at their line, anything else at the top of the file.
func errorDiagnostic(text string, err error) Diagnostic {
	diag := Diagnostic{
		Severity: SeverityError,
		Source:   diagnosticSource,
		Message:  err.Error(),
	}

	var perr *liquid.ParseError
	if errors.As(err, &perr) && perr.Line > 0 {
		diag.Code = syntaxErrorCode
		start := toOffset(text, Position{Line: perr.Line - 1})
		end := len(text)
		if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
			end = start + nl
		}
		diag.Range = toRange(text, start, end)
	}
	return diag
}
