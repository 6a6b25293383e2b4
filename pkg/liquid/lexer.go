// Package liquid locates and parses the template directives (`{% tag %}` and `{{ variable }}`)
// embedded in a document. It knows only the directive delimiters and block structure; everything
// between the delimiters is kept as raw markup for checks to inspect.
package liquid

import (
	"github.com/alecthomas/participle/v2/lexer"
	"gitlab.com/tozd/go/errors"
)

var (
	// LexerRules splits a document into text and delimited directives.
	LexerRules = lexer.Rules{
		"Root": {
			{"TagOpen", `\{%-?`, lexer.Push("Tag")},
			{"VarOpen", `\{\{-?`, lexer.Push("Var")},
			{"Text", `[^{]+|\{`, nil},
		},
		"Tag": {
			{"TagClose", `-?%\}`, lexer.Pop()},
			{"TagBody", `(?:[^%-]|-(?:[^%]|%[^}])|%[^}])+`, nil},
			{"Char", `.|\n`, nil},
		},
		"Var": {
			{"VarClose", `-?\}\}`, lexer.Pop()},
			{"VarBody", `(?:[^}-]|-(?:[^}]|\}[^}])|\}[^}])+`, nil},
			{"Char", `.|\n`, nil},
		},
	}

	DirectiveLexer = lexer.MustStateful(LexerRules)

	symbols = DirectiveLexer.Symbols()
)

// Span is a located directive in the original source. Start and End are byte offsets, End exclusive.
type Span struct {
	Start int
	End   int
	Text  string
}

// Len returns the byte length of the directive text.
func (s Span) Len() int {
	return s.End - s.Start
}

type directive struct {
	variable  bool
	start     int
	end       int
	line      int
	open      string
	body      string
	bodyStart int
	close     string
}

func (d directive) closed() bool {
	return d.close != ""
}

func (d directive) text() string {
	return d.open + d.body + d.close
}

func tokenize(src string) ([]lexer.Token, error) {
	lex, err := DirectiveLexer.LexString("", src)
	if err != nil {
		return nil, errors.Errorf("creating directive lexer: %w", err)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, errors.Errorf("lexing directives: %w", err)
	}
	return tokens, nil
}

// directives groups lexer tokens into delimited directives, in source order.
// A directive missing its closing delimiter is returned with an empty close.
func directives(src string) ([]directive, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	var (
		out     []directive
		current *directive
	)

	for _, tok := range tokens {
		switch tok.Type {
		case symbols["TagOpen"], symbols["VarOpen"]:
			current = &directive{
				variable:  tok.Type == symbols["VarOpen"],
				start:     tok.Pos.Offset,
				end:       tok.Pos.Offset + len(tok.Value),
				line:      tok.Pos.Line,
				open:      tok.Value,
				bodyStart: tok.Pos.Offset + len(tok.Value),
			}
		case symbols["TagClose"], symbols["VarClose"]:
			if current == nil {
				continue
			}
			current.close = tok.Value
			current.end = tok.Pos.Offset + len(tok.Value)
			out = append(out, *current)
			current = nil
		case lexer.EOF:
			if current != nil {
				out = append(out, *current)
				current = nil
			}
		default:
			if current == nil {
				continue
			}
			current.body += tok.Value
			current.end = tok.Pos.Offset + len(tok.Value)
		}
	}

	return out, nil
}

// Scan returns the spans of every terminated tag and variable in src, in ascending order.
// Unterminated directives are not spans; Parse reports them.
func Scan(src string) ([]Span, error) {
	dirs, err := directives(src)
	if err != nil {
		return nil, err
	}

	spans := make([]Span, 0, len(dirs))
	for _, d := range dirs {
		if !d.closed() {
			continue
		}
		spans = append(spans, Span{Start: d.start, End: d.end, Text: src[d.start:d.end]})
	}
	return spans, nil
}
