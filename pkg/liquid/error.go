package liquid

import "fmt"

// ParseError is a template syntax error. It means the file cannot be analyzed,
// not that anything inside the analyzer misbehaved.
type ParseError struct {
	Message string
	Line    int
	Markup  string
}

func (me *ParseError) Error() string {
	return fmt.Sprintf("Liquid syntax error (line %d): %s", me.Line, me.Message)
}

func newParseErrorf(d directive, format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    d.line,
		Markup:  d.text(),
	}
}
