package offense

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Severity defines the importance of an offense.
type Severity uint8

const (
	SeverityError Severity = iota
	SeveritySuggestion
	SeverityStyle
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeveritySuggestion:
		return "suggestion"
	case SeverityStyle:
		return "style"
	}
	return "unknown"
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, nil
	case "suggestion":
		return SeveritySuggestion, nil
	case "style":
		return SeverityStyle, nil
	}
	return SeverityStyle, errors.Errorf("invalid severity: %q (expected: error|suggestion|style)", s)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
