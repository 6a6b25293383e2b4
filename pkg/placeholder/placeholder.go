// Package placeholder hides template directives from the markup parser.
//
// Every directive span is rewritten into an opaque token of the same byte length:
//
//	{{ product.title }}  ->  \x1e0###############\x1e
//	 ^ table[0]              ^ boundary, base-36 key, filler, boundary
//
// Newlines inside a directive are kept where they were, so line numbers reported
// against the encoded text are the line numbers of the original source. The table
// maps each key back to the directive text it replaced.
package placeholder

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/liquid"
)

const (
	// Boundary opens and closes every placeholder. It may not appear in the source.
	Boundary = '\x1e'
	// Filler pads placeholders after the key. It is outside the base-36 alphabet.
	Filler = '#'

	// MinSpanLength is the length of the smallest directive worth encoding (`{{x}}`).
	// Empty directives such as `{%%}` cannot confuse the markup parser and are left alone.
	MinSpanLength = 5
)

var (
	ErrKeyOverflow  = errors.Base("placeholder key does not fit in directive span")
	ErrSpanOrder    = errors.Base("directive spans must be in bounds, ascending and non-overlapping")
	ErrReservedByte = errors.Base("source contains the reserved placeholder boundary byte")
)

// Table holds the original directive texts, indexed by placeholder key.
// Identical directives get separate entries.
type Table []string

// Encoded is the parser-safe rewrite of a source and the table to undo it.
type Encoded struct {
	Text  string
	Table Table
}

// Key encodes a table index the way placeholders carry it.
func Key(index int) string {
	return strconv.FormatInt(int64(index), 36)
}

// Encode replaces each span of src longer than four bytes by a placeholder.
// The result has the same length and the same newline offsets as src.
func Encode(ctx context.Context, src string, spans []liquid.Span) (*Encoded, error) {
	if strings.IndexByte(src, Boundary) >= 0 {
		return nil, errors.WithStack(ErrReservedByte)
	}

	buf := []byte(src)
	table := make(Table, 0, len(spans))
	prevEnd := 0

	for _, span := range spans {
		if span.Start < prevEnd || span.End < span.Start || span.End > len(src) {
			return nil, errors.WithDetails(ErrSpanOrder, "start", span.Start, "end", span.End, "previous_end", prevEnd)
		}
		prevEnd = span.End

		if span.Len() < MinSpanLength {
			continue
		}

		key := Key(len(table))
		table = append(table, src[span.Start:span.End])

		if err := fill(buf[span.Start:span.End], key); err != nil {
			zerolog.Ctx(ctx).Warn().
				Int("start", span.Start).
				Int("length", span.Len()).
				Str("key", key).
				Msg("directive span too short for its placeholder key")
			return nil, err
		}
	}

	return &Encoded{Text: string(buf), Table: table}, nil
}

// fill overwrites dst with a placeholder carrying key. dst is a directive span, so it is
// at least MinSpanLength bytes long.
func fill(dst []byte, key string) error {
	last := len(dst) - 1
	dst[0] = Boundary
	dst[last] = Boundary

	k := 0
	for i := 1; i < last; i++ {
		if dst[i] == '\n' {
			continue
		}
		if k < len(key) {
			dst[i] = key[k]
			k++
			continue
		}
		dst[i] = Filler
	}

	if k < len(key) {
		return errors.WithDetails(ErrKeyOverflow, "key", key, "capacity", k)
	}
	return nil
}
