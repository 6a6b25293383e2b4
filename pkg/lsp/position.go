package lsp

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// toPosition converts a byte offset of text to a protocol position.
func toPosition(text string, offset int) Position {
	offset = max(0, min(offset, len(text)))
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	return Position{
		Line:      strings.Count(text[:offset], "\n"),
		Character: utf16Len(text[lineStart:offset]),
	}
}

func toRange(text string, start, end int) Range {
	return Range{Start: toPosition(text, start), End: toPosition(text, end)}
}

// toOffset converts a protocol position back to a byte offset of text. Positions past the
// end of a line clamp to the line end.
func toOffset(text string, p Position) int {
	start := 0
	for i := 0; i < p.Line; i++ {
		nl := strings.IndexByte(text[start:], '\n')
		if nl < 0 {
			return len(text)
		}
		start += nl + 1
	}

	units := 0
	for i, r := range text[start:] {
		if r == '\n' || units >= p.Character {
			return start + i
		}
		units += utf16.RuneLen(r)
	}
	return len(text)
}

func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

func overlaps(a, b Range) bool {
	return !before(a.End, b.Start) && !before(b.End, a.Start)
}

func before(a, b Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}
