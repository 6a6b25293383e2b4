package position

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/apparentlymart/go-textseg/v13/textseg"
)

// Position locates a span of the original source.
// Rows and columns are 1-indexed, columns count grapheme clusters. Indexes are byte offsets,
// EndIndex is exclusive.
type Position struct {
	StartIndex  int
	EndIndex    int
	StartRow    int
	StartColumn int
	EndRow      int
	EndColumn   int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", p.StartRow, p.StartColumn, p.EndRow, p.EndColumn)
}

// Length returns the byte length of the span.
func (p Position) Length() int {
	return p.EndIndex - p.StartIndex
}

// Offset converts a 0-indexed row and grapheme column to a byte offset in text.
// Rows past the end map to len(text), columns past the end of the line map to the line end.
func Offset(text string, row, col int) int {
	start := 0
	for i := 0; i < row; i++ {
		nl := strings.IndexByte(text[start:], '\n')
		if nl < 0 {
			return len(text)
		}
		start += nl + 1
	}

	end := len(text)
	if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
		end = start + nl
	}

	offset := start
	for i := 0; i < col && offset < end; i++ {
		advance, _, err := textseg.ScanGraphemeClusters([]byte(text[offset:end]), true)
		if err != nil || advance == 0 {
			break
		}
		offset += advance
	}
	return offset
}

// RowColumn converts a byte offset to a 0-indexed row and grapheme column.
func RowColumn(text string, offset int) (row, col int) {
	if offset > len(text) {
		offset = len(text)
	}
	if offset <= 0 {
		return 0, 0
	}

	row = strings.Count(text[:offset], "\n")
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	return row, graphemes(text[lineStart:offset])
}

// Resolve locates markup in text at or after the start of the 1-indexed line.
// When markup cannot be found there the span starts at the beginning of the line.
// The end is derived from the markup itself.
func Resolve(text, markup string, line int) Position {
	if line < 1 {
		line = 1
	}
	start := Offset(text, line-1, 0)
	if markup != "" {
		if i := strings.Index(text[start:], markup); i >= 0 {
			start += i
		}
	}
	return span(text, start, markup)
}

// At returns the Position of the byte range [start, start+length) of text.
func At(text string, start, length int) Position {
	if start < 0 {
		start = 0
	}
	if start > len(text) {
		start = len(text)
	}
	end := start + length
	if end > len(text) {
		end = len(text)
	}
	return span(text, start, text[start:end])
}

func span(text string, start int, markup string) Position {
	row, col := RowColumn(text, start)

	endRow, endCol := row, col+graphemes(markup)
	if n := strings.Count(markup, "\n"); n > 0 {
		endRow = row + n
		endCol = graphemes(markup[strings.LastIndexByte(markup, '\n')+1:])
	}

	return Position{
		StartIndex:  start,
		EndIndex:    start + len(markup),
		StartRow:    row + 1,
		StartColumn: col + 1,
		EndRow:      endRow + 1,
		EndColumn:   endCol + 1,
	}
}

func graphemes(s string) int {
	if s == "" {
		return 0
	}
	n, err := textseg.TokenCount([]byte(s), bufio.SplitFunc(textseg.ScanGraphemeClusters))
	if err != nil {
		return len([]rune(s))
	}
	return n
}
