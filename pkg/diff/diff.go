// Package diff renders line diffs for humans.
package diff

import (
	"strings"

	"github.com/kylelemons/godebug/diff"
)

// Source returns the line diff turning before into after under a header naming path.
// Equal sources give an empty string.
func Source(path, before, after string) string {
	if before == after {
		return ""
	}

	var b strings.Builder
	b.WriteString("--- " + path + "\n")
	b.WriteString("+++ " + path + " (fixed)\n")
	for _, chunk := range diff.DiffChunks(lines(before), lines(after)) {
		for _, l := range chunk.Deleted {
			b.WriteString("-" + l + "\n")
		}
		for _, l := range chunk.Added {
			b.WriteString("+" + l + "\n")
		}
	}
	return b.String()
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
