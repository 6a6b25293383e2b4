package placeholder

import (
	"regexp"
	"strconv"
	"strings"
)

var placeholderRegex = regexp.MustCompile("\x1e[0-9a-z#\n]*\x1e")

// Resolve replaces every placeholder in s with the directive text it stands for.
// Text outside placeholders, and placeholders whose key is not in the table, pass through.
func (t Table) Resolve(s string) string {
	if strings.IndexByte(s, Boundary) < 0 {
		return s
	}
	return placeholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		index, ok := t.index(match)
		if !ok {
			return match
		}
		return t[index]
	})
}

func (t Table) index(placeholder string) (int, bool) {
	key := strings.Trim(strings.ReplaceAll(placeholder, "\n", ""), string(Boundary))
	if i := strings.IndexByte(key, Filler); i >= 0 {
		key = key[:i]
	}
	if key == "" {
		return 0, false
	}
	index, err := strconv.ParseInt(key, 36, 64)
	if err != nil || index < 0 || int(index) >= len(t) {
		return 0, false
	}
	return int(index), true
}

// Resolve is shorthand for e.Table.Resolve.
func (e *Encoded) Resolve(s string) string {
	return e.Table.Resolve(s)
}

// Keys returns the keys of every placeholder found in s, in order.
func (e *Encoded) Keys(s string) []int {
	var keys []int
	for _, match := range placeholderRegex.FindAllString(s, -1) {
		if index, ok := e.Table.index(match); ok {
			keys = append(keys, index)
		}
	}
	return keys
}
