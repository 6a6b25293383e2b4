// Package checks holds the checks shipped with tmplcheck.
package checks

import (
	"sort"

	"github.com/walteh/tmplcheck/pkg/check"
)

var registry = map[string]func() check.Check{
	SpaceInsideBracesName: func() check.Check { return NewSpaceInsideBraces() },
	RemoteAssetName:       func() check.Check { return NewRemoteAsset() },
}

// Names returns the names of every known check, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a fresh instance of the named check.
func New(name string) (check.Check, bool) {
	fn, ok := registry[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// All returns fresh instances of every known check in name order. Every call returns new
// instances, so the result can serve as a per file check factory.
func All() []check.Check {
	var out []check.Check
	for _, name := range Names() {
		c, _ := New(name)
		out = append(out, c)
	}
	return out
}
