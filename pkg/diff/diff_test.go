package diff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walteh/tmplcheck/pkg/diff"
)

func TestSource(t *testing.T) {
	got := diff.Source("a.liquid", "<p>\n{{x}}\n</p>\n", "<p>\n{{ x }}\n</p>\n")
	assert.Equal(t, "--- a.liquid\n+++ a.liquid (fixed)\n-{{x}}\n+{{ x }}\n", got)
}

func TestSourceEqual(t *testing.T) {
	assert.Empty(t, diff.Source("a.liquid", "same\n", "same\n"))
}
