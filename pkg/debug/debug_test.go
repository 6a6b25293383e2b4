package debug_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/walteh/tmplcheck/pkg/debug"
)

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		name string
		pkg  string
		fn   string
	}{
		{name: "github.com/walteh/tmplcheck/pkg/check.NewEngine", pkg: "github.com/walteh/tmplcheck/pkg/check", fn: "NewEngine"},
		{name: "github.com/walteh/tmplcheck/pkg/check.(*Engine).Dispatch", pkg: "github.com/walteh/tmplcheck/pkg/check", fn: "(*Engine).Dispatch"},
		{name: "main.main", pkg: "main", fn: "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, fn := debug.SplitFuncName(tt.name)
			assert.Equal(t, tt.pkg, pkg)
			assert.Equal(t, tt.fn, fn)
		})
	}
}

func TestFormatCaller(t *testing.T) {
	assert.Equal(t, "pkg/check:engine.go:42", debug.FormatCaller("pkg/check", "/src/pkg/check/engine.go", 42, false))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(&buf, zerolog.InfoLevel, false)

	logger.Debug().Msg("hidden")
	logger.Info().Str("template", "a.liquid").Msg("analyzing")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "analyzing")
	assert.Contains(t, out, "template=a.liquid")
	assert.NotContains(t, out, "caller=")
}

func TestNewLoggerAddsCallerAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(&buf, zerolog.DebugLevel, false)

	logger.Debug().Msg("here")
	assert.Contains(t, buf.String(), "debug_test.go")
}
