package placeholder_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/liquid"
	"github.com/walteh/tmplcheck/pkg/placeholder"
)

func encode(t *testing.T, src string) *placeholder.Encoded {
	t.Helper()
	spans, err := liquid.Scan(src)
	require.NoError(t, err)
	enc, err := placeholder.Encode(context.Background(), src, spans)
	require.NoError(t, err)
	return enc
}

func newlineOffsets(s string) []int {
	var out []int
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, i)
		}
	}
	return out
}

func TestEncode(t *testing.T) {
	enc := encode(t, `<img src="{{ url }}">`)
	assert.Equal(t, "<img src=\"\x1e0######\x1e\">", enc.Text)
	assert.Equal(t, placeholder.Table{"{{ url }}"}, enc.Table)
}

func TestEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "plain markup", src: "<div class=\"a\">text</div>"},
		{name: "variables and tags", src: "{% if x %}<a href=\"{{ x.url }}\">{{ x.title }}</a>{% endif %}"},
		{name: "multiline directive", src: "<div>\n{% render 'card',\n  a: 1,\n  b: 2\n%}\n</div>\n"},
		{name: "newline right after the open delimiter", src: "{{\nx}}"},
		{name: "duplicates", src: "{{ x }}{{ x }}{{ x }}"},
		{name: "empty directives", src: "{%%}{{}}{{x}}"},
		{name: "multibyte", src: "<p title=\"{{ 'héllo' }}\">ünï</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans, err := liquid.Scan(tt.src)
			require.NoError(t, err)

			enc, err := placeholder.Encode(context.Background(), tt.src, spans)
			require.NoError(t, err)

			assert.Equal(t, len(tt.src), len(enc.Text), "length")
			assert.Equal(t, newlineOffsets(tt.src), newlineOffsets(enc.Text), "newline offsets")
			assert.Equal(t, tt.src, enc.Resolve(enc.Text), "resolve")

			want := []string{}
			for _, span := range spans {
				if span.Len() >= placeholder.MinSpanLength {
					want = append(want, span.Text)
				}
			}
			got := make([]string, 0, len(want))
			for _, key := range enc.Keys(enc.Text) {
				got = append(got, enc.Table[key])
			}
			assert.Equal(t, want, got, "keys resolve to the directives in order")
		})
	}
}

func TestEncodeSkipsEmptyDirectives(t *testing.T) {
	enc := encode(t, "{%%}{{}}")
	assert.Equal(t, "{%%}{{}}", enc.Text)
	assert.Empty(t, enc.Table)
}

func TestEncodeKeysAreBase36(t *testing.T) {
	src := strings.Repeat("{{ x }}", 40)
	enc := encode(t, src)

	require.Len(t, enc.Table, 40)
	assert.Equal(t, "\x1e10###\x1e", enc.Text[36*7:37*7])
	assert.Equal(t, src, enc.Resolve(enc.Text))
}

func TestEncodeLongSpanFollowedByShortGap(t *testing.T) {
	long := "{{ " + strings.Repeat("x", 5994) + " }}"
	require.Len(t, long, 6000)
	src := long + "ab" + "{{ y }}" + "<p>"

	enc := encode(t, src)

	assert.Equal(t, byte(placeholder.Boundary), enc.Text[0])
	assert.Equal(t, byte(placeholder.Boundary), enc.Text[5999])
	assert.Equal(t, "ab", enc.Text[6000:6002])
	assert.Equal(t, "\x1e1####\x1e<p>", enc.Text[6002:])
	assert.Equal(t, src, enc.Resolve(enc.Text))
}

func TestEncodeKeyOverflow(t *testing.T) {
	// 36*36 directives use every two character key, the next one needs three.
	src := strings.Repeat("{{ x }}", 36*36) + "{{\n\n\n}}"

	spans, err := liquid.Scan(src)
	require.NoError(t, err)

	_, err = placeholder.Encode(context.Background(), src, spans)
	require.Error(t, err)
	assert.True(t, errors.Is(err, placeholder.ErrKeyOverflow))
}

func TestEncodeRejectsBadSpans(t *testing.T) {
	src := "{{ a }}{{ b }}"
	spans := []liquid.Span{
		{Start: 7, End: 14, Text: "{{ b }}"},
		{Start: 0, End: 7, Text: "{{ a }}"},
	}

	_, err := placeholder.Encode(context.Background(), src, spans)
	assert.True(t, errors.Is(err, placeholder.ErrSpanOrder))

	_, err = placeholder.Encode(context.Background(), src, []liquid.Span{{Start: 10, End: 20}})
	assert.True(t, errors.Is(err, placeholder.ErrSpanOrder))
}

func TestEncodeRejectsReservedByte(t *testing.T) {
	_, err := placeholder.Encode(context.Background(), "a\x1eb", nil)
	assert.True(t, errors.Is(err, placeholder.ErrReservedByte))
}

func TestResolvePassesThroughUnknownKeys(t *testing.T) {
	table := placeholder.Table{"{{ a }}"}
	assert.Equal(t, "x \x1e5###\x1e y", table.Resolve("x \x1e5###\x1e y"))
	assert.Equal(t, "x {{ a }} y", table.Resolve("x \x1e0###\x1e y"))
	assert.Equal(t, "plain", table.Resolve("plain"))
}
