package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/model"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestCountWords(t *testing.T) {
	require.Equal(t, 0, CountWords(""))
	require.Equal(t, 0, CountWords("  \n\t "))
	require.Equal(t, 3, CountWords("  one\ttwo\n\nthree  "))
}

func TestResolveMode(t *testing.T) {
	require.Equal(t, model.QuickMode, ResolveMode("quick"))
	require.Equal(t, model.QuickMode, ResolveMode(" QUICK "))
	require.Equal(t, model.DeepMode, ResolveMode("deep"))
	require.Equal(t, model.DeepMode, ResolveMode(""))
	require.Equal(t, model.DeepMode, ResolveMode("medium"))
}

func TestEnforceLimit(t *testing.T) {
	mode := model.GenerationMode{Name: "tiny", MaxWords: 6}
	tests := []struct {
		name    string
		in      string
		want    string
		count   int
		trimmed bool
	}{
		{name: "within limit untouched", in: "One two.  Three\nfour", want: "One two.  Three\nfour", count: 4},
		{name: "exactly at limit", in: words(6), want: words(6), count: 6},
		{name: "trim to sentence", in: "One two three. Four five! Six seven eight.", want: "One two three. Four five!", count: 5, trimmed: true},
		{name: "line break inside sentence", in: "One two three\nfour. Five six seven eight nine", want: "One two three\nfour.", count: 4, trimmed: true},
		{name: "question kept", in: "Is it? Yes it is indeed so true", want: "Is it?", count: 2, trimmed: true},
		{name: "first sentence too long", in: "a b c d e f g h. i", want: "a b c d e f.", count: 6, trimmed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, n, trimmed := EnforceLimit(context.Background(), tt.in, mode)
			require.Equal(t, tt.want, out)
			require.Equal(t, tt.count, n)
			require.Equal(t, tt.trimmed, trimmed)
			require.LessOrEqual(t, n, mode.MaxWords)
		})
	}
}

func TestEnforceLimit_BuiltinModes(t *testing.T) {
	sentence := "The quiet river carries every worry far away from me. "
	text := strings.Repeat(sentence, 60)
	for _, mode := range []model.GenerationMode{model.QuickMode, model.DeepMode} {
		out, n, trimmed := EnforceLimit(context.Background(), text, mode)
		require.True(t, trimmed)
		require.LessOrEqual(t, n, mode.MaxWords)
		require.Equal(t, n, CountWords(out))
		require.True(t, strings.HasSuffix(out, "me."))
	}
}
