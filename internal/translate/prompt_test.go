package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

func TestLanguages(t *testing.T) {
	langs := SupportedLanguages()
	require.Len(t, langs, 2)
	require.Equal(t, "hi", langs[0].Code)
	require.Equal(t, "ta", langs[1].Code)

	ta, ok := LookupLanguage(" TA ")
	require.True(t, ok)
	require.Equal(t, StrategyStrict, ta.Strategy)
	hi, ok := LookupLanguage("hi")
	require.True(t, ok)
	require.Equal(t, StrategyLiterary, hi.Strategy)
	_, ok = LookupLanguage("de")
	require.False(t, ok)
}

func TestValidateLanguage(t *testing.T) {
	require.NoError(t, ValidateLanguage("hi"))
	require.NoError(t, ValidateLanguage("Ta"))
	err := ValidateLanguage("de")
	require.True(t, appErr.IsInvalid(err))
	require.Contains(t, err.Error(), "unsupported language: de. Supported: hi, ta")
}

func TestBuildPrompt(t *testing.T) {
	hi, _ := LookupLanguage("hi")
	p := BuildPrompt("You are brave.", hi, nil)
	require.Contains(t, p, "Translate the following English text to Hindi (हिन्दी).")
	require.Contains(t, p, "तुम or आप")
	require.True(t, strings.HasSuffix(p, "ORIGINAL ENGLISH TEXT TO TRANSLATE:\nYou are brave.\n\nHINDI TRANSLATION:"))
	require.NotContains(t, p, "TRANSLATION MEMORY")
	require.NotContains(t, p, "FIDELITY PROTOCOL")

	long := strings.Repeat("a", 160)
	matches := []model.MemoryMatch{
		{MemoryRecord: model.MemoryRecord{ChunkText: "You are strong.", Translations: map[string]string{"hi": "तुम मज़बूत हो।"}}},
		{MemoryRecord: model.MemoryRecord{ChunkText: long}},
		{MemoryRecord: model.MemoryRecord{ChunkText: "third", Translations: map[string]string{"ta": "மூன்று"}}},
		{MemoryRecord: model.MemoryRecord{ChunkText: "fourth"}},
	}
	p = BuildPrompt("You are brave.", hi, matches)
	require.Contains(t, p, "1. ENGLISH: You are strong.\n   HINDI: तुम मज़बूत हो।")
	require.Contains(t, p, "2. "+strings.Repeat("a", 150)+"... (no Hindi translation yet)")
	require.Contains(t, p, "3. third (no Hindi translation yet)")
	require.NotContains(t, p, "fourth")

	ta, _ := LookupLanguage("ta")
	require.Contains(t, BuildPrompt("x", ta, nil), "FIDELITY PROTOCOL")
}

func TestStripEmotionalTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"You are [pause] enough.", "You are enough."},
		{"[breathe] Breathe in [STILL]", "Breathe in"},
		{"[slow]Slowly[/slow] you [rise]rise[/rise] [pause].", "Slowly you rise."},
		{"Line one [echo]echo[/echo]\n\n[gentle]Line two[/gentle]", "Line one echo\n\nLine two"},
		{"keep [brackets] that are not tags", "keep [brackets] that are not tags"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StripEmotionalTags(tt.in), tt.in)
	}
}

func TestCleanOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  तुम साहसी हो।  ", want: "तुम साहसी हो।"},
		{name: "preamble", in: "Here is the translation:\nतुम साहसी हो।", want: "तुम साहसी हो।"},
		{name: "preamble inline", in: "Here's your Hindi translation: तुम साहसी हो।", want: "तुम साहसी हो।"},
		{name: "label", in: "Tamil translation: நீ தைரியமானவன்.", want: "நீ தைரியமானவன்."},
		{name: "echoed heading", in: "HINDI TRANSLATION (natural):\nतुम साहसी हो।", want: "तुम साहसी हो।"},
		{name: "note line", in: "तुम साहसी हो।\n\nNote: I kept the second person.", want: "तुम साहसी हो।"},
		{name: "parenthetical", in: "तुम साहसी हो (literally: you are brave)।", want: "तुम साहसी हो।"},
		{name: "code fence", in: "```\nतुम साहसी हो।\n```", want: "तुम साहसी हो।"},
		{name: "quotes", in: "“तुम साहसी हो।”", want: "तुम साहसी हो।"},
		{name: "inner quotes kept", in: `"a" and "b"`, want: `"a" and "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CleanOutput(tt.in))
		})
	}
}
