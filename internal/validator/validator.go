// Package validator keeps generated text within a generation mode's word limit.
package validator

import (
	"context"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/model"
)

var sentenceBreak = regexp.MustCompile(`[.!?]\s+`)

// CountWords counts whitespace separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ResolveMode maps a mode name to its limits. Unknown or empty names fall
// back to the deep mode.
func ResolveMode(name string) model.GenerationMode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case model.ModeQuick:
		return model.QuickMode
	case model.ModeDeep:
		return model.DeepMode
	default:
		return model.DeepMode
	}
}

// EnforceLimit returns text unchanged when it fits mode.MaxWords. Otherwise
// it keeps the longest run of leading sentences that fits and reports the
// trimmed word count.
func EnforceLimit(ctx context.Context, text string, mode model.GenerationMode) (string, int, bool) {
	logger := logutil.GetLogger(ctx)
	count := CountWords(text)
	if mode.MaxWords <= 0 || count <= mode.MaxWords {
		logger.Debug("text within word limit", zap.String("mode", mode.Name), zap.Int("words", count), zap.Int("max", mode.MaxWords))
		return text, count, false
	}
	trimmed := trimAtSentence(text, mode.MaxWords)
	final := CountWords(trimmed)
	logger.Warn("text exceeded word limit, trimmed",
		zap.String("mode", mode.Name),
		zap.Int("words", count),
		zap.Int("max", mode.MaxWords),
		zap.Int("trimmed_words", final),
	)
	return trimmed, final, true
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		// keep the punctuation, drop the whitespace
		out = append(out, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func trimAtSentence(text string, maxWords int) string {
	var (
		kept  []string
		count int
	)
	for _, sentence := range splitSentences(text) {
		n := CountWords(sentence)
		if count+n > maxWords {
			break
		}
		kept = append(kept, sentence)
		count += n
	}
	if len(kept) == 0 {
		// the first sentence alone is too long; cut it at the word limit
		kept = []string{strings.Join(strings.Fields(text)[:maxWords], " ")}
	}
	result := strings.TrimSpace(strings.Join(kept, " "))
	if result != "" && !strings.HasSuffix(result, ".") && !strings.HasSuffix(result, "!") && !strings.HasSuffix(result, "?") {
		result += "."
	}
	return result
}
