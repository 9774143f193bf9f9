package translate

import (
	"regexp"
	"strings"
)

var (
	pointTags   = regexp.MustCompile(`(?i)\[(?:pause|breathe|still)\]`)
	pairedTags  = regexp.MustCompile(`(?i)\[/?(?:whisper|slow|smile|firm|gentle|echo|rise)\]`)
	spaceRun    = regexp.MustCompile(`[ \t]{2,}`)
	spaceBefore = regexp.MustCompile(`[ \t]+([.,!?;:])`)
	blankRun    = regexp.MustCompile(`\n{3,}`)

	artifactPatterns = []*regexp.Regexp{
		regexp.MustCompile("(?m)^\\s*```[\\w-]*\\s*$"),
		regexp.MustCompile(`(?im)^\s*here(?: is|'s) (?:the|your|a)?\s*(?:\p{L}+\s+)?translation[^:\n]*:[ \t]*`),
		regexp.MustCompile(`(?im)^\s*(?:natural\s+)?(?:\p{L}+\s+)?translation(?:\s*\([^)\n]*\))?\s*:[ \t]*`),
		regexp.MustCompile(`(?im)^\s*\(?(?:note|translator'?s? note|translation note)\s*:.*$`),
		regexp.MustCompile(`(?i)[ \t]*\((?:note|translator'?s? note|translation note|literally|lit\.)[^)]*\)`),
	}
)

// StripEmotionalTags removes inline prosody markup such as [pause] or
// [whisper]...[/whisper], keeping the wrapped text.
func StripEmotionalTags(text string) string {
	text = pointTags.ReplaceAllString(text, " ")
	text = pairedTags.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = spaceRun.ReplaceAllString(line, " ")
		line = spaceBefore.ReplaceAllString(line, "$1")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CleanOutput removes preambles, labels and translator notes that models add
// around the translation.
func CleanOutput(text string) string {
	for _, re := range artifactPatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(blankRun.ReplaceAllString(text, "\n\n"))
	return trimQuotes(text)
}

func trimQuotes(text string) string {
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}}
	for _, p := range pairs {
		if len(text) > len(p[0])+len(p[1]) && strings.HasPrefix(text, p[0]) && strings.HasSuffix(text, p[1]) {
			inner := text[len(p[0]) : len(text)-len(p[1])]
			if !strings.Contains(inner, p[0]) && !strings.Contains(inner, p[1]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return text
}
