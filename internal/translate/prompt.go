package translate

import (
	"fmt"
	"strings"

	"github.com/xxxsen/ratrans/internal/model"
)

const (
	maxMemoryExamples  = 3
	memorySourcePrefix = 100
	memoryTargetPrefix = 100
	memoryUntranslated = 150
)

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func memorySection(lang Language, matches []model.MemoryMatch) string {
	if len(matches) == 0 {
		return ""
	}
	if len(matches) > maxMemoryExamples {
		matches = matches[:maxMemoryExamples]
	}
	upper := strings.ToUpper(lang.Name)
	var b strings.Builder
	b.WriteString("\n\nTRANSLATION MEMORY (use these as reference for consistent terminology):\n")
	for i, m := range matches {
		if tr, ok := m.Translation(lang.Code); ok {
			fmt.Fprintf(&b, "%d. ENGLISH: %s\n", i+1, truncateRunes(m.ChunkText, memorySourcePrefix))
			fmt.Fprintf(&b, "   %s: %s\n\n", upper, truncateRunes(tr, memoryTargetPrefix))
			continue
		}
		fmt.Fprintf(&b, "%d. %s (no %s translation yet)\n", i+1, truncateRunes(m.ChunkText, memoryUntranslated), lang.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func strictProtocol(lang Language) string {
	if lang.Strategy != StrategyStrict {
		return ""
	}
	return fmt.Sprintf(`

FIDELITY PROTOCOL:
- Translate sentence by sentence; the output has exactly as many sentences as the source
- Do NOT merge, split, reorder or drop sentences
- Keep names, numbers and personal details exactly as written
- Use only %s script except for names`, lang.Name)
}

// BuildPrompt assembles the user prompt for translating one unit. Retrieved
// memory records are shown as terminology examples.
func BuildPrompt(source string, lang Language, matches []model.MemoryMatch) string {
	upper := strings.ToUpper(lang.Name)
	prompt := fmt.Sprintf(`You are an expert translator with deep knowledge of %[1]s culture and expressions.

TASK: Translate the following English text to %[2]s.

CRITICAL TRANSLATION PRINCIPLES:
1. PRESERVE MEANING AND EMOTIONAL TONE: the translation must carry the same emotional weight as the original
2. USE NATURAL %[3]s: write as a native speaker would, not word for word
3. AVOID LITERAL TRANSLATION: capture the essence and spirit of each sentence
4. KEEP SECOND-PERSON ADDRESS: %[4]s

SPECIFIC RULES:
- Do NOT simplify or dilute the message
- Do NOT add explanatory phrases, notes or meta-commentary
- DO preserve all personal details (names, achievements, goals) exactly
- Output ONLY the translation (no headers, labels, or explanations)%[5]s%[6]s

ORIGINAL ENGLISH TEXT TO TRANSLATE:
%[7]s

%[3]s TRANSLATION:`,
		lang.Name, lang.Instruction, upper, lang.PronounGuidance,
		strictProtocol(lang), memorySection(lang, matches), source)
	return strings.TrimSpace(prompt)
}
