package translate

import (
	"fmt"
	"sort"
	"strings"

	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

// Strategy selects how much freedom the model gets when rendering a language.
type Strategy string

const (
	// StrategyStrict asks for sentence-by-sentence fidelity.
	StrategyStrict Strategy = "strict"
	// StrategyLiterary allows idiomatic restructuring as long as meaning and
	// tone survive.
	StrategyLiterary Strategy = "literary"
)

type Language struct {
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	NativeName      string   `json:"native_name"`
	Instruction     string   `json:"instruction"`
	PronounGuidance string   `json:"pronoun_guidance"`
	Strategy        Strategy `json:"strategy"`
	SystemPrompt    string   `json:"-"`
}

var languages = map[string]Language{
	"ta": {
		Code:            "ta",
		Name:            "Tamil",
		NativeName:      "தமிழ்",
		Instruction:     "Tamil (தமிழ்)",
		PronounGuidance: "address the reader as நீ or நீங்கள், consistently",
		Strategy:        StrategyStrict,
		SystemPrompt: `You are a professional English to Tamil translator working under a strict fidelity protocol.
Every sentence of the source must appear in the translation, in the same order.
Never add, summarise, explain or omit content.
Never mix English words into the output unless they are names.
Reply with the Tamil translation only.`,
	},
	"hi": {
		Code:            "hi",
		Name:            "Hindi",
		NativeName:      "हिन्दी",
		Instruction:     "Hindi (हिन्दी)",
		PronounGuidance: "address the reader as तुम or आप, consistently",
		Strategy:        StrategyLiterary,
		SystemPrompt: `You are a literary English to Hindi translator.
Write flowing, natural Hindi that a native speaker finds moving, while keeping the meaning and emotional tone of the source.
Reply with the Hindi translation only.`,
	},
}

// LookupLanguage finds a supported language by its code.
func LookupLanguage(code string) (Language, bool) {
	lang, ok := languages[strings.ToLower(strings.TrimSpace(code))]
	return lang, ok
}

// ValidateLanguage returns an ErrInvalid error naming the supported codes when
// code is not one of them.
func ValidateLanguage(code string) error {
	if _, ok := LookupLanguage(code); !ok {
		return fmt.Errorf("unsupported language: %s. Supported: %s: %w", code, supportedCodes(), appErr.ErrInvalid)
	}
	return nil
}

// SupportedLanguages lists the supported languages ordered by code.
func SupportedLanguages() []Language {
	out := make([]Language, 0, len(languages))
	for _, lang := range languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func supportedCodes() string {
	codes := make([]string, 0, len(languages))
	for _, lang := range SupportedLanguages() {
		codes = append(codes, lang.Code)
	}
	return strings.Join(codes, ", ")
}
