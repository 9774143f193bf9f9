package model

type GenerationMode struct {
	Name           string `json:"name"`
	TargetWords    int    `json:"target_words"`
	MinWords       int    `json:"min_words"`
	MaxWords       int    `json:"max_words"`
	TargetDuration string `json:"target_duration"`
	Instruction    string `json:"instruction"`
}

const (
	ModeQuick = "quick"
	ModeDeep  = "deep"
)

var (
	QuickMode = GenerationMode{
		Name:           ModeQuick,
		TargetWords:    225,
		MinWords:       200,
		MaxWords:       250,
		TargetDuration: "2 minutes",
		Instruction:    "concise, focused, and impactful",
	}
	DeepMode = GenerationMode{
		Name:           ModeDeep,
		TargetWords:    450,
		MinWords:       400,
		MaxWords:       500,
		TargetDuration: "4 minutes",
		Instruction:    "immersive, detailed, and meditative",
	}
)
