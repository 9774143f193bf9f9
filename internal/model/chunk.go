package model

type Chunk struct {
	Text         string `json:"text"`
	Position     int    `json:"position"`
	SourceLength int    `json:"source_length"`
}

type Window struct {
	Chunk
	SentenceStart int `json:"sentence_start"`
	SentenceEnd   int `json:"sentence_end"`
}

func ChunkTexts(chunks []Chunk) []string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	return texts
}
