package model

type CacheEntry struct {
	Hash         string    `json:"hash"`
	TextLength   int       `json:"text_length"`
	EmbeddingDim int       `json:"embedding_dim"`
	Embedding    []float32 `json:"embedding"`
}
