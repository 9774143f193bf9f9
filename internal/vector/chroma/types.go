package chroma

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chromaCreateRequest struct {
	Name        string         `json:"name"`
	GetOrCreate bool           `json:"get_or_create"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type chromaUpsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
	Documents  []string         `json:"documents"`
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float32        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Documents [][]string         `json:"documents"`
}

type chromaGetRequest struct {
	Where   map[string]any `json:"where,omitempty"`
	Include []string       `json:"include"`
}

type chromaGetResponse struct {
	IDs []string `json:"ids"`
}

type chromaDeleteRequest struct {
	IDs []string `json:"ids"`
}
