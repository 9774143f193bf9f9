package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
)

const (
	defaultOllamaEmbeddingModel = "all-minilm"
	defaultOllamaBaseURL        = "http://localhost:11434"
)

type ollamaConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type ollamaEncoder struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func init() {
	Register("ollama", createOllamaEncoder)
}

func createOllamaEncoder(args interface{}) (Encoder, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOllamaEmbeddingModel
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ollamaEncoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (e *ollamaEncoder) ModelName() string {
	return e.model
}

func (e *ollamaEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.model, Input: texts}
	if err := httpjson.Post(ctx, e.client, e.baseURL+"/api/embed", nil, req, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return out.Embeddings, nil
}
