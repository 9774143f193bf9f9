package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
)

const (
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
)

type openAIConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type openAIEncoder struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

type openAIEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func init() {
	Register("openai", createOpenAIEncoder)
}

func createOpenAIEncoder(args interface{}) (Encoder, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key: %w", appErr.ErrNotConfigured)
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openAIEncoder{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (e *openAIEncoder) ModelName() string {
	return e.model
}

func (e *openAIEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out openAIEmbedResponse
	req := openAIEmbedRequest{Model: e.model, Input: texts, Dimensions: e.dimensions}
	if err := httpjson.Post(ctx, e.client, e.baseURL+"/embeddings", httpjson.BearerAuth(e.apiKey), req, &out); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	res := make([][]float32, 0, len(out.Data))
	for _, item := range out.Data {
		res = append(res, item.Embedding)
	}
	return res, nil
}
