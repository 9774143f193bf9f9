package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
)

const (
	defaultHFEmbeddingModel = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"
	defaultHFInferenceURL   = "https://router.huggingface.co/hf-inference/models"
)

type huggingFaceConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type huggingFaceEncoder struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type huggingFaceRequest struct {
	Inputs  []string               `json:"inputs"`
	Options map[string]interface{} `json:"options,omitempty"`
}

func init() {
	Register("huggingface", createHuggingFaceEncoder)
}

func createHuggingFaceEncoder(args interface{}) (Encoder, error) {
	cfg := &huggingFaceConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("huggingface api key: %w", appErr.ErrNotConfigured)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultHFEmbeddingModel
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultHFInferenceURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &huggingFaceEncoder{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (e *huggingFaceEncoder) ModelName() string {
	return e.model
}

func (e *huggingFaceEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	endpoint := e.baseURL + "/" + e.model + "/pipeline/feature-extraction"
	var out [][]float32
	req := huggingFaceRequest{
		Inputs:  texts,
		Options: map[string]interface{}{"wait_for_model": true},
	}
	if err := httpjson.Post(ctx, e.client, endpoint, httpjson.BearerAuth(e.apiKey), req, &out); err != nil {
		return nil, fmt.Errorf("huggingface feature extraction: %w", err)
	}
	return out, nil
}
