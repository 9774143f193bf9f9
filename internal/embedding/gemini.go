package embedding

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

const defaultGeminiEmbeddingModel = "gemini-embedding-001"

type geminiConfig struct {
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	Dimensions int32  `json:"dimensions"`
	TaskType   string `json:"task_type"`
}

type geminiEncoder struct {
	client     *genai.Client
	model      string
	dimensions int32
	taskType   string
}

func init() {
	Register("gemini", createGeminiEncoder)
}

func createGeminiEncoder(args interface{}) (Encoder, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key: %w", appErr.ErrNotConfigured)
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimension
	}
	taskType := strings.TrimSpace(cfg.TaskType)
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}
	return &geminiEncoder{client: client, model: model, dimensions: dims, taskType: taskType}, nil
}

func (e *geminiEncoder) ModelName() string {
	return e.model
}

func (e *geminiEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	dims := e.dimensions
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             e.taskType,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, item := range resp.Embeddings {
		if item == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, item.Values)
	}
	return out, nil
}
