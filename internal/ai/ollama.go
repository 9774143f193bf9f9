package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "gemma3:1b"
)

type ollamaConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRetries     *int   `json:"max_retries"`
	RetryDelayMs   int    `json:"retry_delay_ms"`
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	NumPredict    int     `json:"num_predict"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Message *chatMessage `json:"message"`
}

type ollamaProvider struct {
	name     string
	endpoint string
	model    string
	retry    retryPolicy
	client   *http.Client
}

func init() {
	Register("ollama", createOllamaProvider)
}

func createOllamaProvider(name string, args interface{}) (Provider, error) {
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
		model = defaultOllamaModel
	}
	// local models on slow machines can take minutes
	timeout := 300 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &ollamaProvider{
		name:     name,
		endpoint: strings.TrimRight(baseURL, "/") + "/api/chat",
		model:    model,
		retry:    newRetryPolicy(cfg.MaxRetries, cfg.RetryDelayMs),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (p *ollamaProvider) Name() string {
	return p.name
}

// Configured is always true; a stopped daemon shows up as a request failure.
func (p *ollamaProvider) Configured() bool {
	return true
}

func (p *ollamaProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	req := ollamaChatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Options: ollamaOptions{
			Temperature:   0.3,
			RepeatPenalty: 1.2,
			TopP:          0.9,
			TopK:          40,
			NumPredict:    4000,
		},
	}
	var out ollamaChatResponse
	err := p.retry.do(ctx, p.name, func(ctx context.Context) error {
		return httpjson.Post(ctx, p.client, p.endpoint, nil, req, &out)
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}
	if out.Message == nil {
		return "", fmt.Errorf("%s response has no message", p.name)
	}
	return strings.TrimSpace(out.Message.Content), nil
}
