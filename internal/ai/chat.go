package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
)

// chatConfig is the config section shared by every OpenAI-compatible backend.
type chatConfig struct {
	APIKey         string   `json:"api_key"`
	BaseURL        string   `json:"base_url"`
	Model          string   `json:"model"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	MaxTokens      int      `json:"max_tokens"`
	Temperature    *float64 `json:"temperature"`
	TopP           *float64 `json:"top_p"`
	MaxRetries     *int     `json:"max_retries"`
	RetryDelayMs   int      `json:"retry_delay_ms"`
	// extra headers, used by openrouter for attribution
	Headers map[string]string `json:"headers"`
}

type chatDefaults struct {
	baseURL string
	model   string
	timeout time.Duration
	topP    *float64
	// keyless providers are always configured, e.g. a local gateway
	keyless bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatProvider struct {
	name        string
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	topP        *float64
	headers     map[string]string
	keyless     bool
	retry       retryPolicy
	client      *http.Client
}

func floatPtr(v float64) *float64 {
	return &v
}

func chatFactory(d chatDefaults) ProviderFactory {
	return func(name string, args interface{}) (Provider, error) {
		cfg := &chatConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		return newChatProvider(name, cfg, d), nil
	}
}

func newChatProvider(name string, cfg *chatConfig, d chatDefaults) *chatProvider {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = d.baseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = d.model
	}
	timeout := d.timeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	temperature := 0.7
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	topP := d.topP
	if cfg.TopP != nil {
		topP = cfg.TopP
	}
	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	for k, v := range httpjson.BearerAuth(apiKey) {
		headers[k] = v
	}
	return &chatProvider{
		name:        name,
		endpoint:    strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		headers:     headers,
		keyless:     d.keyless,
		retry:       newRetryPolicy(cfg.MaxRetries, cfg.RetryDelayMs),
		client:      &http.Client{Timeout: timeout},
	}
}

func (p *chatProvider) Name() string {
	return p.name
}

func (p *chatProvider) Configured() bool {
	return p.keyless || p.apiKey != ""
}

func (p *chatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	if !p.Configured() {
		return "", fmt.Errorf("%s api key: %w", p.name, appErr.ErrNotConfigured)
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		TopP:        p.topP,
	}
	var out chatResponse
	err := p.retry.do(ctx, p.name, func(ctx context.Context) error {
		return httpjson.Post(ctx, p.client, p.endpoint, p.headers, req, &out)
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
