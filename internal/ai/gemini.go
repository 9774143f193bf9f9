package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiConfig struct {
	APIKey         string   `json:"api_key"`
	Model          string   `json:"model"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	Temperature    *float64 `json:"temperature"`
	MaxRetries     *int     `json:"max_retries"`
	RetryDelayMs   int      `json:"retry_delay_ms"`
}

type geminiProvider struct {
	name        string
	apiKey      string
	model       string
	timeout     time.Duration
	temperature float32
	retry       retryPolicy

	mu     sync.Mutex
	client *genai.Client
}

func init() {
	Register("gemini", createGeminiProvider)
}

func createGeminiProvider(name string, args interface{}) (Provider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	temperature := float32(0.7)
	if cfg.Temperature != nil {
		temperature = float32(*cfg.Temperature)
	}
	return &geminiProvider{
		name:        name,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		timeout:     timeout,
		temperature: temperature,
		retry:       newRetryPolicy(cfg.MaxRetries, cfg.RetryDelayMs),
	}, nil
}

func (p *geminiProvider) Name() string {
	return p.name
}

func (p *geminiProvider) Configured() bool {
	return p.apiKey != ""
}

func (p *geminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

func (p *geminiProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	if !p.Configured() {
		return "", fmt.Errorf("%s api key: %w", p.name, appErr.ErrNotConfigured)
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	client, err := p.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("%s client: %w", p.name, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	temperature := p.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       &temperature,
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}
	var text string
	err = p.retry.do(ctx, p.name, func(ctx context.Context) error {
		resp, err := client.Models.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}
	return strings.TrimSpace(text), nil
}
