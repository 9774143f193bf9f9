package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/ratrans/internal/config"
)

const DefaultSystemPrompt = "You are a helpful assistant."

// Provider is one text generation backend.
type Provider interface {
	Name() string
	// Configured reports whether the provider has what it needs to be tried,
	// typically its credential.
	Configured() bool
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

type ProviderFactory func(name string, args interface{}) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func Register(typ string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("provider type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Type)
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = key
	}
	return factory(name, cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
