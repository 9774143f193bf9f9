package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Encoder turns a batch of texts into vectors, one per text, in input order.
type Encoder interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

type EncoderFactory func(args interface{}) (Encoder, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]EncoderFactory{}
)

func Register(name string, factory EncoderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewEncoder(name string, args interface{}) (Encoder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding encoder: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode encoder config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode encoder config: %w", err)
	}
	return nil
}
