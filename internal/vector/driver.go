// Package vector defines the similarity index used for translation memory.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/model"
)

// Record is a memory record together with its embedding.
type Record struct {
	model.MemoryRecord
	Embedding []float32
}

// Filter restricts queries and deletes. The zero value matches everything.
type Filter struct {
	Username string
}

func (f Filter) Empty() bool {
	return f.Username == ""
}

// Driver stores records and answers nearest-neighbour queries by L2 distance.
type Driver interface {
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to topK matches ordered by ascending distance.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]model.MemoryMatch, error)
	// Delete removes matching records and returns how many were removed.
	Delete(ctx context.Context, filter Filter) (int, error)
	Count(ctx context.Context) (int, error)
	Location() string
	Close() error
}

// Factory builds a driver from its decoded config section.
type Factory func(args interface{}, dimension int) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorConfig, dimension int) (Driver, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector driver: %s", cfg.Type)
	}
	return factory(cfg.Data, dimension)
}

// DecodeConfig round-trips a config section through JSON into dst.
func DecodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector config: %w", err)
	}
	return nil
}

// L2 is the Euclidean distance between two vectors of equal length.
func L2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func EncodeTranslations(t map[string]string) (string, error) {
	if len(t) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeTranslations(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
