package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/filestore"
)

// Cache maps text to a previously computed embedding. Failures never surface
// to callers of Get and Set; they degrade to a miss or a skipped write.
type Cache interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Set(ctx context.Context, text string, embedding []float32)
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

type Stats struct {
	Entries        int    `json:"entries"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	Location       string `json:"location"`
}

// New builds the file cache over the configured blob store with the LRU
// layer in front. It returns nil when caching is disabled.
func New(cfg config.EmbedCacheConfig) (Cache, error) {
	if cfg.Disabled {
		return nil, nil
	}
	store, err := filestore.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache store: %w", err)
	}
	return WrapLRU(NewFileCache(store), cfg.LRUSize, time.Duration(cfg.LRUTTLSeconds)*time.Second), nil
}

// Key returns the first 16 hex chars of the SHA-256 of the exact text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
