package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/embedcache"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

const DefaultDimension = 384

// LoadFunc creates the encoder. It is called on first use and again after a
// failed attempt.
type LoadFunc func(ctx context.Context) (Encoder, error)

type Service struct {
	load      LoadFunc
	cache     embedcache.Cache
	dimension int

	mu      sync.Mutex
	encoder Encoder
}

// NewService builds a service; cache may be nil.
func NewService(load LoadFunc, cache embedcache.Cache, dimension int) *Service {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Service{load: load, cache: cache, dimension: dimension}
}

// LoadFromConfig returns a LoadFunc building the configured encoder.
func LoadFromConfig(cfg config.EmbeddingConfig) LoadFunc {
	return func(ctx context.Context) (Encoder, error) {
		return NewEncoder(cfg.Type, cfg.Data)
	}
}

func (s *Service) Dimension() int {
	return s.dimension
}

func (s *Service) getEncoder(ctx context.Context) (Encoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encoder != nil {
		return s.encoder, nil
	}
	enc, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedding encoder: %w", err)
	}
	logutil.GetLogger(ctx).Info("embedding encoder loaded", zap.String("model", enc.ModelName()))
	s.encoder = enc
	return enc, nil
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// EmbedBatch returns one vector per text in input order. Cached texts are not
// re-encoded; all misses go to the encoder in a single call and are written
// to the cache before returning.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, text := range texts {
		if s.cache != nil {
			if vec, ok := s.cache.Get(ctx, text); ok && len(vec) == s.dimension {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	logger := logutil.GetLogger(ctx)
	if len(missTexts) == 0 {
		logger.Debug("embedding batch served from cache", zap.Int("count", len(texts)))
		return out, nil
	}
	enc, err := s.getEncoder(ctx)
	if err != nil {
		return nil, err
	}
	vecs, err := enc.EncodeBatch(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d texts: %w", len(vecs), len(missTexts), appErr.ErrInternal)
	}
	for i, vec := range vecs {
		if len(vec) != s.dimension {
			return nil, fmt.Errorf("embedding dimension %d, want %d: %w", len(vec), s.dimension, appErr.ErrInvalid)
		}
		out[missIdx[i]] = vec
		if s.cache != nil {
			s.cache.Set(ctx, missTexts[i], vec)
		}
	}
	logger.Info("embedding batch encoded",
		zap.Int("count", len(texts)),
		zap.Int("cache_hits", len(texts)-len(missTexts)),
		zap.Int("encoded", len(missTexts)),
	)
	return out, nil
}
