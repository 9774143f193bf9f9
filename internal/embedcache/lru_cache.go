package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// WrapLRU puts an in-process LRU in front of next. A non-positive size or
// ttl disables the layer.
func WrapLRU(next Cache, size int, ttl time.Duration) Cache {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruCache{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruCache struct {
	next  Cache
	cache *expirable.LRU[string, []float32]
}

func (l *lruCache) Get(ctx context.Context, text string) ([]float32, bool) {
	key := Key(text)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("hash", key))
		return cloneEmbedding(cached), true
	}
	res, ok := l.next.Get(ctx, text)
	if !ok {
		return nil, false
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, true
}

func (l *lruCache) Set(ctx context.Context, text string, embedding []float32) {
	l.cache.Add(Key(text), cloneEmbedding(embedding))
	l.next.Set(ctx, text, embedding)
}

func (l *lruCache) Clear(ctx context.Context) (int, error) {
	l.cache.Purge()
	return l.next.Clear(ctx)
}

func (l *lruCache) Stats(ctx context.Context) (Stats, error) {
	return l.next.Stats(ctx)
}
