package embedcache

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/filestore"
	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

const entrySuffix = ".json"

// FileCache keeps one JSON blob per text in a blob store.
type FileCache struct {
	store filestore.Store
}

func NewFileCache(store filestore.Store) *FileCache {
	return &FileCache{store: store}
}

func (c *FileCache) Get(ctx context.Context, text string) ([]float32, bool) {
	key := Key(text)
	data, err := c.store.Get(ctx, key+entrySuffix)
	if err != nil {
		if !appErr.IsNotFound(err) {
			logutil.GetLogger(ctx).Warn("read embedding cache entry failed", zap.String("hash", key), zap.Error(err))
		}
		return nil, false
	}
	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logutil.GetLogger(ctx).Warn("decode embedding cache entry failed", zap.String("hash", key), zap.Error(err))
		return nil, false
	}
	if len(entry.Embedding) == 0 {
		return nil, false
	}
	logutil.GetLogger(ctx).Debug("embedding cache hit (file)", zap.String("hash", key))
	return entry.Embedding, true
}

func (c *FileCache) Set(ctx context.Context, text string, embedding []float32) {
	key := Key(text)
	data, err := json.Marshal(&model.CacheEntry{
		Hash:         key,
		TextLength:   utf8.RuneCountInString(text),
		EmbeddingDim: len(embedding),
		Embedding:    embedding,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("encode embedding cache entry failed", zap.String("hash", key), zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, key+entrySuffix, data); err != nil {
		logutil.GetLogger(ctx).Warn("write embedding cache entry failed", zap.String("hash", key), zap.Error(err))
	}
}

// Clear removes every cache entry and returns how many were removed.
func (c *FileCache) Clear(ctx context.Context) (int, error) {
	items, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range items {
		if !strings.HasSuffix(item.Key, entrySuffix) {
			continue
		}
		if err := c.store.Delete(ctx, item.Key); err != nil {
			return removed, err
		}
		removed++
	}
	logutil.GetLogger(ctx).Info("embedding cache cleared", zap.Int("removed", removed))
	return removed, nil
}

func (c *FileCache) Stats(ctx context.Context) (Stats, error) {
	items, err := c.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Location: c.store.Location()}
	for _, item := range items {
		if !strings.HasSuffix(item.Key, entrySuffix) {
			continue
		}
		st.Entries++
		st.TotalSizeBytes += item.Size
	}
	return st, nil
}
