package embedcache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/filestore"
	"github.com/xxxsen/ratrans/internal/model"
)

func newFileCache(t *testing.T) (*FileCache, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := filestore.NewLocal(dir)
	require.NoError(t, err)
	return NewFileCache(store), dir
}

func TestKey(t *testing.T) {
	// sha256("hello") = 2cf24dba5fb0a30e26e83b2ac5b9e29e...
	require.Equal(t, "2cf24dba5fb0a30e", Key("hello"))
	require.Len(t, Key(""), 16)
	require.NotEqual(t, Key("hello"), Key("hello "))
}

func TestFileCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, dir := newFileCache(t)

	_, ok := cache.Get(ctx, "வணக்கம் world")
	require.False(t, ok)

	vec := []float32{0.1, -0.2, 0.3}
	cache.Set(ctx, "வணக்கம் world", vec)

	got, ok := cache.Get(ctx, "வணக்கம் world")
	require.True(t, ok)
	require.Equal(t, vec, got)

	raw, err := os.ReadFile(filepath.Join(dir, Key("வணக்கம் world")+".json"))
	require.NoError(t, err)
	var entry model.CacheEntry
	require.NoError(t, json.Unmarshal(raw, &entry))
	require.Equal(t, Key("வணக்கம் world"), entry.Hash)
	require.Equal(t, 13, entry.TextLength)
	require.Equal(t, 3, entry.EmbeddingDim)
}

func TestFileCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	cache, dir := newFileCache(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, Key("broken")+".json"), []byte("{not json"), 0o644))

	_, ok := cache.Get(ctx, "broken")
	require.False(t, ok)

	cache.Set(ctx, "broken", []float32{1})
	got, ok := cache.Get(ctx, "broken")
	require.True(t, ok)
	require.Equal(t, []float32{1}, got)
}

func TestFileCache_StatsAndClear(t *testing.T) {
	ctx := context.Background()
	cache, dir := newFileCache(t)
	cache.Set(ctx, "a", []float32{1, 2})
	cache.Set(ctx, "b", []float32{3, 4})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	st, err := cache.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.Entries)
	require.Greater(t, st.TotalSizeBytes, int64(0))
	require.Equal(t, dir, st.Location)

	removed, err := cache.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	st, err = cache.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, st.Entries)
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
}

type countingCache struct {
	Cache
	gets int
}

func (c *countingCache) Get(ctx context.Context, text string) ([]float32, bool) {
	c.gets++
	return c.Cache.Get(ctx, text)
}

func TestLRU_ServesRepeatedReadsInProcess(t *testing.T) {
	ctx := context.Background()
	fc, _ := newFileCache(t)
	inner := &countingCache{Cache: fc}
	cache := WrapLRU(inner, 16, time.Minute)

	cache.Set(ctx, "text", []float32{1, 2, 3})
	got, ok := cache.Get(ctx, "text")
	require.True(t, ok)
	require.Equal(t, []float32{1, 2, 3}, got)
	require.Equal(t, 0, inner.gets)

	got[0] = 99
	again, ok := cache.Get(ctx, "text")
	require.True(t, ok)
	require.Equal(t, float32(1), again[0])

	removed, err := cache.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	_, ok = cache.Get(ctx, "text")
	require.False(t, ok)
	require.Equal(t, 1, inner.gets)
}

func TestWrapLRU_Disabled(t *testing.T) {
	fc, _ := newFileCache(t)
	require.Same(t, fc, WrapLRU(fc, 0, time.Minute))
}

func TestNew(t *testing.T) {
	cache, err := New(config.EmbedCacheConfig{Disabled: true})
	require.NoError(t, err)
	require.Nil(t, cache)

	cache, err = New(config.EmbedCacheConfig{
		Store:         config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}},
		LRUSize:       8,
		LRUTTLSeconds: 60,
	})
	require.NoError(t, err)
	cache.Set(context.Background(), "x", []float32{5})
	got, ok := cache.Get(context.Background(), "x")
	require.True(t, ok)
	require.Equal(t, []float32{5}, got)
}

type readOnlyStore struct {
	filestore.Store
}

func (readOnlyStore) Put(ctx context.Context, key string, data []byte) error {
	return errors.New("read-only file system")
}

func TestFileCache_WriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	local, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	cache := NewFileCache(readOnlyStore{Store: local})

	require.NotPanics(t, func() { cache.Set(ctx, "text", []float32{1, 2}) })
	_, ok := cache.Get(ctx, "text")
	require.False(t, ok)
}
