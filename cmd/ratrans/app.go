package main

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/ai"
	"github.com/xxxsen/ratrans/internal/chunker"
	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/embedcache"
	"github.com/xxxsen/ratrans/internal/embedding"
	"github.com/xxxsen/ratrans/internal/memory"
	"github.com/xxxsen/ratrans/internal/translate"
)

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Debug("config loaded", zap.String("config", path))
	return cfg, nil
}

type app struct {
	cfg       *config.Config
	cache     embedcache.Cache
	embedder  *embedding.Service
	memory    *memory.Store
	providers *ai.Manager
	chunker   *chunker.Chunker
}

func newChunker(cfg *config.Config) (*chunker.Chunker, error) {
	return chunker.New(
		chunker.WithMaxSentences(cfg.Chunker.MaxSentences),
		chunker.WithMinSentences(cfg.Chunker.MinSentences),
		chunker.WithTokenBudget(cfg.Chunker.TokenBudget),
	)
}

func newApp(cfg *config.Config) (*app, error) {
	cache, err := embedcache.New(cfg.EmbedCache)
	if err != nil {
		return nil, err
	}
	splitter, err := newChunker(cfg)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}
	providers, err := ai.NewManagerFromConfig(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("init providers: %w", err)
	}
	mem, err := memory.Open(cfg.Vector, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("open translation memory: %w", err)
	}
	return &app{
		cfg:       cfg,
		cache:     cache,
		embedder:  embedding.NewService(embedding.LoadFromConfig(cfg.Embedding), cache, cfg.Embedding.Dimension),
		memory:    mem,
		providers: providers,
		chunker:   splitter,
	}, nil
}

func (a *app) orchestrator() *translate.Orchestrator {
	return translate.New(a.chunker, a.embedder, a.memory, a.providers,
		translate.WithTopK(a.cfg.Translate.TopK),
		translate.WithSingleUnitThreshold(a.cfg.Translate.SingleUnitThreshold),
		translate.WithDefaultUser(a.cfg.Translate.DefaultUser),
	)
}

func (a *app) Close() {
	if err := a.memory.Close(); err != nil {
		logutil.GetLogger(context.Background()).Error("close translation memory failed", zap.Error(err))
	}
}
