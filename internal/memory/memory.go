// Package memory keeps translated chunks retrievable by similarity so later
// translations for the same user can reuse their terminology.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/vector"
)

const DefaultName = "translation_memory"

type Stats struct {
	Name            string `json:"name"`
	TotalRecords    int    `json:"total_records"`
	PersistLocation string `json:"persist_location"`
}

type Store struct {
	driver vector.Driver
	name   string
	now    func() time.Time
}

type Option func(*Store)

func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(driver vector.Driver, opts ...Option) *Store {
	s := &Store{driver: driver, name: DefaultName, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds the configured vector driver and wraps it.
func Open(cfg config.VectorConfig, dimension int, opts ...Option) (*Store, error) {
	driver, err := vector.New(cfg, dimension)
	if err != nil {
		return nil, fmt.Errorf("open vector driver: %w", err)
	}
	return New(driver, opts...), nil
}

// Store writes one record per chunk. When translations[lang] is present its
// entry at the chunk position becomes the record's translation for lang.
// Writing the same session again overwrites the earlier records.
func (s *Store) Store(ctx context.Context, chunks []model.Chunk, embeddings [][]float32, username, sessionID string, translations map[string][]string) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%d chunks but %d embeddings: %w", len(chunks), len(embeddings), appErr.ErrInvalid)
	}
	if len(chunks) == 0 {
		return nil
	}
	createdAt := s.now().Unix()
	records := make([]vector.Record, 0, len(chunks))
	for i, chunk := range chunks {
		rec := vector.Record{
			MemoryRecord: model.MemoryRecord{
				ID:        model.MemoryRecordID(username, sessionID, chunk.Position),
				Username:  username,
				SessionID: sessionID,
				Position:  chunk.Position,
				ChunkText: chunk.Text,
				CreatedAt: createdAt,
			},
			Embedding: embeddings[i],
		}
		for lang, texts := range translations {
			if chunk.Position < 0 || chunk.Position >= len(texts) {
				continue
			}
			if rec.Translations == nil {
				rec.Translations = map[string]string{}
			}
			rec.Translations[lang] = texts[chunk.Position]
		}
		records = append(records, rec)
	}
	if err := s.driver.Upsert(ctx, records); err != nil {
		return fmt.Errorf("store memory records: %w", err)
	}
	logutil.GetLogger(ctx).Info("stored translation memory",
		zap.String("user", username),
		zap.String("session", sessionID),
		zap.Int("records", len(records)),
		zap.Int("languages", len(translations)),
	)
	return nil
}

// RetrieveSimilar returns up to topK records nearest to embedding, closest
// first. An empty username searches every user.
func (s *Store) RetrieveSimilar(ctx context.Context, embedding []float32, topK int, username string) ([]model.MemoryMatch, error) {
	matches, err := s.driver.Query(ctx, embedding, topK, vector.Filter{Username: username})
	if err != nil {
		return nil, fmt.Errorf("retrieve similar records: %w", err)
	}
	return matches, nil
}

func (s *Store) ClearUser(ctx context.Context, username string) (int, error) {
	if username == "" {
		return 0, fmt.Errorf("username is required: %w", appErr.ErrInvalid)
	}
	n, err := s.driver.Delete(ctx, vector.Filter{Username: username})
	if err != nil {
		return 0, fmt.Errorf("clear memory for %s: %w", username, err)
	}
	logutil.GetLogger(ctx).Info("cleared translation memory", zap.String("user", username), zap.Int("records", n))
	return n, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	n, err := s.driver.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count memory records: %w", err)
	}
	return Stats{Name: s.name, TotalRecords: n, PersistLocation: s.driver.Location()}, nil
}

func (s *Store) Close() error {
	return s.driver.Close()
}
