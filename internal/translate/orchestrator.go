// Package translate runs retrieval-augmented translation: text is split into
// units, each unit is translated with similar earlier translations of the same
// user as terminology context, and the results are remembered for next time.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/model"
)

const (
	DefaultTopK                = 2
	DefaultSingleUnitThreshold = 3000
	DefaultUser                = "anonymous"
)

type Splitter interface {
	Split(ctx context.Context, input string) []model.Chunk
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Memory interface {
	Store(ctx context.Context, chunks []model.Chunk, embeddings [][]float32, username, sessionID string, translations map[string][]string) error
	RetrieveSimilar(ctx context.Context, embedding []float32, topK int, username string) ([]model.MemoryMatch, error)
}

type Generator interface {
	GenerateWithFallback(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

type Result struct {
	Text      string `json:"text"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
	Units     int    `json:"units"`
	// Remembered is false when the run could not be written to memory.
	Remembered bool `json:"remembered"`
}

type Orchestrator struct {
	splitter  Splitter
	embedder  Embedder
	memory    Memory
	generator Generator

	topK        int
	threshold   int
	defaultUser string
	now         func() time.Time
}

type Option func(*Orchestrator)

func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithSingleUnitThreshold sets the character count below which the whole
// text is translated as one unit.
func WithSingleUnitThreshold(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.threshold = n
		}
	}
}

func WithDefaultUser(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.defaultUser = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(splitter Splitter, embedder Embedder, memory Memory, generator Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		splitter:    splitter,
		embedder:    embedder,
		memory:      memory,
		generator:   generator,
		topK:        DefaultTopK,
		threshold:   DefaultSingleUnitThreshold,
		defaultUser: DefaultUser,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Translate returns the translation of text into targetLang.
func (o *Orchestrator) Translate(ctx context.Context, text, targetLang, username string) (string, error) {
	res, err := o.TranslateDetailed(ctx, text, targetLang, username)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func sessionID(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/int(time.Microsecond))
}

func (o *Orchestrator) units(ctx context.Context, text string) []model.Chunk {
	if utf8.RuneCountInString(text) < o.threshold {
		return []model.Chunk{{Text: text, Position: 0, SourceLength: utf8.RuneCountInString(text)}}
	}
	return o.splitter.Split(ctx, text)
}

func (o *Orchestrator) TranslateDetailed(ctx context.Context, text, targetLang, username string) (*Result, error) {
	if err := ValidateLanguage(targetLang); err != nil {
		return nil, err
	}
	lang, _ := LookupLanguage(targetLang)
	if username == "" {
		username = o.defaultUser
	}
	session := sessionID(o.now())
	logger := logutil.GetLogger(ctx).With(
		zap.String("lang", lang.Code),
		zap.String("user", username),
		zap.String("session", session),
	)
	res := &Result{Language: lang.Code, SessionID: session}

	clean := StripEmotionalTags(text)
	if clean == "" {
		return res, nil
	}
	units := o.units(ctx, clean)
	if len(units) == 0 {
		return res, nil
	}
	res.Units = len(units)
	logger.Info("starting translation", zap.Int("units", len(units)), zap.Int("chars", utf8.RuneCountInString(clean)))

	embeddings, err := o.embedder.EmbedBatch(ctx, model.ChunkTexts(units))
	if err != nil {
		logger.Warn("embedding failed, translating without memory", zap.Error(err))
		embeddings = nil
	}
	if embeddings != nil {
		if err := o.memory.Store(ctx, units, embeddings, username, session, nil); err != nil {
			logger.Warn("store source units failed", zap.Error(err))
		}
	}

	translated := make([]string, len(units))
	for i, unit := range units {
		var matches []model.MemoryMatch
		if embeddings != nil {
			matches = o.retrieve(ctx, embeddings[i], username, session, len(units))
		}
		prompt := BuildPrompt(unit.Text, lang, matches)
		out, err := o.generator.GenerateWithFallback(ctx, prompt, lang.SystemPrompt)
		if err != nil {
			logger.Error("translation unit failed", zap.Int("position", unit.Position), zap.Error(err))
			return nil, fmt.Errorf("translate unit %d: %w", unit.Position, err)
		}
		translated[i] = CleanOutput(out)
		logger.Debug("translated unit",
			zap.Int("position", unit.Position),
			zap.Int("units", len(units)),
			zap.Int("memory_examples", len(matches)),
		)
	}

	if embeddings != nil {
		err := o.memory.Store(ctx, units, embeddings, username, session, map[string][]string{lang.Code: translated})
		if err != nil {
			logger.Warn("store translations failed", zap.Error(err))
		} else {
			res.Remembered = true
		}
	}

	res.Text = strings.Join(translated, " ")
	logger.Info("translation complete", zap.Int("chars", utf8.RuneCountInString(res.Text)))
	return res, nil
}

// retrieve returns up to topK earlier records of the user. Records of the
// running session are the source units themselves and are skipped.
func (o *Orchestrator) retrieve(ctx context.Context, embedding []float32, username, session string, sessionUnits int) []model.MemoryMatch {
	matches, err := o.memory.RetrieveSimilar(ctx, embedding, o.topK+sessionUnits, username)
	if err != nil {
		logutil.GetLogger(ctx).Warn("retrieve translation memory failed", zap.String("user", username), zap.Error(err))
		return nil
	}
	out := make([]model.MemoryMatch, 0, o.topK)
	for _, m := range matches {
		if m.SessionID == session {
			continue
		}
		out = append(out, m)
		if len(out) == o.topK {
			break
		}
	}
	return out
}
