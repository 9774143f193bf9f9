package chunker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

const (
	DefaultMaxSentences = 4
	DefaultMinSentences = 2
	DefaultTokenBudget  = 140

	tokensPerWord = 1.3
)

// SentenceTokenizer splits text into sentences in their original order.
type SentenceTokenizer interface {
	Tokenize(text string) []string
}

type Option func(c *Chunker)

func WithMaxSentences(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxSentences = n
		}
	}
}

func WithMinSentences(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.minSentences = n
		}
	}
}

func WithTokenBudget(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.tokenBudget = n
		}
	}
}

func WithTokenizer(t SentenceTokenizer) Option {
	return func(c *Chunker) {
		if t != nil {
			c.tokenizer = t
		}
	}
}

type Chunker struct {
	tokenizer    SentenceTokenizer
	maxSentences int
	minSentences int
	tokenBudget  int
}

func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxSentences: DefaultMaxSentences,
		minSentences: DefaultMinSentences,
		tokenBudget:  DefaultTokenBudget,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenizer == nil {
		t, err := NewPunktTokenizer()
		if err != nil {
			return nil, err
		}
		c.tokenizer = t
	}
	if c.minSentences > c.maxSentences {
		c.minSentences = c.maxSentences
	}
	return c, nil
}

// Split groups sentences into chunks bounded by the sentence cap and the
// soft token budget. A sentence is never split.
func (c *Chunker) Split(ctx context.Context, input string) []model.Chunk {
	sents := c.sentences(input)
	if len(sents) == 0 {
		return nil
	}
	var (
		chunks    []model.Chunk
		current   []string
		curTokens int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, newChunk(strings.Join(current, " "), len(chunks)))
		current = nil
		curTokens = 0
	}
	for _, s := range sents {
		tokens := EstimateTokens(s)
		if len(current) > 0 && c.shouldClose(len(current), curTokens, tokens) {
			flush()
		}
		current = append(current, s)
		curTokens += tokens
		if len(current) == 1 && tokens > c.tokenBudget {
			// oversized sentence stands alone
			flush()
		}
	}
	flush()
	logutil.GetLogger(ctx).Info("text chunked",
		zap.Int("sentences", len(sents)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

func (c *Chunker) shouldClose(count, tokens, next int) bool {
	if count >= c.maxSentences {
		return true
	}
	if tokens+next <= c.tokenBudget {
		return false
	}
	if count < c.minSentences && next <= c.tokenBudget {
		return false
	}
	return true
}

// Windows produces fixed-size sentence windows where consecutive windows
// share overlap sentences.
func (c *Chunker) Windows(ctx context.Context, input string, size, overlap int) ([]model.Window, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("window size %d overlap %d: %w", size, overlap, appErr.ErrInvalid)
	}
	sents := c.sentences(input)
	if len(sents) == 0 {
		return nil, nil
	}
	var windows []model.Window
	for start := 0; start < len(sents); start += size - overlap {
		end := min(start+size, len(sents))
		windows = append(windows, model.Window{
			Chunk:         newChunk(strings.Join(sents[start:end], " "), len(windows)),
			SentenceStart: start,
			SentenceEnd:   end,
		})
	}
	logutil.GetLogger(ctx).Info("overlapping windows created",
		zap.Int("sentences", len(sents)),
		zap.Int("windows", len(windows)),
	)
	return windows, nil
}

func (c *Chunker) sentences(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	raw := c.tokenizer.Tokenize(input)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// EstimateTokens approximates the model token count as words * 1.3.
func EstimateTokens(s string) int {
	words := len(strings.Fields(s))
	return int(math.Ceil(float64(words) * tokensPerWord))
}

func newChunk(text string, position int) model.Chunk {
	return model.Chunk{
		Text:         text,
		Position:     position,
		SourceLength: utf8.RuneCountInString(text),
	}
}

type punktTokenizer struct {
	impl *sentences.DefaultSentenceTokenizer
}

// NewPunktTokenizer loads the English punkt model shipped with the sentences package.
func NewPunktTokenizer() (SentenceTokenizer, error) {
	impl, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	return &punktTokenizer{impl: impl}, nil
}

func (p *punktTokenizer) Tokenize(text string) []string {
	sents := p.impl.Tokenize(text)
	out := make([]string, 0, len(sents))
	for _, s := range sents {
		out = append(out, s.Text)
	}
	return out
}
