package translate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/ai"
	"github.com/xxxsen/ratrans/internal/chunker"
	"github.com/xxxsen/ratrans/internal/memory"
	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/vector/inmemory"
)

const testDim = 16

// bagEmbedder hashes words into a fixed number of buckets so texts sharing
// words land close together.
type bagEmbedder struct {
	calls  int
	inputs [][]string
	err    error
}

func (b *bagEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.calls++
	b.inputs = append(b.inputs, texts)
	if b.err != nil {
		return nil, b.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, testDim)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,!?")))
			vec[h.Sum32()%testDim]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm > 0 {
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / math.Sqrt(norm))
			}
		}
		out[i] = vec
	}
	return out, nil
}

type scriptedGenerator struct {
	prompts []string
	systems []string
	err     error
}

func (g *scriptedGenerator) GenerateWithFallback(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.systems = append(g.systems, systemPrompt)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("Here is the translation: अनुवाद %d (Note: kept the tone)", len(g.prompts)), nil
}

type failingMemory struct {
	stores int
}

func (f *failingMemory) Store(ctx context.Context, chunks []model.Chunk, embeddings [][]float32, username, sessionID string, translations map[string][]string) error {
	f.stores++
	return errors.New("disk full")
}

func (f *failingMemory) RetrieveSimilar(ctx context.Context, embedding []float32, topK int, username string) ([]model.MemoryMatch, error) {
	return nil, errors.New("disk full")
}

func tickingClock() func() time.Time {
	t := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	orch *Orchestrator
	emb  *bagEmbedder
	gen  *scriptedGenerator
	mem  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := chunker.New()
	require.NoError(t, err)
	f := &fixture{
		emb: &bagEmbedder{},
		gen: &scriptedGenerator{},
		mem: memory.New(inmemory.New(testDim)),
	}
	f.orch = New(c, f.emb, f.mem, f.gen, WithClock(tickingClock()))
	return f
}

func longText() string {
	sentences := []string{
		"You wake each morning with a calm and steady heart full of quiet courage.",
		"Your work at the studio brings joy to the people who depend on you every day.",
		"Every step you take moves you closer to the home you have always imagined.",
		"You speak with kindness and the people around you feel truly heard and seen.",
		"Money flows to you easily because you create real value for your community.",
	}
	var b strings.Builder
	for i := 0; i < 10; i++ {
		for _, s := range sentences {
			b.WriteString(s)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

func TestTranslate_LongTextChunkedAndRemembered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	text := longText()
	require.GreaterOrEqual(t, len(strings.Fields(text)), 600)

	res, err := f.orch.TranslateDetailed(ctx, text, "hi", "alice")
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.Units, 2)
	require.True(t, res.Remembered)
	require.Equal(t, "hi", res.Language)
	require.Equal(t, "20240301_100001_123456", res.SessionID)
	require.Len(t, f.gen.prompts, res.Units)
	require.Equal(t, 1, f.emb.calls)
	require.Len(t, f.emb.inputs[0], res.Units)

	parts := make([]string, res.Units)
	for i := range parts {
		parts[i] = fmt.Sprintf("अनुवाद %d", i+1)
	}
	require.Equal(t, strings.Join(parts, " "), res.Text)

	// the first run sees no memory of its own session
	for _, p := range f.gen.prompts {
		require.NotContains(t, p, "TRANSLATION MEMORY")
	}
	for _, s := range f.gen.systems {
		require.Contains(t, s, "Hindi")
	}

	st, err := f.mem.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, res.Units, st.TotalRecords)
	for pos := 0; pos < res.Units; pos++ {
		matches, err := f.mem.RetrieveSimilar(ctx, make([]float32, testDim), st.TotalRecords, "alice")
		require.NoError(t, err)
		var found bool
		for _, m := range matches {
			if m.ID == model.MemoryRecordID("alice", res.SessionID, pos) {
				found = true
				require.Equal(t, parts[pos], m.Translations["hi"])
			}
		}
		require.True(t, found, "position %d", pos)
	}

	second, err := f.orch.TranslateDetailed(ctx, "You wake each morning with a calm heart full of courage.", "hi", "alice")
	require.NoError(t, err)
	require.Equal(t, 1, second.Units)
	last := f.gen.prompts[len(f.gen.prompts)-1]
	require.Contains(t, last, "TRANSLATION MEMORY")
	require.Contains(t, last, "HINDI: अनुवाद")
	require.Equal(t, 2, strings.Count(last, "ENGLISH:"))
}

func TestTranslate_ShortTextIsSingleUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	text := strings.Repeat("You are calm. ", 35)
	require.Less(t, len(text), DefaultSingleUnitThreshold)

	res, err := f.orch.TranslateDetailed(ctx, text, "ta", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, res.Units)
	require.Equal(t, "अनुवाद 1", res.Text)
	require.Len(t, f.gen.prompts, 1)
	require.Contains(t, f.gen.prompts[0], "FIDELITY PROTOCOL")
	require.Contains(t, f.gen.systems[0], "strict fidelity")
	require.Equal(t, [][]string{{strings.TrimSpace(text)}}, f.emb.inputs)

	st, err := f.mem.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.TotalRecords)
}

func TestTranslate_UnsupportedLanguage(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Translate(context.Background(), "Hello there.", "fr", "alice")
	require.True(t, appErr.IsInvalid(err))
	require.Contains(t, err.Error(), "Supported: hi, ta")
	require.Equal(t, 0, f.emb.calls)
	require.Empty(t, f.gen.prompts)
}

func TestTranslate_StripsEmotionalTags(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Translate(context.Background(), "You are safe [pause] and [whisper]deeply loved[/whisper].", "hi", "")
	require.NoError(t, err)
	require.Contains(t, f.gen.prompts[0], "You are safe and deeply loved.")
	require.NotContains(t, f.gen.prompts[0], "[")

	matches, err := f.mem.RetrieveSimilar(context.Background(), make([]float32, testDim), 5, DefaultUser)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestTranslate_EmptyInput(t *testing.T) {
	f := newFixture(t)
	out, err := f.orch.Translate(context.Background(), " [pause] ", "hi", "alice")
	require.NoError(t, err)
	require.Equal(t, "", out)
	require.Equal(t, 0, f.emb.calls)
}

func TestTranslate_ProviderExhaustion(t *testing.T) {
	f := newFixture(t)
	f.gen.err = &ai.UnavailableError{Attempts: []ai.Attempt{{Provider: "ollama", Err: errors.New("connection refused")}}}
	_, err := f.orch.Translate(context.Background(), "You are calm.", "hi", "alice")
	require.True(t, appErr.IsUnavailable(err))
	require.Contains(t, err.Error(), "ollama failed: connection refused")
}

func TestTranslate_EmbeddingFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.emb.err = errors.New("model offline")
	res, err := f.orch.TranslateDetailed(context.Background(), "You are calm.", "hi", "alice")
	require.NoError(t, err)
	require.Equal(t, "अनुवाद 1", res.Text)
	require.False(t, res.Remembered)
	st, err := f.mem.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, st.TotalRecords)
}

func TestTranslate_MemoryFailureIsNotFatal(t *testing.T) {
	c, err := chunker.New()
	require.NoError(t, err)
	mem := &failingMemory{}
	gen := &scriptedGenerator{}
	orch := New(c, &bagEmbedder{}, mem, gen)
	res, err := orch.TranslateDetailed(context.Background(), "You are calm.", "ta", "alice")
	require.NoError(t, err)
	require.Equal(t, "अनुवाद 1", res.Text)
	require.False(t, res.Remembered)
	require.Equal(t, 2, mem.stores)
}

func TestTranslate_ThresholdOption(t *testing.T) {
	c, err := chunker.New(chunker.WithMaxSentences(2))
	require.NoError(t, err)
	gen := &scriptedGenerator{}
	orch := New(c, &bagEmbedder{}, memory.New(inmemory.New(testDim)), gen, WithSingleUnitThreshold(10), WithTopK(1))
	res, err := orch.TranslateDetailed(context.Background(), "You are calm. You are kind. You are strong.", "hi", "alice")
	require.NoError(t, err)
	require.Equal(t, 2, res.Units)
	require.Len(t, gen.prompts, 2)
}

func TestSessionID(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 59, 58, 7000, time.UTC)
	require.Equal(t, "20241231_235958_000007", sessionID(ts))
}
