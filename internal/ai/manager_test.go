package ai

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/config"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

type fakeProvider struct {
	name       string
	configured bool
	reply      string
	err        error
	calls      int
	lastPrompt string
	lastSystem string
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	return f.reply, f.err
}

func TestGenerateWithFallback_Order(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, err: errors.New("boom")}
	b := &fakeProvider{name: "b", configured: true, reply: "from b"}
	c := &fakeProvider{name: "c", configured: true, reply: "from c"}
	m := NewManager(a, b, c)

	out, err := m.GenerateWithFallback(context.Background(), "p", "sys")
	require.NoError(t, err)
	require.Equal(t, "from b", out)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
	require.Equal(t, 0, c.calls)
	require.Equal(t, "p", b.lastPrompt)
	require.Equal(t, "sys", b.lastSystem)
}

func TestGenerateWithFallback_SkipsUnconfigured(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b", configured: true, reply: "ok"}
	out, err := NewManager(a, b).GenerateWithFallback(context.Background(), "p", "")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 0, a.calls)
}

func TestGenerateWithFallback_AllFail(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b", configured: true, err: errors.New("timeout")}
	c := &fakeProvider{name: "c", configured: true, reply: "   "}
	_, err := NewManager(a, b, c).GenerateWithFallback(context.Background(), "p", "")
	require.Error(t, err)
	require.True(t, appErr.IsUnavailable(err))

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	require.Len(t, ue.Attempts, 3)
	require.True(t, ue.Attempts[0].Skipped)
	require.False(t, ue.Attempts[1].Skipped)
	require.Contains(t, err.Error(), "a skipped: not configured")
	require.NotContains(t, err.Error(), "a failed")
	require.Contains(t, err.Error(), "b failed: timeout")
	require.Contains(t, err.Error(), "c failed: empty response")
}

func TestGenerateWithFallback_NotConfiguredFromGenerate(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, err: appErr.ErrNotConfigured}
	_, err := NewManager(a).GenerateWithFallback(context.Background(), "p", "")
	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	require.True(t, ue.Attempts[0].Skipped)
}

func TestGenerateWithFallback_Empty(t *testing.T) {
	_, err := NewManager().GenerateWithFallback(context.Background(), "p", "")
	require.True(t, appErr.IsUnavailable(err))
}

func TestGenerateWithFallback_CanceledContext(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, reply: "ok"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewManager(a).GenerateWithFallback(ctx, "p", "")
	require.True(t, appErr.IsUnavailable(err))
	require.Equal(t, 0, a.calls)
}

func TestManager_OnlyLocalRuntimeConfiguredAndDown(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	m, err := NewManagerFromConfig([]config.ProviderConfig{
		{Name: "huggingface", Type: "huggingface"},
		{Name: "deepseek", Type: "deepseek", Data: map[string]interface{}{"api_key": ""}},
		{Name: "groq", Type: "groq"},
		{Name: "ollama", Type: "ollama", Data: map[string]interface{}{"base_url": url}},
	})
	require.NoError(t, err)

	descs := m.Providers()
	require.Len(t, descs, 4)
	require.Equal(t, "huggingface", descs[0].Name)
	require.Equal(t, 1, descs[0].Priority)
	require.False(t, descs[0].Configured)
	require.True(t, descs[3].Configured)

	_, err = m.GenerateWithFallback(context.Background(), "p", "")
	require.True(t, appErr.IsUnavailable(err))
	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	require.Len(t, ue.Attempts, 4)
	for _, name := range []string{"huggingface", "deepseek", "groq"} {
		require.Contains(t, err.Error(), name+" skipped: not configured")
	}
	require.Contains(t, err.Error(), "ollama failed")
	require.False(t, ue.Attempts[3].Skipped)
}

func TestNewManagerFromConfig_UnknownType(t *testing.T) {
	_, err := NewManagerFromConfig([]config.ProviderConfig{{Type: "mystery"}})
	require.Error(t, err)
}
