package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/config"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
)

func newTestProvider(t *testing.T, typ string, data map[string]interface{}) Provider {
	t.Helper()
	p, err := NewProvider(config.ProviderConfig{Type: typ, Data: data})
	require.NoError(t, err)
	return p
}

func TestChatProvider_Request(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama-3.1-8b-instant", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, DefaultSystemPrompt, req.Messages[0].Content)
		require.Equal(t, "translate me", req.Messages[1].Content)
		require.Equal(t, 4000, req.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  done  "}}]}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, "groq", map[string]interface{}{"api_key": "secret", "base_url": srv.URL + "/v1"})
	require.Equal(t, "groq", p.Name())
	require.True(t, p.Configured())
	out, err := p.Generate(context.Background(), "translate me", "")
	require.NoError(t, err)
	require.Equal(t, "done", out)
}

func TestChatProvider_NotConfigured(t *testing.T) {
	p := newTestProvider(t, "deepseek", nil)
	require.False(t, p.Configured())
	_, err := p.Generate(context.Background(), "x", "")
	require.True(t, appErr.IsNotConfigured(err))

	p = newTestProvider(t, "openai_compatible", nil)
	require.True(t, p.Configured())
}

func TestChatProvider_RetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"try again in 1.2s"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, "groq", map[string]interface{}{"api_key": "k", "base_url": srv.URL, "retry_delay_ms": 1})
	out, err := p.Generate(context.Background(), "x", "")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestChatProvider_RateLimitExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestProvider(t, "huggingface", map[string]interface{}{"api_key": "k", "base_url": srv.URL, "retry_delay_ms": 1})
	_, err := p.Generate(context.Background(), "x", "")
	var se *httpjson.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusTooManyRequests, se.Code)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestChatProvider_OtherErrorsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newTestProvider(t, "openai", map[string]interface{}{"api_key": "k", "base_url": srv.URL})
	_, err := p.Generate(context.Background(), "x", "")
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryPolicy_HonorsContext(t *testing.T) {
	p := retryPolicy{maxRetries: 2, delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.do(ctx, "x", func(ctx context.Context) error {
		calls++
		cancel()
		return &httpjson.StatusError{Code: http.StatusTooManyRequests}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, defaultOllamaModel, req.Model)
		require.False(t, req.Stream)
		require.Equal(t, 0.3, req.Options.Temperature)
		require.Equal(t, "be brief", req.Messages[0].Content)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"வணக்கம்\n"}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, "ollama", map[string]interface{}{"base_url": srv.URL + "/"})
	require.True(t, p.Configured())
	out, err := p.Generate(context.Background(), "hello", "be brief")
	require.NoError(t, err)
	require.Equal(t, "வணக்கம்", out)
}

func TestGeminiProvider_NotConfigured(t *testing.T) {
	p := newTestProvider(t, "gemini", map[string]interface{}{"model": "gemini-x"})
	require.False(t, p.Configured())
	_, err := p.Generate(context.Background(), "x", "")
	require.True(t, appErr.IsNotConfigured(err))
}
