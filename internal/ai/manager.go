package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

// Attempt is the outcome of one provider in a failed waterfall.
type Attempt struct {
	Provider string
	// Skipped is set when the provider was not configured and never called.
	Skipped bool
	Err     error
}

// UnavailableError is returned when no provider produced output.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return "all ai providers failed: no providers registered"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Skipped {
			parts = append(parts, fmt.Sprintf("%s skipped: %v", a.Provider, a.Err))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed: %v", a.Provider, a.Err))
	}
	return "all ai providers failed: " + strings.Join(parts, "; ")
}

func (e *UnavailableError) Unwrap() error {
	return appErr.ErrUnavailable
}

type entry struct {
	kind     string
	provider Provider
}

// Manager tries providers in a fixed order until one answers.
type Manager struct {
	entries []entry
}

func NewManager(providers ...Provider) *Manager {
	m := &Manager{}
	for _, p := range providers {
		if p == nil {
			continue
		}
		m.entries = append(m.entries, entry{kind: p.Name(), provider: p})
	}
	return m
}

// NewManagerFromConfig builds providers in config order, which is also the
// failover order.
func NewManagerFromConfig(cfgs []config.ProviderConfig) (*Manager, error) {
	m := &Manager{}
	for i, c := range cfgs {
		p, err := NewProvider(c)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		m.entries = append(m.entries, entry{kind: strings.ToLower(c.Type), provider: p})
	}
	return m, nil
}

func (m *Manager) Providers() []model.ProviderDescriptor {
	out := make([]model.ProviderDescriptor, 0, len(m.entries))
	for i, e := range m.entries {
		out = append(out, model.ProviderDescriptor{
			Name:       e.provider.Name(),
			Type:       e.kind,
			Priority:   i + 1,
			Configured: e.provider.Configured(),
		})
	}
	return out
}

// GenerateWithFallback returns the first non-empty answer. Providers that are
// not configured are skipped without being called.
func (m *Manager) GenerateWithFallback(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	logger := logutil.GetLogger(ctx)
	attempts := make([]Attempt, 0, len(m.entries))
	for _, e := range m.entries {
		name := e.provider.Name()
		if !e.provider.Configured() {
			logger.Info("skipping ai provider, not configured", zap.String("provider", name))
			attempts = append(attempts, Attempt{Provider: name, Skipped: true, Err: appErr.ErrNotConfigured})
			continue
		}
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Provider: name, Err: err})
			break
		}
		logger.Info("attempting generation", zap.String("provider", name))
		start := time.Now()
		text, err := e.provider.Generate(ctx, prompt, systemPrompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("empty response")
		}
		if err != nil {
			if appErr.IsNotConfigured(err) {
				logger.Info("skipping ai provider, not configured", zap.String("provider", name))
				attempts = append(attempts, Attempt{Provider: name, Skipped: true, Err: err})
				continue
			}
			logger.Warn("ai provider failed",
				zap.String("provider", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			attempts = append(attempts, Attempt{Provider: name, Err: err})
			continue
		}
		logger.Info("generation succeeded",
			zap.String("provider", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("chars", len(text)),
		)
		return text, nil
	}
	return "", &UnavailableError{Attempts: attempts}
}
