package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
)

const (
	defaultMaxRetries = 2
	defaultRetryDelay = 5 * time.Second
)

type retryPolicy struct {
	maxRetries int
	delay      time.Duration
}

func newRetryPolicy(maxRetries *int, delayMs int) retryPolicy {
	p := retryPolicy{maxRetries: defaultMaxRetries, delay: defaultRetryDelay}
	if maxRetries != nil && *maxRetries >= 0 {
		p.maxRetries = *maxRetries
	}
	if delayMs > 0 {
		p.delay = time.Duration(delayMs) * time.Millisecond
	}
	return p
}

func isRateLimited(err error) bool {
	var se *httpjson.StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}

// do runs fn, repeating it after a fixed delay while it reports a rate limit.
func (p retryPolicy) do(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !isRateLimited(err) || attempt >= p.maxRetries {
			return err
		}
		logutil.GetLogger(ctx).Warn("provider rate limited, waiting before retry",
			zap.String("provider", provider),
			zap.Duration("delay", p.delay),
			zap.Int("retry", attempt+1),
			zap.Int("max_retries", p.maxRetries),
		)
		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
