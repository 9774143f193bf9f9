package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type cacheClearer interface {
	Clear(ctx context.Context) (int, error)
}

// CacheClearJob empties the embedding cache on an operator-chosen schedule.
type CacheClearJob struct {
	cache cacheClearer
}

func NewCacheClearJob(cache cacheClearer) *CacheClearJob {
	return &CacheClearJob{cache: cache}
}

func (j *CacheClearJob) Name() string {
	return "embedding_cache_clear"
}

func (j *CacheClearJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	removed, err := j.cache.Clear(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache cleared", zap.Int("removed", removed))
	return nil
}
