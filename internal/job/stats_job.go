package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/embedcache"
	"github.com/xxxsen/ratrans/internal/memory"
)

type memoryStater interface {
	Stats(ctx context.Context) (memory.Stats, error)
}

type cacheStater interface {
	Stats(ctx context.Context) (embedcache.Stats, error)
}

// StatsJob logs translation memory and embedding cache sizes.
type StatsJob struct {
	memory memoryStater
	cache  cacheStater
}

func NewStatsJob(mem memoryStater, cache cacheStater) *StatsJob {
	return &StatsJob{memory: mem, cache: cache}
}

func (j *StatsJob) Name() string {
	return "stats_report"
}

func (j *StatsJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	if j.memory != nil {
		st, err := j.memory.Stats(ctx)
		if err != nil {
			return fmt.Errorf("memory stats: %w", err)
		}
		logger.Info("translation memory stats",
			zap.String("name", st.Name),
			zap.Int("records", st.TotalRecords),
			zap.String("location", st.PersistLocation),
		)
	}
	if j.cache != nil {
		st, err := j.cache.Stats(ctx)
		if err != nil {
			return fmt.Errorf("cache stats: %w", err)
		}
		logger.Info("embedding cache stats",
			zap.Int("entries", st.Entries),
			zap.Int64("bytes", st.TotalSizeBytes),
			zap.String("location", st.Location),
		)
	}
	return nil
}
