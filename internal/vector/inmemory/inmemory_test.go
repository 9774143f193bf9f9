package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/config"
	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/vector"
	"github.com/xxxsen/ratrans/internal/vector/vectortest"
)

func TestDriver(t *testing.T) {
	vectortest.Run(t, New(vectortest.Dimension))
}

func TestDriver_DimensionMismatch(t *testing.T) {
	d := New(3)
	err := d.Upsert(context.Background(), []vector.Record{{
		MemoryRecord: model.MemoryRecord{ID: "a"},
		Embedding:    []float32{1, 2},
	}})
	require.True(t, appErr.IsInvalid(err))
	_, err = d.Query(context.Background(), []float32{1}, 1, vector.Filter{})
	require.True(t, appErr.IsInvalid(err))
}

func TestDriver_StoredRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	d := New(2)
	rec := vector.Record{
		MemoryRecord: model.MemoryRecord{ID: "a", Translations: map[string]string{"hi": "x"}},
		Embedding:    []float32{1, 1},
	}
	require.NoError(t, d.Upsert(ctx, []vector.Record{rec}))
	rec.Translations["hi"] = "changed"

	matches, err := d.Query(ctx, []float32{1, 1}, 1, vector.Filter{})
	require.NoError(t, err)
	require.Equal(t, "x", matches[0].Translations["hi"])
}

func TestRegistered(t *testing.T) {
	drv, err := vector.New(config.VectorConfig{Type: "inmemory"}, 4)
	require.NoError(t, err)
	require.Equal(t, "memory", drv.Location())
}
