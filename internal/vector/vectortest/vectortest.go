// Package vectortest holds behaviour checks shared by every vector driver.
package vectortest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/model"
	"github.com/xxxsen/ratrans/internal/vector"
)

// Dimension is the embedding size drivers under test must be created with.
const Dimension = 4

func record(id, user string, position int, emb ...float32) vector.Record {
	return vector.Record{
		MemoryRecord: model.MemoryRecord{
			ID:        id,
			Username:  user,
			SessionID: "s1",
			Position:  position,
			ChunkText: "text " + id,
			CreatedAt: 1700000000,
		},
		Embedding: emb,
	}
}

// Run exercises upsert, filtered and unfiltered queries, overwrite by id,
// counting and filtered deletes against an empty driver.
func Run(t *testing.T, d vector.Driver) {
	t.Helper()
	ctx := context.Background()

	n, err := d.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, d.Upsert(ctx, []vector.Record{
		record("alice_s1_chunk_0", "alice", 0, 0, 0, 0, 0),
		record("alice_s1_chunk_1", "alice", 1, 3, 4, 0, 0),
		record("bob_s1_chunk_0", "bob", 0, 1, 0, 0, 0),
	}))
	n, err = d.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	matches, err := d.Query(ctx, []float32{0, 0, 0, 0}, 2, vector.Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "alice_s1_chunk_0", matches[0].ID)
	require.Equal(t, "bob_s1_chunk_0", matches[1].ID)
	require.LessOrEqual(t, matches[0].Distance, matches[1].Distance)

	matches, err = d.Query(ctx, []float32{3, 4, 0, 0}, 5, vector.Filter{Username: "alice"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "alice_s1_chunk_1", matches[0].ID)
	require.Equal(t, "alice", matches[0].Username)
	require.Equal(t, "s1", matches[0].SessionID)
	require.Equal(t, 1, matches[0].Position)
	require.Equal(t, "text alice_s1_chunk_1", matches[0].ChunkText)
	require.InDelta(t, 0, matches[0].Distance, 1e-4)

	upd := record("alice_s1_chunk_1", "alice", 1, 3, 4, 0, 0)
	upd.Translations = map[string]string{"hi": "नमस्ते", "ta": "வணக்கம்"}
	require.NoError(t, d.Upsert(ctx, []vector.Record{upd}))
	n, err = d.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	matches, err = d.Query(ctx, []float32{3, 4, 0, 0}, 1, vector.Filter{Username: "alice"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "नमस्ते", matches[0].Translations["hi"])
	require.Equal(t, "வணக்கம்", matches[0].Translations["ta"])

	matches, err = d.Query(ctx, []float32{0, 0, 0, 0}, 5, vector.Filter{Username: "carol"})
	require.NoError(t, err)
	require.Empty(t, matches)

	removed, err := d.Delete(ctx, vector.Filter{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	n, err = d.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	removed, err = d.Delete(ctx, vector.Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}
