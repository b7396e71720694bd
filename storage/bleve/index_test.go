package bleve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, idx *Index) {
	t.Helper()
	ctx := context.Background()
	docs := []struct {
		id       core.ID
		text     string
		category core.Category
		project  string
	}{
		{1, "Use Postgres as the primary event store", core.CategoryDecision, "alpha"},
		{2, "Should we shard the Postgres cluster?", core.CategoryQuestion, "alpha"},
		{3, "Write the Postgres migration script", core.CategoryActionItem, "beta"},
		{4, "Event sourcing keeps an append-only log", core.CategoryConcept, "alpha"},
	}
	for _, d := range docs {
		require.NoError(t, idx.InsertText(ctx, d.id, d.text, storage.Fields{Category: d.category, Project: d.project}))
	}
}

func TestIndex_Query(t *testing.T) {
	idx, err := NewMemoryIndex()
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)
	ctx := context.Background()

	tests := []struct {
		name   string
		text   string
		filter storage.Filter
		want   []core.ID
	}{
		{"match across categories", "postgres", storage.Filter{}, []core.ID{1, 2, 3}},
		{"category predicate", "postgres", storage.Filter{Category: core.CategoryQuestion}, []core.ID{2}},
		{"project predicate", "postgres", storage.Filter{Project: "beta"}, []core.ID{3}},
		{"both predicates", "postgres", storage.Filter{Project: "beta", Category: core.CategoryDecision}, nil},
		{"stop words only", "the", storage.Filter{}, nil},
		{"no match", "kubernetes", storage.Filter{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Query(ctx, tt.text, tt.filter, 10)
			require.NoError(t, err)
			got := make([]core.ID, 0, len(hits))
			for _, h := range hits {
				got = append(got, h.ID)
				assert.Greater(t, h.Score, 0.0)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestIndex_QueryRanksAndLimits(t *testing.T) {
	idx, err := NewMemoryIndex()
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)
	ctx := context.Background()

	hits, err := idx.Query(ctx, "event store", storage.Filter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, core.ID(1), hits[0].ID)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}

	limited, err := idx.Query(ctx, "postgres", storage.Filter{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = idx.Query(ctx, "postgres", storage.Filter{}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	empty, err := idx.Query(ctx, "   ", storage.Filter{}, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestIndex_DeleteAndIDs(t *testing.T) {
	idx, err := NewMemoryIndex()
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)
	ctx := context.Background()

	require.NoError(t, idx.Delete(ctx, 2, 99))
	ids, err := idx.IDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{1, 3, 4}, ids)

	hits, err := idx.Query(ctx, "shard", storage.Filter{}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_ReindexReplaces(t *testing.T) {
	idx, err := NewMemoryIndex()
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.InsertText(ctx, 7, "old wording", storage.Fields{Category: core.CategoryIdea}))
	require.NoError(t, idx.InsertText(ctx, 7, "new wording entirely", storage.Fields{Category: core.CategoryIdea}))

	hits, err := idx.Query(ctx, "old", storage.Filter{}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	ids, err := idx.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{7}, ids)
}

func TestIndex_OpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	ctx := context.Background()

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.InsertText(ctx, 5, "persisted text", storage.Fields{Category: core.CategoryTerm}))
	require.NoError(t, idx.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	hits, err := reopened.Query(ctx, "persisted", storage.Filter{}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(5), hits[0].ID)
}

func TestIndex_Closed(t *testing.T) {
	idx, err := NewMemoryIndex()
	require.NoError(t, err)
	require.NoError(t, idx.Ping(context.Background()))
	require.NoError(t, idx.Close())

	assert.ErrorIs(t, idx.Ping(context.Background()), storage.ErrStorageClosed)
	assert.ErrorIs(t, idx.InsertText(context.Background(), 1, "x", storage.Fields{}), storage.ErrStorageClosed)
}
