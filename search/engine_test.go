package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/minutes/ai/mock"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/index"
	"github.com/poiesic/minutes/metrics"
	"github.com/poiesic/minutes/storage"
	"github.com/poiesic/minutes/storage/badger"
	"github.com/poiesic/minutes/storage/bleve"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	noopMonitor
	started  bool
	keyword  int
	vector   int
	fused    int
	degraded []error
	finished bool
	results  []*core.SearchResult
}

func (m *recordingMonitor) Start(_ Query)                          { m.started = true }
func (m *recordingMonitor) AfterKeywordSearch(h []storage.Hit)     { m.keyword = len(h) }
func (m *recordingMonitor) AfterVectorSearch(n []storage.Neighbor) { m.vector = len(n) }
func (m *recordingMonitor) AfterFusion(f []Fused)                  { m.fused = len(f) }
func (m *recordingMonitor) Degraded(err error)                     { m.degraded = append(m.degraded, err) }
func (m *recordingMonitor) Finish(r []*core.SearchResult) {
	m.finished = true
	m.results = r
}

var corpus = []struct {
	text     string
	category core.Category
	project  string
}{
	{"Use Postgres as the primary event store", core.CategoryDecision, "alpha"},
	{"Should we shard the Postgres cluster?", core.CategoryQuestion, "alpha"},
	{"Write the Postgres migration script", core.CategoryActionItem, "beta"},
	{"Event sourcing keeps an append-only log", core.CategoryConcept, "alpha"},
	{"Cache warmup on deploy", core.CategoryIdea, "alpha"},
}

func setupManager(t *testing.T, vectors bool) (*index.Manager, []*core.KnowledgeItem) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	keyword, err := bleve.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		keyword.Close()
		stores.Close()
	})

	var opts []index.Option
	if vectors {
		opts = append(opts, index.WithVectors(stores.Vectors, mock.NewMockEmbedder(), "mock"))
	}
	m, err := index.NewManager(stores.Items, keyword, opts...)
	require.NoError(t, err)

	ctx := context.Background()
	items := make([]*core.KnowledgeItem, 0, len(corpus))
	for _, c := range corpus {
		item := &core.KnowledgeItem{
			Id:              core.ItemID(c.project, c.category, core.NormalizeText(c.text)),
			Category:        c.category,
			Text:            c.text,
			OccurrenceCount: 1,
			SessionID:       "s1",
			Project:         c.project,
		}
		require.NoError(t, m.Insert(ctx, item))
		items = append(items, item)
	}
	return m, items
}

func texts(results []*core.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Item.Text
	}
	return out
}

func TestNewEngine(t *testing.T) {
	m, _ := setupManager(t, false)

	t.Run("valid configuration", func(t *testing.T) {
		e, err := NewEngine(m, WithLogger(slog.Default()), WithRRFK(30), WithCandidateMultiplier(2))
		require.NoError(t, err)
		assert.Equal(t, 30, e.rrfK)
		assert.Equal(t, 2, e.multiplier)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		e, err := NewEngine(m, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, e.logger)
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewEngine(nil)
		assert.Equal(t, ErrBackendRequired, err)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewEngine(m, WithRRFK(0))
		assert.Error(t, err)
		_, err = NewEngine(m, WithCandidateMultiplier(0))
		assert.Error(t, err)
	})
}

func TestSearch_Keyword(t *testing.T) {
	m, _ := setupManager(t, true)
	e, err := NewEngine(m)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "category filter",
			query: Query{Text: "postgres", Mode: core.SearchModeKeyword, Category: core.CategoryQuestion},
			want:  []string{"Should we shard the Postgres cluster?"},
		},
		{
			name:  "project filter",
			query: Query{Text: "postgres", Mode: core.SearchModeKeyword, Project: "beta"},
			want:  []string{"Write the Postgres migration script"},
		},
		{
			name:  "no match",
			query: Query{Text: "kubernetes", Mode: core.SearchModeKeyword},
			want:  []string{},
		},
		{
			name:  "blank query",
			query: Query{Text: "  ", Mode: core.SearchModeKeyword},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := e.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, texts(results))
			for i, r := range results {
				assert.Equal(t, i+1, r.KeywordRank)
				assert.Zero(t, r.VectorRank)
			}
		})
	}

	limited, err := e.Search(ctx, Query{Text: "postgres", Mode: core.SearchModeKeyword, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = e.Search(ctx, Query{Text: "postgres", Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = e.Search(ctx, Query{Text: "postgres", Mode: core.SearchMode(42)})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearch_Vector(t *testing.T) {
	m, items := setupManager(t, true)
	e, err := NewEngine(m)
	require.NoError(t, err)
	ctx := context.Background()

	// The mock embedder is deterministic, so an item's own text is its nearest neighbor
	results, err := e.Search(ctx, Query{Text: items[3].Text, Mode: core.SearchModeVector, Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, items[3].Id, results[0].Item.Id)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	for i, r := range results {
		assert.Equal(t, i+1, r.VectorRank)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}

	filtered, err := e.Search(ctx, Query{Text: items[3].Text, Mode: core.SearchModeVector, Project: "beta"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, items[2].Id, filtered[0].Item.Id)
	assert.Equal(t, 1, filtered[0].VectorRank)
}

func TestSearch_VectorDisabled(t *testing.T) {
	m, _ := setupManager(t, false)
	e, err := NewEngine(m)
	require.NoError(t, err)

	_, err = e.Search(context.Background(), Query{Text: "postgres", Mode: core.SearchModeVector})
	assert.ErrorIs(t, err, ErrEmbeddingsDisabled)
}

func TestSearch_Hybrid(t *testing.T) {
	m, items := setupManager(t, true)
	mt, err := metrics.New(nil)
	require.NoError(t, err)
	e, err := NewEngine(m, WithMetrics(mt))
	require.NoError(t, err)
	ctx := context.Background()

	monitor := &recordingMonitor{}
	results, err := e.SearchWithMonitor(ctx, Query{Text: items[0].Text, Mode: core.SearchModeHybrid, Limit: 3}, monitor)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Ranked first by both signals
	assert.Equal(t, items[0].Id, results[0].Item.Id)
	assert.Equal(t, 1, results[0].KeywordRank)
	assert.Equal(t, 1, results[0].VectorRank)
	assert.InDelta(t, 2.0/61, results[0].Score, 1e-12)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	assert.True(t, monitor.started)
	assert.True(t, monitor.finished)
	assert.Positive(t, monitor.keyword)
	assert.Positive(t, monitor.vector)
	assert.GreaterOrEqual(t, monitor.fused, 3)
	assert.Empty(t, monitor.degraded)
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Searches.WithLabelValues("hybrid")))
}

func TestSearch_HybridDegrades(t *testing.T) {
	t.Run("embeddings disabled", func(t *testing.T) {
		m, _ := setupManager(t, false)
		e, err := NewEngine(m)
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := e.SearchWithMonitor(context.Background(), Query{Text: "postgres"}, monitor)
		require.NoError(t, err)
		assert.Len(t, results, 3)
		require.Len(t, monitor.degraded, 1)
		assert.ErrorIs(t, monitor.degraded[0], ErrEmbeddingsDisabled)
		for _, r := range results {
			assert.Zero(t, r.VectorRank)
		}
	})

	t.Run("vector query fails", func(t *testing.T) {
		m, _ := setupManager(t, true)
		boom := errors.New("vector backend down")
		e, err := NewEngine(&failingVectorBackend{Manager: m, err: boom})
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := e.SearchWithMonitor(context.Background(), Query{Text: "postgres", Limit: 2}, monitor)
		require.NoError(t, err)
		assert.Len(t, results, 2)
		require.Len(t, monitor.degraded, 1)
		assert.ErrorIs(t, monitor.degraded[0], boom)
	})
}

func TestSearch_FailuresFinishMonitor(t *testing.T) {
	m, _ := setupManager(t, false)
	e, err := NewEngine(m)
	require.NoError(t, err)

	tests := []struct {
		name string
		mode core.SearchMode
		err  error
	}{
		{"vector mode without embeddings", core.SearchModeVector, ErrEmbeddingsDisabled},
		{"unknown mode", core.SearchMode(99), ErrInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := &recordingMonitor{}
			results, err := e.SearchWithMonitor(context.Background(), Query{Text: "postgres", Mode: tt.mode}, monitor)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, results)
			assert.True(t, monitor.started)
			assert.True(t, monitor.finished)
			assert.Nil(t, monitor.results)
		})
	}
}

func TestSearch_SkipsMissingItems(t *testing.T) {
	m, items := setupManager(t, true)
	e, err := NewEngine(&missingItemsBackend{Manager: m, hide: items[0].Id})
	require.NoError(t, err)

	results, err := e.Search(context.Background(), Query{Text: "postgres", Mode: core.SearchModeKeyword})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, items[0].Id, r.Item.Id)
	}
	assert.Len(t, results, 2)
}

type failingVectorBackend struct {
	*index.Manager
	err error
}

func (f *failingVectorBackend) VectorSearch(ctx context.Context, text string, limit int) ([]storage.Neighbor, error) {
	return nil, f.err
}

type missingItemsBackend struct {
	*index.Manager
	hide core.ID
}

func (b *missingItemsBackend) GetMany(ctx context.Context, ids ...core.ID) ([]*core.KnowledgeItem, error) {
	items, err := b.Manager.GetMany(ctx, ids...)
	out := items[:0]
	for _, item := range items {
		if item.Id != b.hide {
			out = append(out, item)
		}
	}
	return out, err
}
