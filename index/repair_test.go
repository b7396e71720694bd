package index

import (
	"context"
	"testing"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Repair(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	ctx := context.Background()

	healthy := newItem("Use Postgres", core.CategoryDecision)
	noKeyword := newItem("Ship Friday", core.CategoryDecision)
	noVector := newItem("Who owns billing?", core.CategoryQuestion)
	for _, item := range []*core.KnowledgeItem{healthy, noKeyword, noVector} {
		require.NoError(t, m.Insert(ctx, item))
	}

	// Damage the indexes behind the manager's back
	require.NoError(t, f.keyword.Delete(ctx, noKeyword.Id))
	require.NoError(t, f.stores.Vectors.Delete(ctx, noVector.Id))
	require.NoError(t, f.keyword.InsertText(ctx, 0xdead, "ghost entry", storage.Fields{Category: core.CategoryTerm}))
	require.NoError(t, f.stores.Vectors.InsertVector(ctx, 0xbeef, make([]float32, 64)))

	report, err := m.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, RepairReport{
		VectorOrphans:   2, // ghost vector, plus the vector of the item missing its keyword entry
		KeywordOrphans:  1,
		KeywordRestored: 1,
		MarkedPending:   2,
	}, *report)
	assertConsistent(t, f)

	keywordIDs, err := f.keyword.IDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{healthy.Id, noKeyword.Id, noVector.Id}, keywordIDs)

	n, err := m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second pass finds nothing to do
	report, err = m.Repair(ctx)
	require.NoError(t, err)
	assert.False(t, report.Changed())

	_, err = m.RebuildVectors(ctx, RebuildOptions{})
	require.NoError(t, err)
	n, err = m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_RepairKeywordOnly(t *testing.T) {
	f := newFixture(t)
	m, err := NewManager(f.stores.Items, f.keyword)
	require.NoError(t, err)
	ctx := context.Background()

	item := newItem("Use Postgres", core.CategoryDecision)
	require.NoError(t, m.Insert(ctx, item))
	require.NoError(t, f.keyword.Delete(ctx, item.Id))

	report, err := m.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.KeywordRestored)
	assert.Zero(t, report.MarkedPending)
}
