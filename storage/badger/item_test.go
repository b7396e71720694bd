package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(project, session string, category core.Category, text string) *core.KnowledgeItem {
	return &core.KnowledgeItem{
		Id:              core.ItemID(project, category, core.NormalizeText(text)),
		Category:        category,
		Text:            text,
		OccurrenceCount: 1,
		SessionID:       session,
		Project:         project,
	}
}

func TestItemRepository_PutGet(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	item := newTestItem("p", "s1", core.CategoryDecision, "Use Postgres")
	item.Metadata = map[string]string{"owner": "Dana"}
	require.NoError(t, stores.Items.PutItems(ctx, item))
	assert.False(t, item.CreatedAt.IsZero())

	got, err := stores.Items.GetItem(ctx, item.Id)
	require.NoError(t, err)
	assert.Equal(t, item.Text, got.Text)
	assert.Equal(t, "Dana", got.Metadata["owner"])

	_, err = stores.Items.GetItem(ctx, core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestItemRepository_PutKeepsCreatedAt(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	item := newTestItem("p", "s1", core.CategoryIdea, "Cache embeddings")
	require.NoError(t, stores.Items.PutItems(ctx, item))
	created := item.CreatedAt

	update := *item
	update.OccurrenceCount = 2
	update.CreatedAt = time.Time{}
	require.NoError(t, stores.Items.PutItems(ctx, &update))

	got, err := stores.Items.GetItem(ctx, item.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.OccurrenceCount)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestItemRepository_RejectsInvalid(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	err = stores.Items.PutItems(context.Background(), &core.KnowledgeItem{Id: 1, Category: core.CategoryTerm})
	assert.ErrorIs(t, err, core.ErrInvalidKnowledgeItem)
}

func TestItemRepository_GetItemsSkipsMissing(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	a := newTestItem("p", "s1", core.CategoryTerm, "RRF")
	b := newTestItem("p", "s1", core.CategoryTerm, "BM25")
	require.NoError(t, stores.Items.PutItems(ctx, a, b))

	items, err := stores.Items.GetItems(ctx, b.Id, core.ID(99), a.Id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b.Id, items[0].Id)
	assert.Equal(t, a.Id, items[1].Id)
}

func TestItemRepository_Indices(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	a := newTestItem("alpha", "s1", core.CategoryDecision, "Ship on Friday")
	b := newTestItem("alpha", "s2", core.CategoryQuestion, "Who reviews?")
	c := newTestItem("beta", "s3", core.CategoryDecision, "Ship on Friday")
	c.VectorPending = true
	require.NoError(t, stores.Items.PutItems(ctx, a, b, c))

	alpha, err := stores.Items.ItemsByProject(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, alpha, 2)

	s2, err := stores.Items.ItemsBySession(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, s2, 1)
	assert.Equal(t, b.Id, s2[0].Id)

	pending, err := stores.Items.PendingItems(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.Id, pending[0].Id)

	// Clearing the flag removes it from the pending index
	c.VectorPending = false
	c.EmbeddingModel = "mock"
	require.NoError(t, stores.Items.PutItems(ctx, c))
	pending, err = stores.Items.PendingItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	counts, err := stores.Items.CountByCategory(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[core.CategoryDecision])
	assert.Equal(t, 1, counts[core.CategoryQuestion])

	counts, err = stores.Items.CountByCategory(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, map[core.Category]int{core.CategoryDecision: 1}, counts)
}

func TestItemRepository_Delete(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	item := newTestItem("p", "s1", core.CategoryConcept, "Event sourcing")
	item.VectorPending = true
	require.NoError(t, stores.Items.PutItems(ctx, item))

	require.NoError(t, stores.Items.DeleteItems(ctx, item.Id))
	// Deleting again is a no-op
	require.NoError(t, stores.Items.DeleteItems(ctx, item.Id))

	_, err = stores.Items.GetItem(ctx, item.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	byProject, err := stores.Items.ItemsByProject(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, byProject)
	pending, err := stores.Items.PendingItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestItemRepository_ForEachItem(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, stores.Items.PutItems(ctx, newTestItem("p", "s", core.CategoryTerm, text)))
	}

	seen := 0
	err = stores.Items.ForEachItem(ctx, func(*core.KnowledgeItem) error {
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}
