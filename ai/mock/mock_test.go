package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/minutes/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ai.Provider = (*MockProvider)(nil)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder()
	ctx := context.Background()

	a, err := e.EmbedText(ctx, "use postgres")
	require.NoError(t, err)
	b, err := e.EmbedText(ctx, "use postgres")
	require.NoError(t, err)
	c, err := e.EmbedText(ctx, "use mysql")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimension)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)

	batch, err := e.EmbedTexts(ctx, []string{"use postgres", "use mysql"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{a, c}, batch)
	assert.Equal(t, 4, e.CallCount())
}

func TestMockEmbedder_Injected(t *testing.T) {
	e := NewMockEmbedder()
	e.Dimension = 3
	v, err := e.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 3)

	boom := errors.New("boom")
	e.EmbedTextFunc = func(context.Context, string) ([]float32, error) { return nil, boom }
	_, err = e.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	e.Reset()
	assert.Equal(t, 0, e.CallCount())
	assert.Nil(t, e.EmbedTextFunc)
}

func TestMockExtractor(t *testing.T) {
	x := NewMockExtractor()
	items, err := x.ExtractItems(context.Background(), "first")
	require.NoError(t, err)
	assert.Empty(t, items)

	x.ExtractItemsFunc = func(_ context.Context, text string) ([]ai.ExtractedItem, error) {
		return []ai.ExtractedItem{{Category: "terms", Text: text}}, nil
	}
	items, err = x.ExtractItems(context.Background(), "second")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "second", items[0].Text)

	assert.Equal(t, 2, x.CallCount())
	assert.Equal(t, []string{"first", "second"}, x.Texts())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockExtractor(), p.Extractor())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
