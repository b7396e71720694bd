package storage

import (
	"testing"
	"time"

	"github.com/poiesic/minutes/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshal_EmptyData(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalKnowledgeItem(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalSessionRecord([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalVector(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalKnowledgeItem(t *testing.T) {
	now := time.Now().UTC()
	item := &core.KnowledgeItem{
		Id:              core.ItemID("proj", core.CategoryDecision, "use postgres"),
		Category:        core.CategoryDecision,
		Text:            "Use Postgres for the event store",
		Metadata:        map[string]string{"owner": "Dana", "rationale": "team knows it"},
		OccurrenceCount: 3,
		FirstSeenChunk:  2,
		SessionID:       "session-1",
		Project:         "proj",
		VectorPending:   true,
		CreatedAt:       now,
		UpdatedAt:       now.Add(time.Minute),
	}

	decoded, err := UnmarshalKnowledgeItem(MarshalKnowledgeItem(item))
	require.NoError(t, err)
	assert.Equal(t, item.Id, decoded.Id)
	assert.Equal(t, item.Category, decoded.Category)
	assert.Equal(t, item.Text, decoded.Text)
	assert.Equal(t, item.Metadata, decoded.Metadata)
	assert.Equal(t, item.OccurrenceCount, decoded.OccurrenceCount)
	assert.Equal(t, item.FirstSeenChunk, decoded.FirstSeenChunk)
	assert.Equal(t, item.SessionID, decoded.SessionID)
	assert.Equal(t, item.Project, decoded.Project)
	assert.True(t, decoded.VectorPending)
	assert.Empty(t, decoded.EmbeddingModel)
	assert.True(t, item.CreatedAt.Equal(decoded.CreatedAt))
	assert.True(t, item.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestMarshalKnowledgeItem_StableMetadataOrder(t *testing.T) {
	md := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
	first := MarshalKnowledgeItem(&core.KnowledgeItem{Id: 1, Category: core.CategoryTerm, Text: "x", Metadata: md})
	for range 10 {
		again := MarshalKnowledgeItem(&core.KnowledgeItem{Id: 1, Category: core.CategoryTerm, Text: "x", Metadata: md})
		require.Equal(t, first, again)
	}
}

func TestMarshalUnmarshalKnowledgeItem_ZeroTimes(t *testing.T) {
	decoded, err := UnmarshalKnowledgeItem(MarshalKnowledgeItem(&core.KnowledgeItem{
		Id:       7,
		Category: core.CategoryQuestion,
		Text:     "Who owns the schema?",
	}))
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.IsZero())
	assert.True(t, decoded.UpdatedAt.IsZero())
	assert.Empty(t, decoded.Metadata)
}

func TestUnmarshalKnowledgeItem_Truncated(t *testing.T) {
	data := MarshalKnowledgeItem(&core.KnowledgeItem{
		Id:       9,
		Category: core.CategoryIdea,
		Text:     "Cache embeddings per model",
	})
	_, err := UnmarshalKnowledgeItem(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalSessionRecord(t *testing.T) {
	rec := &core.SessionRecord{
		Seq:          12,
		SessionID:    "abc",
		Project:      "proj",
		FileHash:     "deadbeef",
		ProcessedAt:  time.Now().UTC(),
		ItemCount:    40,
		DroppedCount: 2,
		FailedChunks: 1,
	}
	decoded, err := UnmarshalSessionRecord(MarshalSessionRecord(rec))
	require.NoError(t, err)
	assert.Equal(t, rec.Seq, decoded.Seq)
	assert.Equal(t, rec.SessionID, decoded.SessionID)
	assert.Equal(t, rec.FileHash, decoded.FileHash)
	assert.Equal(t, rec.ItemCount, decoded.ItemCount)
	assert.Equal(t, rec.DroppedCount, decoded.DroppedCount)
	assert.Equal(t, rec.FailedChunks, decoded.FailedChunks)
	assert.True(t, rec.ProcessedAt.Equal(decoded.ProcessedAt))
}

func TestMarshalUnmarshalVector(t *testing.T) {
	vec := []float32{0.5, -0.25, 0, 1e-7, -3.75}
	decoded, err := UnmarshalVector(MarshalVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	empty, err := UnmarshalVector(MarshalVector(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
