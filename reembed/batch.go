package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/retry"
	"github.com/poiesic/minutes/storage"
)

// BatchProcessor embeds batches of knowledge items.
type BatchProcessor struct {
	items    storage.ItemRepository
	vectors  storage.VectorIndex
	embedder ai.Embedder
	model    string
	policy   retry.Policy
}

// NewBatchProcessor creates a new batch processor.
// model is recorded on every item embedded by this processor.
func NewBatchProcessor(items storage.ItemRepository, vectors storage.VectorIndex, embedder ai.Embedder, model string, policy retry.Policy) *BatchProcessor {
	return &BatchProcessor{
		items:    items,
		vectors:  vectors,
		embedder: embedder,
		model:    model,
		policy:   policy,
	}
}

// Process embeds a batch and writes the vectors, then marks the items done.
// Vectors are normalized so cosine distance reduces to a dot product.
// When the embedder fails the batch is left untouched and still pending.
func (bp *BatchProcessor) Process(ctx context.Context, batch []*core.KnowledgeItem) error {
	if len(batch) == 0 {
		return nil
	}

	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.Text
	}

	embeddings, err := retry.DoValue(ctx, bp.policy, func(ctx context.Context) ([][]float32, error) {
		return bp.embedder.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.policy.MaxAttempts, err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
	}

	for i, item := range batch {
		if err := bp.vectors.InsertVector(ctx, item.Id, core.NormalizeVector(embeddings[i])); err != nil {
			return fmt.Errorf("failed to write vector for %s: %w", item.Id, err)
		}
	}

	for _, item := range batch {
		item.VectorPending = false
		item.EmbeddingModel = bp.model
	}
	if err := bp.items.PutItems(ctx, batch...); err != nil {
		return fmt.Errorf("failed to update items: %w", err)
	}
	return nil
}
