package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use and must return the
// same vector for the same input.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor pulls structured knowledge items out of a block of transcript text.
// Implementations must be thread-safe for concurrent use.
type Extractor interface {
	// ExtractItems analyzes text and returns the raw items it found.
	// Returns an empty slice if nothing was found. Failures wrap one of
	// ErrTimeout, ErrRateLimited, ErrMalformedResponse or ErrUnavailable
	// when the cause is known.
	ExtractItems(ctx context.Context, text string) ([]ExtractedItem, error)
}

// ExtractedItem is one item as reported by an extraction model, before any
// validation. Category is the model's category key (for example "decisions"
// or "action_item") and may not be a known category.
type ExtractedItem struct {
	Category string
	Text     string
	Metadata map[string]string
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Extractor returns the item extraction service.
	Extractor() Extractor

	// Close releases resources held by the provider and its services.
	Close() error
}
