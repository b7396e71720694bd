package index

import "errors"

var (
	// ErrInvalidConfig is returned when a required store or index is missing.
	ErrInvalidConfig = errors.New("invalid index manager configuration")

	// ErrKeywordUnavailable indicates the keyword index cannot be used.
	ErrKeywordUnavailable = errors.New("keyword index unavailable")

	// ErrVectorUnavailable indicates the embedder or the vector index cannot be reached.
	ErrVectorUnavailable = errors.New("vector index unavailable")

	// ErrEmbeddingsDisabled is returned by vector operations on a keyword-only manager.
	ErrEmbeddingsDisabled = errors.New("embeddings are disabled")

	// ErrKeywordWrite indicates an insert failed at the keyword index.
	// The canonical record was stored; no vector was written.
	ErrKeywordWrite = errors.New("keyword index write failed")

	// ErrVectorWrite indicates an insert could not embed or store the vector.
	// The item is stored, keyword-indexed and left vector-pending.
	ErrVectorWrite = errors.New("vector index write failed")
)
