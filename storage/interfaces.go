package storage

import (
	"context"
	"time"

	"github.com/poiesic/minutes/core"
)

// ItemRepository is the canonical store of knowledge items.
// Implementations must be thread-safe and support concurrent access.
type ItemRepository interface {
	// PutItems inserts or replaces items by ID.
	// Sets CreatedAt if not already set and always refreshes UpdatedAt.
	PutItems(ctx context.Context, items ...*core.KnowledgeItem) error

	// GetItem retrieves a single item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	GetItem(ctx context.Context, id core.ID) (*core.KnowledgeItem, error)

	// GetItems retrieves multiple items by their IDs, in request order.
	// Returns only the items that exist (no error for missing items).
	GetItems(ctx context.Context, ids ...core.ID) ([]*core.KnowledgeItem, error)

	// DeleteItems removes items and their secondary indices.
	// Missing IDs are ignored.
	DeleteItems(ctx context.Context, ids ...core.ID) error

	// ItemsByProject returns every item of a project ordered by ID.
	ItemsByProject(ctx context.Context, project string) ([]*core.KnowledgeItem, error)

	// ItemsBySession returns the items first seen in a session ordered by ID.
	ItemsBySession(ctx context.Context, sessionID string) ([]*core.KnowledgeItem, error)

	// PendingItems returns the items still waiting for an embedding.
	PendingItems(ctx context.Context) ([]*core.KnowledgeItem, error)

	// ForEachItem calls fn for every stored item. Iteration stops at the first error.
	ForEachItem(ctx context.Context, fn func(*core.KnowledgeItem) error) error

	// CountByCategory counts items per category. An empty project counts all projects.
	CountByCategory(ctx context.Context, project string) (map[core.Category]int, error)

	// Close releases resources held by the repository.
	Close() error
}

// SessionFilter narrows SessionLog.List. Zero values match everything.
type SessionFilter struct {
	Project string
	Since   time.Time // Inclusive
	Until   time.Time // Exclusive
}

// SessionLog is the append-only record of processed sessions.
type SessionLog interface {
	// Append adds a record and assigns its sequence number.
	// Sets ProcessedAt if not already set.
	Append(ctx context.Context, rec *core.SessionRecord) (*core.SessionRecord, error)

	// FindByHash returns the latest record for a file hash.
	// Returns nil, nil if the hash was never processed.
	FindByHash(ctx context.Context, fileHash string) (*core.SessionRecord, error)

	// List returns matching records in append order.
	List(ctx context.Context, filter SessionFilter) ([]*core.SessionRecord, error)

	Close() error
}

// CheckpointRepository tracks chunk progress of in-flight sessions.
type CheckpointRepository interface {
	// Save persists a checkpoint, replacing any previous one for the session.
	Save(ctx context.Context, checkpoint *core.ChunkCheckpoint) error

	// Load retrieves the checkpoint of a session.
	// Returns nil, nil if no checkpoint exists.
	Load(ctx context.Context, sessionID string) (*core.ChunkCheckpoint, error)

	// Delete removes the checkpoint of a session. Missing checkpoints are ignored.
	Delete(ctx context.Context, sessionID string) error
}

// Fields are the filterable attributes stored next to indexed text.
type Fields struct {
	Category  core.Category
	Project   string
	SessionID string
}

// Filter restricts a keyword query. Zero values match everything.
type Filter struct {
	Category core.Category
	Project  string
}

// Hit is a ranked keyword match. Higher scores are more relevant.
type Hit struct {
	ID    core.ID
	Score float64
}

// KeywordIndex is a ranked full-text index over item text.
type KeywordIndex interface {
	// InsertText indexes or re-indexes the text of an item.
	InsertText(ctx context.Context, id core.ID, text string, fields Fields) error

	// Delete removes items from the index. Missing IDs are ignored.
	Delete(ctx context.Context, ids ...core.ID) error

	// Query returns up to limit hits ordered by descending score.
	Query(ctx context.Context, text string, filter Filter, limit int) ([]Hit, error)

	// IDs lists every indexed item.
	IDs(ctx context.Context) ([]core.ID, error)

	// Ping reports whether the index is usable.
	Ping(ctx context.Context) error

	Close() error
}

// Neighbor is a vector match. Distance is cosine distance, lower is closer.
type Neighbor struct {
	ID       core.ID
	Distance float64
}

// VectorIndex is a nearest-neighbor index over item embeddings.
type VectorIndex interface {
	// InsertVector stores or replaces the embedding of an item.
	// Returns ErrDimensionMismatch if the vector does not match the index dimension.
	InsertVector(ctx context.Context, id core.ID, vector []float32) error

	// Delete removes embeddings. Missing IDs are ignored.
	Delete(ctx context.Context, ids ...core.ID) error

	// Nearest returns up to limit neighbors ordered by ascending distance.
	Nearest(ctx context.Context, vector []float32, limit int) ([]Neighbor, error)

	// IDs lists every item that has an embedding.
	IDs(ctx context.Context) ([]core.ID, error)

	// Ping reports whether the index is reachable.
	Ping(ctx context.Context) error

	Close() error
}
