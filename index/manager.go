// Package index keeps the canonical item store, the keyword index and the
// vector index in step.
//
// Every stored item is in the keyword index, and either has a vector under
// the same id or carries VectorPending. The Manager serializes writes so
// concurrent sessions cannot interleave the steps of one insert.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/metrics"
	"github.com/poiesic/minutes/storage"
)

// Manager coordinates writes and lookups across the three stores.
type Manager struct {
	mu       sync.Mutex
	items    storage.ItemRepository
	keyword  storage.KeywordIndex
	vectors  storage.VectorIndex
	embedder ai.Embedder
	model    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager) error

// WithVectors enables embeddings. model is recorded on every embedded item.
func WithVectors(vectors storage.VectorIndex, embedder ai.Embedder, model string) Option {
	return func(m *Manager) error {
		if vectors == nil || embedder == nil {
			return fmt.Errorf("%w: vectors need both an index and an embedder", ErrInvalidConfig)
		}
		m.vectors = vectors
		m.embedder = embedder
		m.model = model
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithMetrics records insert outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) error {
		m.metrics = mt
		return nil
	}
}

// NewManager creates a manager over a canonical store and a keyword index.
// Without WithVectors the manager is keyword-only.
func NewManager(items storage.ItemRepository, keyword storage.KeywordIndex, opts ...Option) (*Manager, error) {
	if items == nil {
		return nil, fmt.Errorf("%w: item repository required", ErrInvalidConfig)
	}
	if keyword == nil {
		return nil, fmt.Errorf("%w: keyword index required", ErrInvalidConfig)
	}
	m := &Manager{
		items:   items,
		keyword: keyword,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// VectorsEnabled reports whether the manager has a vector index.
func (m *Manager) VectorsEnabled() bool {
	return m.vectors != nil
}

// EmbeddingModel returns the model recorded on embedded items.
func (m *Manager) EmbeddingModel() string {
	return m.model
}

type insertOptions struct {
	skipVectors bool
	base        int
	hasBase     bool
}

// InsertOption tunes a single Insert call.
type InsertOption func(*insertOptions)

// SkipVectors writes the item to the keyword index only and leaves it
// vector-pending for a later RebuildVectors.
func SkipVectors() InsertOption {
	return func(o *insertOptions) {
		o.skipVectors = true
	}
}

// FromCount declares the occurrence count the caller's copy of the item
// started from: the stored count when it was loaded, or 0 for an item the
// caller created. Only the occurrences added since then are applied to the
// stored record, so sessions merging into the same item add up. Without it
// the caller's count replaces the stored one.
func FromCount(n int) InsertOption {
	return func(o *insertOptions) {
		o.base = n
		o.hasBase = true
	}
}

// Insert stores an item and indexes it.
//
// When the item is already stored, the stored record is folded into the
// caller's copy first (see FromCount); item is updated in place. The
// canonical record is then written, pending its vector, followed by the
// keyword index and the vector. A keyword failure restores the previous
// record and returns ErrKeywordWrite before any vector is touched. A vector
// failure returns ErrVectorWrite and leaves the item pending.
func (m *Manager) Insert(ctx context.Context, item *core.KnowledgeItem, opts ...InsertOption) error {
	var o insertOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, err := m.stored(ctx, item.Id)
	if err != nil {
		return err
	}
	if prev != nil {
		reconcile(item, prev, o)
	}

	item.VectorPending = true
	item.EmbeddingModel = ""
	if err := m.items.PutItems(ctx, item); err != nil {
		return fmt.Errorf("failed to store item %s: %w", item.Id, err)
	}

	if err := m.keyword.InsertText(ctx, item.Id, item.Text, fieldsOf(item)); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrKeywordWrite, item.Id, err)
		if rbErr := m.restore(ctx, item.Id, prev); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	m.metrics.ItemWritten(prev != nil)

	if m.vectors == nil || o.skipVectors {
		return nil
	}

	if err := m.writeVector(ctx, item); err != nil {
		m.metrics.VectorFailed()
		m.logger.Warn("item left vector-pending", "id", item.Id, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrVectorWrite, item.Id, err)
	}

	item.VectorPending = false
	item.EmbeddingModel = m.model
	if err := m.items.PutItems(ctx, item); err != nil {
		return fmt.Errorf("failed to clear pending flag of %s: %w", item.Id, err)
	}
	return nil
}

// reconcile folds the stored record into the caller's copy. The stored
// record keeps its first session, its non-empty metadata and its text when
// that text is longer.
func reconcile(item, prev *core.KnowledgeItem, o insertOptions) {
	if o.hasBase {
		item.OccurrenceCount = max(prev.OccurrenceCount+item.OccurrenceCount-o.base, 1)
	}
	if utf8.RuneCountInString(prev.Text) > utf8.RuneCountInString(item.Text) {
		item.Text = prev.Text
	}
	for k, v := range prev.Metadata {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if item.Metadata == nil {
			item.Metadata = make(map[string]string, len(prev.Metadata))
		}
		item.Metadata[k] = v
	}
	if prev.SessionID != "" {
		item.SessionID = prev.SessionID
		item.FirstSeenChunk = prev.FirstSeenChunk
	}
}

// restore puts back the record an Insert replaced, or removes the record
// when there was none, so the store never holds an item the keyword index
// lacks.
func (m *Manager) restore(ctx context.Context, id core.ID, prev *core.KnowledgeItem) error {
	if prev == nil {
		if err := m.items.DeleteItems(ctx, id); err != nil {
			return fmt.Errorf("failed to remove unindexed item %s: %w", id, err)
		}
		return nil
	}
	if err := m.items.PutItems(ctx, prev); err != nil {
		return fmt.Errorf("failed to restore item %s: %w", id, err)
	}
	return nil
}

func (m *Manager) writeVector(ctx context.Context, item *core.KnowledgeItem) error {
	vec, err := m.embedder.EmbedText(ctx, item.Text)
	if err != nil {
		return err
	}
	return m.vectors.InsertVector(ctx, item.Id, core.NormalizeVector(vec))
}

// stored returns the stored record of id, or nil when there is none.
func (m *Manager) stored(ctx context.Context, id core.ID) (*core.KnowledgeItem, error) {
	item, err := m.items.GetItem(ctx, id)
	switch {
	case err == nil:
		return item, nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

func fieldsOf(item *core.KnowledgeItem) storage.Fields {
	return storage.Fields{
		Category:  item.Category,
		Project:   item.Project,
		SessionID: item.SessionID,
	}
}

// Delete removes items from the vector index, then the keyword index, then
// the canonical store. Missing entries are ignored, so Delete is idempotent.
func (m *Manager) Delete(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.vectors != nil {
		if err := m.vectors.Delete(ctx, ids...); err != nil {
			return fmt.Errorf("failed to delete vectors: %w", err)
		}
	}
	if err := m.keyword.Delete(ctx, ids...); err != nil {
		return fmt.Errorf("failed to delete keyword entries: %w", err)
	}
	if err := m.items.DeleteItems(ctx, ids...); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

// Get returns one item. Returns storage.ErrNotFound if it does not exist.
func (m *Manager) Get(ctx context.Context, id core.ID) (*core.KnowledgeItem, error) {
	return m.items.GetItem(ctx, id)
}

// GetMany returns the items that exist, in request order.
func (m *Manager) GetMany(ctx context.Context, ids ...core.ID) ([]*core.KnowledgeItem, error) {
	return m.items.GetItems(ctx, ids...)
}

// ProjectItems returns every item of a project.
func (m *Manager) ProjectItems(ctx context.Context, project string) ([]*core.KnowledgeItem, error) {
	return m.items.ItemsByProject(ctx, project)
}

// SessionItems returns the items first seen in a session.
func (m *Manager) SessionItems(ctx context.Context, sessionID string) ([]*core.KnowledgeItem, error) {
	return m.items.ItemsBySession(ctx, sessionID)
}

// Counts returns item counts per category. An empty project counts everything.
func (m *Manager) Counts(ctx context.Context, project string) (map[core.Category]int, error) {
	return m.items.CountByCategory(ctx, project)
}

// PendingCount returns the number of items waiting for a vector.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	pending, err := m.items.PendingItems(ctx)
	return len(pending), err
}

// KeywordSearch runs a ranked keyword query.
func (m *Manager) KeywordSearch(ctx context.Context, text string, filter storage.Filter, limit int) ([]storage.Hit, error) {
	return m.keyword.Query(ctx, text, filter, limit)
}

// VectorSearch embeds text with the indexing embedder and returns its nearest neighbors.
func (m *Manager) VectorSearch(ctx context.Context, text string, limit int) ([]storage.Neighbor, error) {
	if m.vectors == nil {
		return nil, ErrEmbeddingsDisabled
	}
	vec, err := m.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return m.vectors.Nearest(ctx, core.NormalizeVector(vec), limit)
}

// Ping checks the keyword index.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.keyword.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrKeywordUnavailable, err)
	}
	return nil
}

// PingVectors checks the vector index and the embedder.
func (m *Manager) PingVectors(ctx context.Context) error {
	if m.vectors == nil {
		return ErrEmbeddingsDisabled
	}
	if err := m.vectors.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrVectorUnavailable, err)
	}
	if _, err := m.embedder.EmbedText(ctx, "ping"); err != nil {
		return fmt.Errorf("%w: embedder: %w", ErrVectorUnavailable, err)
	}
	return nil
}
