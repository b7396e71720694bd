// Package bleve implements storage.KeywordIndex on a bleve full-text index.
//
// Item text is analyzed with the standard analyzer (unicode tokenizer,
// lowercasing and English stop words) and ranked by bleve's tf-idf scorer.
// Category and project are indexed verbatim with the keyword analyzer so they
// can be used as exact-match predicates.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/mapping"
	"github.com/blevesearch/bleve/search/query"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

const (
	fieldText     = "text"
	fieldCategory = "category"
	fieldProject  = "project"
	fieldSession  = "session"
)

// Index implements storage.KeywordIndex.
type Index struct {
	index  bleve.Index
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

var _ storage.KeywordIndex = (*Index)(nil)

// Open opens the index at path, creating it if it does not exist.
func Open(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		idx, err = bleve.Open(path)
	} else if os.IsNotExist(statErr) {
		idx, err = bleve.New(path, newMapping())
	} else {
		err = statErr
	}
	if err != nil {
		return nil, fmt.Errorf("opening keyword index %s: %w", path, err)
	}
	return newIndex(idx), nil
}

// NewMemoryIndex creates an in-memory index for testing.
func NewMemoryIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, err
	}
	return newIndex(idx), nil
}

func newIndex(idx bleve.Index) *Index {
	return &Index{
		index:  idx,
		logger: slog.Default().With("component", "bleve"),
	}
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.IncludeTermVectors = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldText, text)
	doc.AddFieldMappingsAt(fieldCategory, exact)
	doc.AddFieldMappingsAt(fieldProject, exact)
	doc.AddFieldMappingsAt(fieldSession, exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Close closes the underlying index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.index.Close()
}

// Ping reports whether the index is usable.
func (i *Index) Ping(ctx context.Context) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return storage.ErrStorageClosed
	}
	if _, err := i.index.DocCount(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// InsertText indexes or re-indexes the text of an item.
func (i *Index) InsertText(ctx context.Context, id core.ID, text string, fields storage.Fields) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return storage.ErrStorageClosed
	}
	doc := map[string]interface{}{
		fieldText:     text,
		fieldCategory: fields.Category.String(),
		fieldProject:  fields.Project,
		fieldSession:  fields.SessionID,
	}
	return i.index.Index(id.String(), doc)
}

// Delete removes items from the index.
func (i *Index) Delete(ctx context.Context, ids ...core.ID) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return storage.ErrStorageClosed
	}
	if len(ids) == 0 {
		return nil
	}
	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id.String())
	}
	return i.index.Batch(batch)
}

// Query returns up to limit hits ordered by descending score, then by ID.
func (i *Index) Query(ctx context.Context, text string, filter storage.Filter, limit int) ([]storage.Hit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", storage.ErrInvalidQuery, limit)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, storage.ErrStorageClosed
	}

	match := bleve.NewMatchQuery(text)
	match.SetField(fieldText)
	clauses := []query.Query{match}
	if filter.Category != 0 {
		clauses = append(clauses, termQuery(fieldCategory, filter.Category.String()))
	}
	if filter.Project != "" {
		clauses = append(clauses, termQuery(fieldProject, filter.Project))
	}

	var q query.Query = match
	if len(clauses) > 1 {
		q = bleve.NewConjunctionQuery(clauses...)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]storage.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := core.ParseID(h.ID)
		if err != nil {
			i.logger.Warn("skipping foreign document", "id", h.ID)
			continue
		}
		hits = append(hits, storage.Hit{ID: id, Score: h.Score})
	}
	return hits, nil
}

// IDs lists every indexed item.
func (i *Index) IDs(ctx context.Context) ([]core.ID, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, storage.ErrStorageClosed
	}
	count, err := i.index.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	req.SortBy([]string{"_id"})
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]core.ID, 0, len(res.Hits))
	var errs []error
	for _, h := range res.Hits {
		id, err := core.ParseID(h.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	if len(errs) > 0 {
		i.logger.Warn("index holds non-item documents", "error", errors.Join(errs...))
	}
	return ids, nil
}

func termQuery(field, value string) query.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}
