package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/index"
	"github.com/poiesic/minutes/metrics"
	"github.com/poiesic/minutes/storage"
)

const (
	// DefaultLimit is used when a query leaves Limit at zero.
	DefaultLimit = 10

	// DefaultCandidateMultiplier is the over-fetch factor for filtered vector
	// queries, whose filters apply after neighbors are resolved to items.
	DefaultCandidateMultiplier = 4

	// hybridPoolFactor sizes each ranked list fed to fusion.
	hybridPoolFactor = 4
)

// Backend is the read side of the index manager.
type Backend interface {
	VectorsEnabled() bool
	KeywordSearch(ctx context.Context, text string, filter storage.Filter, limit int) ([]storage.Hit, error)
	VectorSearch(ctx context.Context, text string, limit int) ([]storage.Neighbor, error)
	GetMany(ctx context.Context, ids ...core.ID) ([]*core.KnowledgeItem, error)
}

var _ Backend = (*index.Manager)(nil)

// Query describes one search.
// Zero Category and empty Project match everything.
type Query struct {
	Text     string
	Mode     core.SearchMode
	Category core.Category
	Project  string
	Limit    int
}

func (q Query) filter() storage.Filter {
	return storage.Filter{Category: q.Category, Project: q.Project}
}

func (q Query) filtered() bool {
	return q.Category != 0 || q.Project != ""
}

func (q Query) matches(item *core.KnowledgeItem) bool {
	if q.Category != 0 && item.Category != q.Category {
		return false
	}
	return q.Project == "" || item.Project == q.Project
}

// Engine runs keyword, vector and hybrid queries.
type Engine struct {
	backend    Backend
	logger     *slog.Logger
	metrics    *metrics.Metrics
	rrfK       int
	multiplier int
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithCandidateMultiplier sets the over-fetch factor for filtered vector queries.
func WithCandidateMultiplier(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("candidate multiplier must be at least 1, got %d", n)
		}
		e.multiplier = n
		return nil
	}
}

// WithRRFK sets the fusion constant k.
func WithRRFK(k int) Option {
	return func(e *Engine) error {
		if k < 1 {
			return fmt.Errorf("rrf k must be at least 1, got %d", k)
		}
		e.rrfK = k
		return nil
	}
}

// WithMetrics counts queries by mode.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// NewEngine creates a query engine over an index backend.
func NewEngine(backend Backend, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	e := &Engine{
		backend:    backend,
		logger:     slog.Default(),
		rrfK:       DefaultRRFK,
		multiplier: DefaultCandidateMultiplier,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Search runs a query and returns results, most relevant first.
func (e *Engine) Search(ctx context.Context, q Query) ([]*core.SearchResult, error) {
	return e.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor runs a query with monitoring.
// The monitor receives callbacks at each stage of the search process. Every
// Start is paired with a Finish; a failed search finishes with nil results.
func (e *Engine) SearchWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidQuery, q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}

	monitor.Start(q)
	if strings.TrimSpace(q.Text) == "" {
		monitor.Finish(nil)
		return []*core.SearchResult{}, nil
	}

	var (
		results []*core.SearchResult
		err     error
	)
	switch q.Mode {
	case core.SearchModeKeyword:
		results, err = e.keyword(ctx, q, q.Limit, monitor)
	case core.SearchModeVector:
		if !e.backend.VectorsEnabled() {
			err = ErrEmbeddingsDisabled
			break
		}
		results, err = e.vector(ctx, q, q.Limit, monitor)
	case core.SearchModeHybrid:
		results, err = e.hybrid(ctx, q, monitor)
	default:
		err = fmt.Errorf("%w: mode %d", ErrInvalidQuery, q.Mode)
	}
	if err != nil {
		monitor.Finish(nil)
		return nil, err
	}

	e.metrics.Searched(q.Mode.String())
	monitor.Finish(results)
	return results, nil
}

func (e *Engine) keyword(ctx context.Context, q Query, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	hits, err := e.backend.KeywordSearch(ctx, q.Text, q.filter(), limit)
	if err != nil {
		e.logger.Error("keyword query failed", "query", q.Text, "err", err)
		return nil, err
	}
	monitor.AfterKeywordSearch(hits)

	ids := make([]core.ID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	items, err := e.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(hits))
	for i, h := range hits {
		item, ok := items[h.ID]
		if !ok {
			continue
		}
		results = append(results, &core.SearchResult{Item: item, Score: h.Score, KeywordRank: i + 1})
	}
	return results, nil
}

func (e *Engine) vector(ctx context.Context, q Query, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	fetch := limit
	if q.filtered() {
		fetch = limit * e.multiplier
	}
	neighbors, err := e.backend.VectorSearch(ctx, q.Text, fetch)
	if err != nil {
		return nil, err
	}
	monitor.AfterVectorSearch(neighbors)

	ids := make([]core.ID, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	items, err := e.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, limit)
	for _, n := range neighbors {
		item, ok := items[n.ID]
		if !ok || !q.matches(item) {
			continue
		}
		results = append(results, &core.SearchResult{
			Item:       item,
			Score:      1 - n.Distance,
			VectorRank: len(results) + 1,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (e *Engine) hybrid(ctx context.Context, q Query, monitor SearchMonitor) ([]*core.SearchResult, error) {
	pool := q.Limit * hybridPoolFactor

	if !e.backend.VectorsEnabled() {
		e.logger.Warn("embeddings disabled, hybrid search degraded to keyword only")
		monitor.Degraded(ErrEmbeddingsDisabled)
		return e.keyword(ctx, q, q.Limit, monitor)
	}

	keywordResults, err := e.keyword(ctx, q, pool, monitor)
	if err != nil {
		return nil, err
	}
	vectorResults, err := e.vector(ctx, q, pool, monitor)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("vector query failed, hybrid search degraded to keyword only", "err", err)
		monitor.Degraded(err)
		return truncate(keywordResults, q.Limit), nil
	}

	items := make(map[core.ID]*core.KnowledgeItem, len(keywordResults)+len(vectorResults))
	keywordIDs := make([]core.ID, len(keywordResults))
	for i, r := range keywordResults {
		keywordIDs[i] = r.Item.Id
		items[r.Item.Id] = r.Item
	}
	vectorIDs := make([]core.ID, len(vectorResults))
	for i, r := range vectorResults {
		vectorIDs[i] = r.Item.Id
		items[r.Item.Id] = r.Item
	}

	fused := FuseRRF(e.rrfK, keywordIDs, vectorIDs)
	monitor.AfterFusion(fused)

	results := make([]*core.SearchResult, 0, min(len(fused), q.Limit))
	for _, f := range fused {
		if len(results) == q.Limit {
			break
		}
		results = append(results, &core.SearchResult{
			Item:        items[f.ID],
			Score:       f.Score,
			KeywordRank: f.Ranks[0],
			VectorRank:  f.Ranks[1],
		})
	}
	return results, nil
}

// resolve loads items by id. Ids with no stored item are skipped; that
// drift is what Manager.Repair fixes.
func (e *Engine) resolve(ctx context.Context, ids []core.ID) (map[core.ID]*core.KnowledgeItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := e.backend.GetMany(ctx, ids...)
	if err != nil {
		e.logger.Error("error retrieving items", "count", len(ids), "err", err)
		return nil, err
	}
	out := make(map[core.ID]*core.KnowledgeItem, len(items))
	for _, item := range items {
		if item != nil {
			out[item.Id] = item
		}
	}
	if missing := len(ids) - len(out); missing > 0 {
		e.logger.Debug("index entries without items", "missing", missing)
	}
	return out, nil
}

func truncate(results []*core.SearchResult, limit int) []*core.SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
