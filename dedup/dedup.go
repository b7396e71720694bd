// Package dedup merges per-chunk extraction candidates into a canonical,
// deduplicated set of knowledge items.
//
// A candidate whose id matches a canonical item merges into it. Otherwise it
// is compared against canonical items of the same category, in chunk order. A canonical item's comparison key is the normalized text it
// was created with and never moves, even when a longer variant later replaces
// its display text. Results therefore depend on candidate order.
package dedup

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/minutes/core"
)

// DefaultThreshold is the minimum similarity for two texts to be duplicates.
const DefaultThreshold = 0.85

// Config selects the similarity metric and threshold.
type Config struct {
	Threshold float64
	Metric    Metric
}

// DefaultConfig returns token_set at 0.85.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Metric: MetricTokenSet}
}

// Session identifies the run whose candidates are merged.
type Session struct {
	ID      string
	Project string
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deduplicator) {
		d.logger = logger
	}
}

// WithSimilarity overrides the metric with a custom function.
func WithSimilarity(sim Similarity) Option {
	return func(d *Deduplicator) {
		d.sim = sim
	}
}

type canonical struct {
	item *core.KnowledgeItem
	key  string
}

// Deduplicator holds the canonical item set of one session.
// It is not safe for concurrent use; each session owns its own.
type Deduplicator struct {
	session   Session
	threshold float64
	sim       Similarity
	logger    *slog.Logger

	items      []*canonical
	byCategory map[core.Category][]*canonical
	byID       map[core.ID]*canonical
	dropped    int
}

// New creates a Deduplicator for one session.
func New(session Session, cfg Config, opts ...Option) (*Deduplicator, error) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, cfg.Threshold)
	}
	sim, err := cfg.Metric.Func()
	if err != nil {
		return nil, err
	}
	d := &Deduplicator{
		session:    session,
		threshold:  cfg.Threshold,
		sim:        sim,
		logger:     slog.Default(),
		byCategory: make(map[core.Category][]*canonical),
		byID:       make(map[core.ID]*canonical),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Seed loads previously stored items so that new candidates merge into them.
// Items already present are ignored.
func (d *Deduplicator) Seed(existing ...*core.KnowledgeItem) {
	for _, item := range existing {
		if item == nil || !item.Category.Valid() {
			continue
		}
		if _, ok := d.byID[item.Id]; ok {
			continue
		}
		key := core.NormalizeText(item.Text)
		if key == "" {
			continue
		}
		d.insert(&canonical{item: item, key: key})
	}
}

// Add merges one chunk's candidates, in order, and returns the items it
// created or changed. Each item appears once, in order of first touch.
// Malformed candidates are dropped and counted.
func (d *Deduplicator) Add(chunkIndex int, candidates []core.CandidateItem) []*core.KnowledgeItem {
	var touched []*core.KnowledgeItem
	seen := make(map[core.ID]bool)

	for i := range candidates {
		cand := &candidates[i]
		if err := core.ValidateCandidate(cand); err != nil {
			d.dropped++
			d.logger.Debug("dropping malformed candidate", "chunk", chunkIndex, "err", err)
			continue
		}
		key := core.NormalizeText(cand.Text)
		if key == "" {
			d.dropped++
			d.logger.Debug("dropping candidate with no words", "chunk", chunkIndex, "text", cand.Text)
			continue
		}
		md, unknown := core.SanitizeMetadata(cand.Category, cand.Metadata)
		if len(unknown) > 0 {
			d.logger.Debug("stripped unknown metadata keys", "category", cand.Category, "keys", unknown)
		}

		id := core.ItemID(d.session.Project, cand.Category, key)
		var item *core.KnowledgeItem
		if same, ok := d.byID[id]; ok {
			item = same.item
			merge(item, strings.TrimSpace(cand.Text), md)
		} else if match := d.bestMatch(cand.Category, key); match != nil {
			item = match.item
			merge(item, strings.TrimSpace(cand.Text), md)
		} else {
			item = &core.KnowledgeItem{
				Id:              id,
				Category:        cand.Category,
				Text:            strings.TrimSpace(cand.Text),
				Metadata:        md,
				OccurrenceCount: 1,
				FirstSeenChunk:  chunkIndex,
				SessionID:       d.session.ID,
				Project:         d.session.Project,
			}
			d.insert(&canonical{item: item, key: key})
		}

		if !seen[item.Id] {
			seen[item.Id] = true
			touched = append(touched, item)
		}
	}
	return touched
}

// bestMatch returns the most similar canonical item at or above the
// threshold. Ties go to the item created first.
func (d *Deduplicator) bestMatch(c core.Category, key string) *canonical {
	var best *canonical
	bestScore := 0.0
	for _, existing := range d.byCategory[c] {
		score := d.sim(key, existing.key)
		if score >= d.threshold && score > bestScore {
			best, bestScore = existing, score
		}
	}
	return best
}

func (d *Deduplicator) insert(c *canonical) {
	d.items = append(d.items, c)
	d.byCategory[c.item.Category] = append(d.byCategory[c.item.Category], c)
	d.byID[c.item.Id] = c
}

// merge folds a duplicate into the canonical item: the count grows, missing
// or empty metadata keys are filled and a longer text replaces the current one.
func merge(item *core.KnowledgeItem, text string, md map[string]string) {
	item.OccurrenceCount++
	if item.Metadata == nil && len(md) > 0 {
		item.Metadata = make(map[string]string, len(md))
	}
	for k, v := range md {
		if strings.TrimSpace(item.Metadata[k]) == "" {
			item.Metadata[k] = v
		}
	}
	if utf8.RuneCountInString(text) > utf8.RuneCountInString(item.Text) {
		item.Text = text
	}
}

// Items returns the canonical set, seeded items first, in creation order.
func (d *Deduplicator) Items() []*core.KnowledgeItem {
	out := make([]*core.KnowledgeItem, len(d.items))
	for i, c := range d.items {
		out[i] = c.item
	}
	return out
}

// Dropped returns the number of malformed candidates seen so far.
func (d *Deduplicator) Dropped() int {
	return d.dropped
}

// Merge runs the whole algorithm over a session at once: seed with existing,
// then add each chunk's candidates in order. It returns the canonical set and
// the number of dropped candidates.
func Merge(session Session, cfg Config, chunks [][]core.CandidateItem, existing []*core.KnowledgeItem) ([]*core.KnowledgeItem, int, error) {
	d, err := New(session, cfg)
	if err != nil {
		return nil, 0, err
	}
	d.Seed(existing...)
	for i, candidates := range chunks {
		d.Add(i, candidates)
	}
	return d.Items(), d.Dropped(), nil
}
