package index

import (
	"context"
	"fmt"
	"io"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/reembed"
)

// RebuildOptions selects what RebuildVectors embeds.
type RebuildOptions struct {
	// All re-embeds every item, not only the pending ones.
	All bool

	// Progress receives progress output. Nil discards it.
	Progress io.Writer

	// Config overrides batching and retry settings.
	Config *reembed.Config
}

// RebuildVectors embeds pending items, or all items, in batches.
// Items missing from the keyword index are skipped; Repair reindexes them.
// Inserts wait until the rebuild is done.
func (m *Manager) RebuildVectors(ctx context.Context, opts RebuildOptions) (*reembed.Result, error) {
	if m.vectors == nil {
		return nil, ErrEmbeddingsDisabled
	}
	cfg := reembed.DefaultConfig()
	if opts.Config != nil {
		c := *opts.Config
		cfg = &c
	}
	cfg.All = opts.All

	m.mu.Lock()
	defer m.mu.Unlock()

	keywordIDs, err := m.keyword.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword entries: %w", err)
	}
	indexed := toSet(keywordIDs)
	cfg.Filter = func(item *core.KnowledgeItem) bool {
		return indexed[item.Id]
	}

	r := reembed.NewReembedder(m.items, m.vectors, m.embedder, m.model, cfg, opts.Progress)
	result, err := r.Run(ctx)
	if err != nil {
		return result, err
	}
	m.logger.Info("rebuilt vectors", "selected", result.Selected, "skipped", result.Skipped, "embedded", result.Embedded, "pending", result.Failed)
	return result, nil
}
