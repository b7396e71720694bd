package index

import (
	"context"
	"fmt"
	"slices"

	"github.com/poiesic/minutes/core"
)

// RepairReport counts what Repair changed.
type RepairReport struct {
	VectorOrphans   int // vectors with no keyword entry or no item
	KeywordOrphans  int // keyword entries with no item
	KeywordRestored int // items re-added to the keyword index
	MarkedPending   int // items with no vector flagged for re-embedding
}

// Changed reports whether Repair modified anything.
func (r RepairReport) Changed() bool {
	return r != RepairReport{}
}

// Repair reconciles both indexes with the canonical store.
func (m *Manager) Repair(ctx context.Context) (*RepairReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make(map[core.ID]*core.KnowledgeItem)
	err := m.items.ForEachItem(ctx, func(item *core.KnowledgeItem) error {
		stored[item.Id] = item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}

	keywordIDs, err := m.keyword.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeywordUnavailable, err)
	}
	inKeyword := toSet(keywordIDs)

	report := &RepairReport{}

	if m.vectors != nil {
		vectorIDs, err := m.vectors.IDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVectorUnavailable, err)
		}
		var orphans []core.ID
		for _, id := range vectorIDs {
			_, hasItem := stored[id]
			if !hasItem || !inKeyword[id] {
				orphans = append(orphans, id)
			}
		}
		if len(orphans) > 0 {
			if err := m.vectors.Delete(ctx, orphans...); err != nil {
				return nil, fmt.Errorf("failed to delete orphaned vectors: %w", err)
			}
			report.VectorOrphans = len(orphans)
		}
		inVectors := toSet(vectorIDs)
		for _, id := range orphans {
			delete(inVectors, id)
		}

		var flagged []*core.KnowledgeItem
		for _, id := range sortedIDs(stored) {
			item := stored[id]
			if !item.VectorPending && !inVectors[id] {
				item.VectorPending = true
				item.EmbeddingModel = ""
				flagged = append(flagged, item)
			}
		}
		if len(flagged) > 0 {
			if err := m.items.PutItems(ctx, flagged...); err != nil {
				return nil, fmt.Errorf("failed to flag items pending: %w", err)
			}
			report.MarkedPending = len(flagged)
		}
	}

	var orphans []core.ID
	for _, id := range keywordIDs {
		if _, ok := stored[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		if err := m.keyword.Delete(ctx, orphans...); err != nil {
			return nil, fmt.Errorf("failed to delete orphaned keyword entries: %w", err)
		}
		report.KeywordOrphans = len(orphans)
	}

	for _, id := range sortedIDs(stored) {
		if inKeyword[id] {
			continue
		}
		item := stored[id]
		if err := m.keyword.InsertText(ctx, id, item.Text, fieldsOf(item)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrKeywordWrite, id, err)
		}
		report.KeywordRestored++
	}

	if report.Changed() {
		m.logger.Info("repaired indexes",
			"vector_orphans", report.VectorOrphans,
			"keyword_orphans", report.KeywordOrphans,
			"keyword_restored", report.KeywordRestored,
			"marked_pending", report.MarkedPending)
	}
	return report, nil
}

func toSet(ids []core.ID) map[core.ID]bool {
	set := make(map[core.ID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedIDs(items map[core.ID]*core.KnowledgeItem) []core.ID {
	ids := make([]core.ID, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
