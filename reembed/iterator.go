// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

const (
	// DefaultBatchSize is the default number of items embedded per request
	DefaultBatchSize = 32
)

// ItemIterator walks the items that need a vector in fixed-size batches.
type ItemIterator struct {
	repo      storage.ItemRepository
	batchSize int
	all       bool
	filter    func(*core.KnowledgeItem) bool
}

// NewItemIterator creates an iterator over pending items, or over every
// item when all is set.
func NewItemIterator(repo storage.ItemRepository, batchSize int, all bool) *ItemIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ItemIterator{
		repo:      repo,
		batchSize: batchSize,
		all:       all,
	}
}

// WithFilter restricts the selection to items fn accepts. A nil fn keeps
// every item.
func (it *ItemIterator) WithFilter(fn func(*core.KnowledgeItem) bool) *ItemIterator {
	it.filter = fn
	return it
}

// Items returns the full selection in ID order.
func (it *ItemIterator) Items(ctx context.Context) ([]*core.KnowledgeItem, error) {
	items, _, err := it.selection(ctx)
	return items, err
}

// selection returns the selected items and the number the filter dropped.
func (it *ItemIterator) selection(ctx context.Context) ([]*core.KnowledgeItem, int, error) {
	var (
		items []*core.KnowledgeItem
		err   error
	)
	if it.all {
		err = it.repo.ForEachItem(ctx, func(item *core.KnowledgeItem) error {
			items = append(items, item)
			return nil
		})
	} else {
		items, err = it.repo.PendingItems(ctx)
	}
	if err != nil || it.filter == nil {
		return items, 0, err
	}
	kept := items[:0]
	for _, item := range items {
		if it.filter(item) {
			kept = append(kept, item)
		}
	}
	return kept, len(items) - len(kept), nil
}

// ForEach calls fn for each batch of the selection.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *ItemIterator) ForEach(ctx context.Context, fn func([]*core.KnowledgeItem) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := it.Items(ctx)
	if err != nil {
		return err
	}
	return forEachBatch(ctx, items, it.batchSize, fn)
}

func forEachBatch(ctx context.Context, items []*core.KnowledgeItem, size int, fn func([]*core.KnowledgeItem) error) error {
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		if err := fn(items[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
