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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/retry"
	"github.com/poiesic/minutes/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of items embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of items)
	ReportInterval int

	// MaxRetries is the total number of embedding attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// All re-embeds every item instead of only the pending ones
	All bool

	// Filter, when set, drops selected items it rejects. Dropped items are
	// counted in Result.Skipped and keep their pending flag.
	Filter func(*core.KnowledgeItem) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarizes a run.
type Result struct {
	Selected int
	Skipped  int
	Embedded int
	Failed   int
	Elapsed  time.Duration
}

// Reembedder writes vectors for pending (or all) knowledge items.
type Reembedder struct {
	items     storage.ItemRepository
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
	processor *BatchProcessor
	iterator  *ItemIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output; nil disables it.
func NewReembedder(items storage.ItemRepository, vectors storage.VectorIndex, embedder ai.Embedder, model string, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	policy := retry.Policy{
		MaxAttempts: max(config.MaxRetries, 1),
		BaseDelay:   config.RetryDelay,
	}

	return &Reembedder{
		items:     items,
		config:    config,
		progress:  progress,
		logger:    slog.Default().With("component", "reembed"),
		processor: NewBatchProcessor(items, vectors, embedder, model, policy),
		iterator:  NewItemIterator(items, config.BatchSize, config.All).WithFilter(config.Filter),
	}
}

// Run embeds the selected items.
// A batch whose embedding fails is logged and skipped, leaving its items
// pending for the next run. Store and index write failures abort the run.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	selected, skipped, err := r.iterator.selection(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}

	result := &Result{Selected: len(selected), Skipped: skipped}
	if skipped > 0 {
		r.logger.Warn("items skipped by filter", "count", skipped)
	}
	if len(selected) == 0 {
		fmt.Fprintf(r.progress, "No items need embedding\n")
		return result, nil
	}

	fmt.Fprintf(r.progress, "Embedding %d items (batch size: %d)\n", len(selected), r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, len(selected), r.config.ReportInterval)
	tracker.Start()

	err = forEachBatch(ctx, selected, r.iterator.batchSize, func(batch []*core.KnowledgeItem) error {
		err := r.processor.Process(ctx, batch)
		switch {
		case err == nil:
			result.Embedded += len(batch)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case isWriteFailure(err):
			return fmt.Errorf("failed to process batch: %w", err)
		default:
			result.Failed += len(batch)
			r.logger.Warn("batch left pending", "size", len(batch), "error", err)
		}
		tracker.Increment(len(batch))
		return nil
	})
	result.Elapsed = tracker.Elapsed()
	if err != nil {
		return result, err
	}

	tracker.Finish()
	fmt.Fprintf(r.progress, "Embedding complete. %d embedded, %d still pending, in %v\n",
		result.Embedded, result.Failed, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

func isWriteFailure(err error) bool {
	return errors.Is(err, storage.ErrStorageClosed) ||
		errors.Is(err, storage.ErrSerializationFailed) ||
		errors.Is(err, storage.ErrDimensionMismatch)
}
