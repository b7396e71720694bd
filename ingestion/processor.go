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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/dedup"
	"github.com/poiesic/minutes/extract"
	"github.com/poiesic/minutes/index"
)

// processor is an internal interface for processing the chunks of a session.
type processor interface {
	// process extracts, merges and indexes one chunk.
	process(ctx context.Context, chunk core.Chunk) error

	// checkpoint saves the last committed chunk so an interrupted run can resume.
	checkpoint(ctx context.Context) error
}

// sessionProcessor handles the chunks of one run. It owns the run's
// Deduplicator and is not safe for concurrent use.
type sessionProcessor struct {
	p          *Pipeline
	src        Source
	dedup      *dedup.Deduplicator
	insertOpts []index.InsertOption
	result     *Result
	logger     *slog.Logger

	known     map[core.ID]bool // Items stored before this run
	counts    map[core.ID]int  // Occurrence count as last written by this run
	touched   map[core.ID]bool
	attempted int
	last      int // Last committed chunk
	dirty     bool
}

var _ processor = (*sessionProcessor)(nil)

func (p *Pipeline) newSessionProcessor(ctx context.Context, src Source, result *Result, insertOpts []index.InsertOption, logger *slog.Logger) (*sessionProcessor, error) {
	d, err := dedup.New(dedup.Session{ID: src.SessionID, Project: src.Project}, p.dedupConfig, dedup.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	existing, err := p.manager.ProjectItems(ctx, src.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to load project items: %w", err)
	}
	d.Seed(existing...)

	known := make(map[core.ID]bool, len(existing))
	counts := make(map[core.ID]int, len(existing))
	for _, item := range existing {
		known[item.Id] = true
		counts[item.Id] = item.OccurrenceCount
	}
	return &sessionProcessor{
		p:          p,
		src:        src,
		dedup:      d,
		insertOpts: insertOpts,
		result:     result,
		logger:     logger,
		known:      known,
		counts:     counts,
		touched:    make(map[core.ID]bool),
		last:       -1,
	}, nil
}

// resume counts the items an earlier attempt of the session already committed.
func (s *sessionProcessor) resume(ctx context.Context, lastChunk int) error {
	items, err := s.p.manager.SessionItems(ctx, s.src.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session items: %w", err)
	}
	for _, item := range items {
		if item.Project == s.src.Project && !s.touched[item.Id] {
			s.touched[item.Id] = true
			s.result.Items++
			s.result.NewItems++
		}
	}
	s.last = lastChunk
	return nil
}

func (s *sessionProcessor) process(ctx context.Context, chunk core.Chunk) error {
	s.attempted++
	candidates, err := s.p.extractor.Extract(ctx, chunk)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		kind := extract.Classify(err)
		s.p.metrics.ChunkFailed()
		s.logger.Warn("chunk extraction failed", "chunk", chunk.SequenceIndex, "kind", kind, "err", err)
		if s.attempted == 1 && kind == extract.FailureUnavailable {
			return fmt.Errorf("%w: %w", ErrExtractionUnavailable, err)
		}
		s.result.FailedChunks = append(s.result.FailedChunks, chunk.SequenceIndex)
		return nil
	}

	before := s.dedup.Dropped()
	touched := s.dedup.Add(chunk.SequenceIndex, candidates)
	if dropped := s.dedup.Dropped() - before; dropped > 0 {
		s.result.Dropped += dropped
		s.p.metrics.Dropped(dropped)
	}

	for _, item := range touched {
		opts := append([]index.InsertOption{index.FromCount(s.counts[item.Id])}, s.insertOpts...)
		if err := s.p.manager.Insert(ctx, item, opts...); err != nil {
			if !errors.Is(err, index.ErrVectorWrite) {
				return err
			}
			s.result.PendingVectors++
		}
		s.counts[item.Id] = item.OccurrenceCount
		if !s.touched[item.Id] {
			s.touched[item.Id] = true
			s.result.Items++
			if !s.known[item.Id] {
				s.result.NewItems++
			}
		}
	}

	s.p.metrics.ChunkProcessed()
	s.logger.Debug("chunk committed", "chunk", chunk.SequenceIndex, "candidates", len(candidates), "items", len(touched))
	s.last = chunk.SequenceIndex
	s.dirty = true
	return nil
}

func (s *sessionProcessor) checkpoint(ctx context.Context) error {
	if !s.dirty {
		return nil
	}
	err := s.p.checkpoints.Save(ctx, &core.ChunkCheckpoint{
		SessionID: s.src.SessionID,
		FileHash:  s.src.FileHash,
		LastChunk: s.last,
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	s.dirty = false
	return nil
}
