package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/minutes/chunk"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/dedup"
	"github.com/poiesic/minutes/index"
	"github.com/poiesic/minutes/metrics"
	"github.com/poiesic/minutes/reembed"
	"github.com/poiesic/minutes/storage"
)

// DefaultProject is used for sources that do not name a project.
const DefaultProject = "default"

// Extractor turns one chunk into candidate items. *extract.Adapter
// implements it with retries and a per-attempt timeout.
type Extractor interface {
	Extract(ctx context.Context, chunk core.Chunk) ([]core.CandidateItem, error)
}

// Source is one normalized transcript to ingest.
type Source struct {
	SessionID string
	Project   string
	// FileHash identifies the input. Sources without a hash are never skipped.
	FileHash string
	Text     string
	// Size selects the chunk budget tier. Zero means len(Text).
	Size int64
}

// Result summarizes one run.
type Result struct {
	RunID     string
	SessionID string
	// Skipped is set when the file hash was already processed. Record then
	// holds the earlier session record.
	Skipped bool
	// Resumed is set when the run continued after a saved checkpoint.
	Resumed bool
	// KeywordOnly is set when items were indexed without vectors.
	KeywordOnly    bool
	Chunks         int
	FailedChunks   []int
	Dropped        int
	Items          int // Distinct items created or merged by the run
	NewItems       int
	PendingVectors int // Inserts whose vector write failed
	Record         *core.SessionRecord
	Elapsed        time.Duration
}

// Pipeline runs sessions through chunking, extraction, deduplication and
// indexing.
type Pipeline struct {
	manager     *index.Manager
	sessions    storage.SessionLog
	checkpoints storage.CheckpointRepository
	extractor   Extractor
	pool        *ants.Pool
	chunkConfig func(size int64) chunk.Config
	tokenizer   chunk.Tokenizer
	dedupConfig dedup.Config
	autoReembed bool
	progress    io.Writer
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of sessions ProcessBatch runs at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunkConfig picks the chunker settings from the source size.
// The default uses chunk.DefaultTiers and chunk.DefaultOverlap.
func WithChunkConfig(fn func(size int64) chunk.Config) Option {
	return func(p *Pipeline) error {
		if fn == nil {
			return errors.New("chunk config func is nil")
		}
		p.chunkConfig = fn
		return nil
	}
}

// WithTokenizer sets the tokenizer that measures chunk budgets.
func WithTokenizer(t chunk.Tokenizer) Option {
	return func(p *Pipeline) error {
		p.tokenizer = t
		return nil
	}
}

// WithDedupConfig sets the similarity metric and threshold.
func WithDedupConfig(cfg dedup.Config) Option {
	return func(p *Pipeline) error {
		p.dedupConfig = cfg
		return nil
	}
}

// WithAutoReembed re-embeds pending items after every completed run.
func WithAutoReembed(enabled bool) Option {
	return func(p *Pipeline) error {
		p.autoReembed = enabled
		return nil
	}
}

// WithProgress reports chunk progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithMetrics sets the counters updated by runs.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = mt
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	manager *index.Manager,
	sessions storage.SessionLog,
	checkpoints storage.CheckpointRepository,
	extractor Extractor,
	opts ...Option,
) (*Pipeline, error) {
	if manager == nil {
		return nil, ErrManagerRequired
	}
	if sessions == nil {
		return nil, ErrSessionLogRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		manager:     manager,
		sessions:    sessions,
		checkpoints: checkpoints,
		extractor:   extractor,
		pool:        pool,
		chunkConfig: tieredChunkConfig,
		tokenizer:   chunk.WordTokenizer{},
		dedupConfig: dedup.DefaultConfig(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Fail on a bad dedup config here rather than on the first run
	if _, err := dedup.New(dedup.Session{}, p.dedupConfig); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func tieredChunkConfig(size int64) chunk.Config {
	return chunk.Config{
		MaxTokens: chunk.TierFor(chunk.DefaultTiers, size),
		Overlap:   chunk.DefaultOverlap,
	}
}

type processOptions struct {
	bypass bool
}

// ProcessOption tunes a single run.
type ProcessOption func(*processOptions)

// WithBypass processes the source even if its file hash was seen before.
func WithBypass() ProcessOption {
	return func(o *processOptions) {
		o.bypass = true
	}
}

// Process runs one session to completion.
//
// Items are committed after every chunk. If ctx is canceled between chunks
// the partial result is returned with the context error, committed items
// stay indexed and the checkpoint lets a later call resume. No session
// record is written for interrupted or failed runs.
func (p *Pipeline) Process(ctx context.Context, src Source, opts ...ProcessOption) (*Result, error) {
	var o processOptions
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(src.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidSource)
	}
	if src.Project == "" {
		src.Project = DefaultProject
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "session", src.SessionID, "project", src.Project)
	result := &Result{RunID: runID, SessionID: src.SessionID}

	if !o.bypass && src.FileHash != "" {
		rec, err := p.sessions.FindByHash(ctx, src.FileHash)
		if err != nil {
			return nil, fmt.Errorf("failed to look up file hash: %w", err)
		}
		if rec != nil {
			p.metrics.SessionSkipped()
			logger.Info("session already processed", "file_hash", src.FileHash, "seq", rec.Seq)
			result.Skipped = true
			result.Record = rec
			return result, nil
		}
	}

	if err := p.manager.Ping(ctx); err != nil {
		return nil, err
	}
	var insertOpts []index.InsertOption
	result.KeywordOnly = !p.manager.VectorsEnabled()
	if !result.KeywordOnly {
		if err := p.manager.PingVectors(ctx); err != nil {
			logger.Warn("vector backend unavailable, indexing keywords only", "err", err)
			result.KeywordOnly = true
			insertOpts = append(insertOpts, index.SkipVectors())
		}
	}

	size := src.Size
	if size <= 0 {
		size = int64(len(src.Text))
	}
	chunker, err := chunk.New(p.chunkConfig(size), chunk.WithTokenizer(p.tokenizer))
	if err != nil {
		return nil, err
	}
	chunks := chunker.Split(src.Text)
	result.Chunks = len(chunks)

	proc, err := p.newSessionProcessor(ctx, src, result, insertOpts, logger)
	if err != nil {
		return nil, err
	}

	resumeAfter := -1
	cp, err := p.checkpoints.Load(ctx, src.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp != nil && cp.FileHash == src.FileHash {
		resumeAfter = cp.LastChunk
		result.Resumed = true
		if err := proc.resume(ctx, cp.LastChunk); err != nil {
			return nil, err
		}
		logger.Info("resuming session", "after_chunk", cp.LastChunk)
	}

	remaining := len(chunks) - (resumeAfter + 1)
	logger.Info("processing session", "chunks", len(chunks), "remaining", remaining, "keyword_only", result.KeywordOnly)

	var progress *reembed.ProgressTracker
	if p.progress != nil && remaining > 0 {
		progress = reembed.NewProgressTracker(p.progress, remaining, 1).WithUnit("chunks")
		progress.Start()
	}

	for _, c := range chunks {
		if c.SequenceIndex <= resumeAfter {
			continue
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", "last_committed_chunk", proc.last)
			result.Elapsed = time.Since(start)
			return result, err
		}
		if err := proc.process(ctx, c); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
		if err := proc.checkpoint(ctx); err != nil {
			return result, err
		}
		if progress != nil {
			progress.Increment(1)
		}
	}
	if progress != nil {
		progress.Finish()
	}

	if remaining > 0 && len(result.FailedChunks) == remaining {
		logger.Error("no chunk could be extracted", "chunks", remaining)
		result.Elapsed = time.Since(start)
		return result, fmt.Errorf("%w: %d chunks", ErrAllChunksFailed, remaining)
	}

	rec, err := p.sessions.Append(ctx, &core.SessionRecord{
		SessionID:    src.SessionID,
		Project:      src.Project,
		FileHash:     src.FileHash,
		ItemCount:    result.Items,
		DroppedCount: result.Dropped,
		FailedChunks: len(result.FailedChunks),
	})
	if err != nil {
		return result, fmt.Errorf("failed to append session record: %w", err)
	}
	result.Record = rec
	if err := p.checkpoints.Delete(ctx, src.SessionID); err != nil {
		logger.Warn("failed to clear checkpoint", "err", err)
	}
	p.metrics.SessionProcessed()

	if p.autoReembed && !result.KeywordOnly {
		p.reembedPending(ctx, logger)
	}

	result.Elapsed = time.Since(start)
	logger.Info("session processed",
		"items", result.Items,
		"new_items", result.NewItems,
		"dropped", result.Dropped,
		"failed_chunks", len(result.FailedChunks),
		"pending_vectors", result.PendingVectors,
		"elapsed", result.Elapsed)
	return result, nil
}

// reembedPending embeds items left pending by this or earlier runs.
// Failures are logged; the items stay pending for a manual rebuild.
func (p *Pipeline) reembedPending(ctx context.Context, logger *slog.Logger) {
	pending, err := p.manager.PendingCount(ctx)
	if err != nil {
		logger.Warn("failed to count pending items", "err", err)
		return
	}
	if pending == 0 {
		return
	}
	res, err := p.manager.RebuildVectors(ctx, index.RebuildOptions{})
	if err != nil {
		logger.Warn("automatic re-embedding failed", "pending", pending, "err", err)
		return
	}
	logger.Info("re-embedded pending items", "embedded", res.Embedded, "failed", res.Failed)
}

// ProcessBatch runs sessions concurrently on the worker pool. Results are
// returned in source order; a source whose run failed before producing a
// result has a nil entry. Errors are joined and name their session.
func (p *Pipeline) ProcessBatch(ctx context.Context, sources []Source, opts ...ProcessOption) ([]*Result, error) {
	results := make([]*Result, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = p.Process(ctx, src, opts...)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("failed to schedule session: %w", err)
		}
	}
	wg.Wait()

	var joined []error
	for i, err := range errs {
		if err != nil {
			joined = append(joined, fmt.Errorf("session %s: %w", sources[i].SessionID, err))
		}
	}
	return results, errors.Join(joined...)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
