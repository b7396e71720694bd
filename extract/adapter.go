package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/retry"
)

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 2 * time.Minute
	DefaultRetryDelay = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
)

// Config bounds the retry loop around one extraction call.
type Config struct {
	// MaxRetries is the total number of attempts per chunk.
	MaxRetries int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// RetryDelay is the first backoff delay; it doubles per retry.
	RetryDelay time.Duration
}

// DefaultConfig returns the default retry settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTimeout,
		RetryDelay: DefaultRetryDelay,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.Timeout < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithoutCleanup disables metadata cleanup.
func WithoutCleanup() Option {
	return func(a *Adapter) {
		a.cleanup = false
	}
}

// Adapter turns chunks into candidate items through an ai.Extractor.
type Adapter struct {
	extractor ai.Extractor
	cfg       Config
	cleanup   bool
	logger    *slog.Logger
}

// NewAdapter wraps extractor.
func NewAdapter(extractor ai.Extractor, cfg Config, opts ...Option) (*Adapter, error) {
	if extractor == nil {
		return nil, ErrNoExtractor
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		extractor: extractor,
		cfg:       cfg,
		cleanup:   true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Extract returns the candidate items found in one chunk. When every attempt
// fails the last error is returned; Classify tells the caller why.
func (a *Adapter) Extract(ctx context.Context, chunk core.Chunk) ([]core.CandidateItem, error) {
	policy := retry.Policy{
		MaxAttempts: a.cfg.MaxRetries,
		BaseDelay:   a.cfg.RetryDelay,
		MaxDelay:    maxRetryDelay,
		Timeout:     a.cfg.Timeout,
		Retryable:   func(err error) bool { return Classify(err).Retryable() },
		OnRetry: func(attempt int, err error, delay time.Duration) {
			a.logger.Warn("extraction attempt failed",
				"chunk", chunk.SequenceIndex,
				"attempt", attempt,
				"kind", Classify(err),
				"delay", delay,
				"err", err)
		},
	}

	raw, err := retry.DoValue(ctx, policy, func(ctx context.Context) ([]ai.ExtractedItem, error) {
		return a.extractor.ExtractItems(ctx, chunk.Text)
	})
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", chunk.SequenceIndex, err)
	}

	candidates := make([]core.CandidateItem, 0, len(raw))
	for _, item := range raw {
		candidates = append(candidates, a.toCandidate(item, chunk))
	}
	a.logger.Debug("extracted candidates", "chunk", chunk.SequenceIndex, "count", len(candidates))
	return candidates, nil
}

// toCandidate keeps unknown categories as the zero Category so validation
// downstream counts them as malformed.
func (a *Adapter) toCandidate(item ai.ExtractedItem, chunk core.Chunk) core.CandidateItem {
	category, err := core.ParseCategory(item.Category)
	if err != nil {
		a.logger.Debug("unknown category from extractor", "category", item.Category)
		category = 0
	}
	md := item.Metadata
	if a.cleanup {
		md = Cleanup(category, md, chunk.Text)
	}
	return core.CandidateItem{
		Category:    category,
		Text:        strings.TrimSpace(item.Text),
		Metadata:    md,
		SourceChunk: chunk.SequenceIndex,
	}
}
