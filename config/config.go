// Package config loads process configuration from the environment.
//
// Variables carry the MINUTES_ prefix. A .env file in the working directory
// is loaded first when present; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/chunk"
	"github.com/poiesic/minutes/dedup"
	"github.com/poiesic/minutes/extract"
)

// Prefix is the environment variable prefix.
const Prefix = "MINUTES"

// Vector backends.
const (
	VectorBackendBadger = "badger"
	VectorBackendQdrant = "qdrant"
)

// Re-embedding policies.
const (
	ReembedManual = "manual"
	ReembedAuto   = "auto"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	DBPath  string `envconfig:"DB_PATH" default:"minutes.db"`
	Project string `envconfig:"PROJECT" default:"default"`

	LLMHost  string `envconfig:"LLM_HOST" default:"http://localhost:11434/v1"`
	LLMModel string `envconfig:"LLM_MODEL" default:"qwen3:4b"`
	APIKey   string `envconfig:"API_KEY"`

	// EmbeddingHost defaults to LLMHost
	EmbeddingHost     string `envconfig:"EMBEDDING_HOST"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL" default:"embeddinggemma"`
	EmbeddingsEnabled bool   `envconfig:"EMBEDDINGS_ENABLED" default:"true"`

	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"badger"`
	QdrantURL        string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"minutes"`
	QdrantAPIKey     string `envconfig:"QDRANT_API_KEY"`

	// MaxChunkTokens overrides the file-size tiers when positive
	MaxChunkTokens int    `envconfig:"MAX_CHUNK_TOKENS" default:"0"`
	ChunkOverlap   int    `envconfig:"CHUNK_OVERLAP" default:"50"`
	Tokenizer      string `envconfig:"TOKENIZER" default:"words"`

	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	ExtractTimeout time.Duration `envconfig:"EXTRACT_TIMEOUT" default:"2m"`
	RetryDelay     time.Duration `envconfig:"RETRY_DELAY" default:"2s"`

	DedupThreshold float64 `envconfig:"DEDUP_THRESHOLD" default:"0.85"`
	DedupMetric    string  `envconfig:"DEDUP_METRIC" default:"token_set"`

	ReembedPolicy string `envconfig:"REEMBED_POLICY" default:"manual"`
	PoolSize      int    `envconfig:"POOL_SIZE" default:"4"`

	// Prompt overrides: a file path or the prompt text itself
	SystemPrompt     string `envconfig:"SYSTEM_PROMPT"`
	ExtractionPrompt string `envconfig:"EXTRACTION_PROMPT"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load reads .env (if any) and the environment, then normalizes and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize lowercases enumerations and fills derived defaults.
func (c *Config) Normalize() {
	c.VectorBackend = strings.ToLower(strings.TrimSpace(c.VectorBackend))
	c.ReembedPolicy = strings.ToLower(strings.TrimSpace(c.ReembedPolicy))
	c.DedupMetric = strings.ToLower(strings.TrimSpace(c.DedupMetric))
	c.Tokenizer = strings.TrimSpace(c.Tokenizer)
	c.Project = strings.TrimSpace(c.Project)
	if c.EmbeddingHost == "" {
		c.EmbeddingHost = c.LLMHost
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.DBPath != "", "DB_PATH is required")
	check(c.Project != "", "PROJECT is required")
	check(c.VectorBackend == VectorBackendBadger || c.VectorBackend == VectorBackendQdrant,
		"VECTOR_BACKEND must be badger or qdrant, got %q", c.VectorBackend)
	check(c.ReembedPolicy == ReembedManual || c.ReembedPolicy == ReembedAuto,
		"REEMBED_POLICY must be manual or auto, got %q", c.ReembedPolicy)
	check(c.MaxChunkTokens >= 0, "MAX_CHUNK_TOKENS must not be negative")
	check(c.ChunkOverlap >= 0, "CHUNK_OVERLAP must not be negative")
	check(c.MaxChunkTokens == 0 || c.ChunkOverlap < c.MaxChunkTokens,
		"CHUNK_OVERLAP (%d) must be less than MAX_CHUNK_TOKENS (%d)", c.ChunkOverlap, c.MaxChunkTokens)
	check(c.MaxRetries >= 1, "MAX_RETRIES must be at least 1")
	check(c.ExtractTimeout > 0, "EXTRACT_TIMEOUT must be positive")
	check(c.RetryDelay >= 0, "RETRY_DELAY must not be negative")
	check(c.DedupThreshold > 0 && c.DedupThreshold <= 1, "DEDUP_THRESHOLD must be in (0, 1], got %v", c.DedupThreshold)
	check(c.PoolSize >= 1, "POOL_SIZE must be at least 1")
	if _, err := dedup.ParseMetric(c.DedupMetric); err != nil {
		errs = append(errs, err)
	}
	if c.EmbeddingsEnabled && c.VectorBackend == VectorBackendQdrant {
		check(c.QdrantURL != "", "QDRANT_URL is required for the qdrant backend")
		check(c.QdrantCollection != "", "QDRANT_COLLECTION is required for the qdrant backend")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// AutoReembed reports whether completed runs re-embed pending items.
func (c *Config) AutoReembed() bool {
	return c.ReembedPolicy == ReembedAuto
}

// AIConfig builds the provider configuration, resolving prompt overrides.
func (c *Config) AIConfig() (*ai.Config, error) {
	system, err := ResolvePrompt(c.SystemPrompt)
	if err != nil {
		return nil, err
	}
	extraction, err := ResolvePrompt(c.ExtractionPrompt)
	if err != nil {
		return nil, err
	}
	cfg := ai.NewConfig(
		ai.WithExtractionHost(c.LLMHost),
		ai.WithExtractionModel(c.LLMModel),
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithToken(c.APIKey),
		ai.WithPrompts(system, extraction),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ChunkConfig returns the chunker settings for a transcript of size bytes.
// An explicit MAX_CHUNK_TOKENS wins over the size tiers.
func (c *Config) ChunkConfig(size int64) chunk.Config {
	maxTokens := c.MaxChunkTokens
	if maxTokens <= 0 {
		maxTokens = chunk.TierFor(chunk.DefaultTiers, size)
	}
	return chunk.Config{MaxTokens: maxTokens, Overlap: c.ChunkOverlap}
}

// ExtractConfig returns the retry settings of the extraction adapter.
func (c *Config) ExtractConfig() extract.Config {
	return extract.Config{
		MaxRetries: c.MaxRetries,
		Timeout:    c.ExtractTimeout,
		RetryDelay: c.RetryDelay,
	}
}

// DedupConfig returns the similarity settings.
func (c *Config) DedupConfig() (dedup.Config, error) {
	metric, err := dedup.ParseMetric(c.DedupMetric)
	if err != nil {
		return dedup.Config{}, err
	}
	return dedup.Config{Threshold: c.DedupThreshold, Metric: metric}, nil
}

// ResolvePrompt returns the contents of value when it names a readable
// file, and value itself otherwise.
func ResolvePrompt(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	info, err := os.Stat(value)
	if err != nil || info.IsDir() {
		return value, nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", value, err)
	}
	return string(data), nil
}
