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


package minutes

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/ai/openai"
	"github.com/poiesic/minutes/chunk"
	"github.com/poiesic/minutes/config"
	"github.com/poiesic/minutes/extract"
	"github.com/poiesic/minutes/index"
	"github.com/poiesic/minutes/ingestion"
	"github.com/poiesic/minutes/metrics"
	"github.com/poiesic/minutes/search"
	"github.com/poiesic/minutes/storage"
	"github.com/poiesic/minutes/storage/badger"
	"github.com/poiesic/minutes/storage/bleve"
	"github.com/poiesic/minutes/storage/qdrant"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	storeDir     = "store"
	keywordIndex = "keyword.bleve"
)

// Database owns every store of a knowledge base and the AI provider, and
// hands out pipelines and search engines wired to them.
type Database struct {
	cfg      *config.Config
	stores   *badger.Stores
	keyword  *bleve.Index
	remote   storage.VectorIndex // Set when vectors live outside badger
	provider ai.Provider
	manager  *index.Manager
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider   ai.Provider
	registerer prometheus.Registerer
	logger     *slog.Logger
	inMemory   bool
}

// WithProvider replaces the OpenAI-compatible provider built from config.
func WithProvider(p ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = p
	}
}

// WithRegisterer registers the pipeline and search counters with reg.
func WithRegisterer(reg prometheus.Registerer) DatabaseOption {
	return func(o *databaseOptions) {
		o.registerer = reg
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// InMemory keeps the item store and keyword index in memory.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// Open opens (or creates) the knowledge base described by cfg.
func Open(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mt, err := metrics.New(options.registerer)
	if err != nil {
		return nil, err
	}

	db := &Database{cfg: cfg, metrics: mt, logger: options.logger}
	if err := db.openStores(options.inMemory); err != nil {
		db.Close()
		return nil, err
	}

	db.provider = options.provider
	if db.provider == nil {
		aiCfg, err := cfg.AIConfig()
		if err != nil {
			db.Close()
			return nil, err
		}
		if db.provider, err = openai.NewProvider(aiCfg); err != nil {
			db.Close()
			return nil, err
		}
	}

	managerOpts := []index.Option{index.WithLogger(db.logger), index.WithMetrics(mt)}
	if cfg.EmbeddingsEnabled {
		vectors, err := db.openVectors()
		if err != nil {
			db.Close()
			return nil, err
		}
		managerOpts = append(managerOpts, index.WithVectors(vectors, db.provider.Embedder(), cfg.EmbeddingModel))
	}
	if db.manager, err = index.NewManager(db.stores.Items, db.keyword, managerOpts...); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) openStores(inMemory bool) error {
	var err error
	if inMemory {
		if db.stores, err = badger.NewMemoryStores(); err != nil {
			return err
		}
		db.keyword, err = bleve.NewMemoryIndex()
		return err
	}

	if err := os.MkdirAll(db.cfg.DBPath, 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	if db.stores, err = badger.OpenStores(filepath.Join(db.cfg.DBPath, storeDir), false); err != nil {
		return err
	}
	db.keyword, err = bleve.Open(filepath.Join(db.cfg.DBPath, keywordIndex))
	return err
}

func (db *Database) openVectors() (storage.VectorIndex, error) {
	switch db.cfg.VectorBackend {
	case config.VectorBackendQdrant:
		idx, err := qdrant.Open(db.cfg.QdrantURL, db.cfg.QdrantCollection,
			qdrant.WithAPIKey(db.cfg.QdrantAPIKey),
			qdrant.WithLogger(db.logger.With("component", "qdrant")))
		if err != nil {
			return nil, err
		}
		db.remote = idx
		return idx, nil
	default:
		return db.stores.Vectors, nil
	}
}

// Close releases the provider and every store. It is safe to call on a
// partially opened Database.
func (db *Database) Close() error {
	var errs []error
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if db.remote != nil {
		if err := db.remote.Close(); err != nil {
			db.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	if db.keyword != nil {
		if err := db.keyword.Close(); err != nil {
			db.logger.Error("error closing keyword index", "err", err)
			errs = append(errs, err)
		}
	}
	if db.stores != nil {
		if err := db.stores.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (db *Database) Config() *config.Config {
	return db.cfg
}

func (db *Database) Manager() *index.Manager {
	return db.manager
}

func (db *Database) Sessions() storage.SessionLog {
	return db.stores.Sessions
}

func (db *Database) Metrics() *metrics.Metrics {
	return db.metrics
}

// NewPipeline builds an ingestion pipeline from the configuration. Options
// given here override the configured ones.
func (db *Database) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	tokenizer, err := chunk.NewTokenizer(db.cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	dedupCfg, err := db.cfg.DedupConfig()
	if err != nil {
		return nil, err
	}
	adapter, err := extract.NewAdapter(db.provider.Extractor(), db.cfg.ExtractConfig(),
		extract.WithLogger(db.logger.With("component", "extract")))
	if err != nil {
		return nil, err
	}

	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithPoolSize(db.cfg.PoolSize),
		ingestion.WithChunkConfig(db.cfg.ChunkConfig),
		ingestion.WithTokenizer(tokenizer),
		ingestion.WithDedupConfig(dedupCfg),
		ingestion.WithAutoReembed(db.cfg.AutoReembed()),
		ingestion.WithMetrics(db.metrics),
	}
	return ingestion.NewPipeline(db.manager, db.stores.Sessions, db.stores.Checkpoints, adapter, append(base, opts...)...)
}

// NewEngine builds a search engine over the indexes.
func (db *Database) NewEngine(opts ...search.Option) (*search.Engine, error) {
	base := []search.Option{search.WithLogger(db.logger), search.WithMetrics(db.metrics)}
	return search.NewEngine(db.manager, append(base, opts...)...)
}
