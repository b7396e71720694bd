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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/poiesic/minutes"
	"github.com/poiesic/minutes/config"
	"github.com/poiesic/minutes/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "minutes",
		Usage: "Extract, deduplicate and search knowledge from meeting transcripts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Knowledge base directory (overrides MINUTES_DB_PATH)",
			},
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "Project name (overrides MINUTES_PROJECT)",
			},
			&cli.BoolFlag{
				Name:  "no-embeddings",
				Usage: "Index keywords only and leave items pending their vectors",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. :9100",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "process",
				Usage:     "Extract items from one transcript",
				ArgsUsage: "<file>",
				Action:    processCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session id (defaults to the file name without extension)",
					},
					&cli.BoolFlag{
						Name:  "no-dedup",
						Usage: "Process the file even if its hash was seen before",
					},
				},
			},
			{
				Name:      "batch",
				Usage:     "Extract items from several transcripts concurrently",
				ArgsUsage: "<file>...",
				Action:    batchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-dedup",
						Usage: "Process files even if their hash was seen before",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of sessions processed at once (overrides MINUTES_POOL_SIZE)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search extracted items",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Search mode (hybrid, keyword, vector)",
						Value:   "hybrid",
					},
					&cli.StringFlag{
						Name:    "category",
						Aliases: []string{"c"},
						Usage:   "Only return items of this category",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.BoolFlag{
						Name:  "all-projects",
						Usage: "Search every project instead of the current one",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Embed items that are pending their vectors",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Re-embed every item, e.g. after changing the embedding model",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of items to process in each batch",
						Value: 32,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N items",
						Value: 100,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "repair",
				Usage:  "Reconcile the keyword and vector indexes with the item store",
				Action: repairCommand,
			},
			{
				Name:   "sessions",
				Usage:  "List processed sessions",
				Action: sessionsCommand,
				Flags: []cli.Flag{
					&cli.TimestampFlag{
						Name:   "since",
						Usage:  "Only sessions processed at or after this date",
						Layout: time.DateOnly,
					},
					&cli.TimestampFlag{
						Name:   "until",
						Usage:  "Only sessions processed before this date",
						Layout: time.DateOnly,
					},
					&cli.BoolFlag{
						Name:  "all-projects",
						Usage: "List sessions of every project",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show item counts per category",
				Action: statsCommand,
			},
		},
	}
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("project") {
		cfg.Project = c.String("project")
	}
	if c.Bool("no-embeddings") {
		cfg.EmbeddingsEnabled = false
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("pool-size") {
		cfg.PoolSize = c.Int("pool-size")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDatabase opens the knowledge base and, when configured, starts the
// metrics endpoint. The returned func closes both.
func openDatabase(ctx context.Context, c *cli.Context) (*minutes.Database, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	var opts []minutes.DatabaseOption
	stopMetrics := func() {}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, minutes.WithRegisterer(reg))
		mctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := metrics.Serve(mctx, cfg.MetricsAddr, reg); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
		stopMetrics = func() {
			cancel()
			<-done
		}
	}

	db, err := minutes.Open(cfg, opts...)
	if err != nil {
		stopMetrics()
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "err", err)
		}
		stopMetrics()
	}, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
