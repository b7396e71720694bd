package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/index"
	"github.com/poiesic/minutes/ingestion"
	"github.com/poiesic/minutes/reembed"
	"github.com/poiesic/minutes/search"
	"github.com/poiesic/minutes/storage"
	"github.com/urfave/cli/v2"
)

// commandContext is canceled on SIGINT/SIGTERM so an interrupted run can
// stop between chunks and resume later.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// hashContent returns the hex BLAKE2b-256 digest of a transcript.
func hashContent(data []byte) (string, error) {
	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sessionIDFromPath names a session after its file: "notes/2025-01-07.txt"
// becomes "2025-01-07".
func sessionIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readSource(path, sessionID, project string) (ingestion.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingestion.Source{}, fmt.Errorf("failed to read transcript: %w", err)
	}
	hash, err := hashContent(data)
	if err != nil {
		return ingestion.Source{}, err
	}
	if sessionID == "" {
		sessionID = sessionIDFromPath(path)
	}
	return ingestion.Source{
		SessionID: sessionID,
		Project:   project,
		FileHash:  hash,
		Text:      string(data),
		Size:      int64(len(data)),
	}, nil
}

func processOptions(c *cli.Context) []ingestion.ProcessOption {
	if c.Bool("no-dedup") {
		return []ingestion.ProcessOption{ingestion.WithBypass()}
	}
	return nil
}

func printResult(w io.Writer, path string, res *ingestion.Result) {
	if res == nil {
		return
	}
	if res.Skipped {
		fmt.Fprintf(w, "%s: already processed as session %s (seq %d), skipped\n", path, res.Record.SessionID, res.Record.Seq)
		return
	}
	fmt.Fprintf(w, "%s: session %s, %d chunks, %d items (%d new), %d dropped",
		path, res.SessionID, res.Chunks, res.Items, res.NewItems, res.Dropped)
	if len(res.FailedChunks) > 0 {
		fmt.Fprintf(w, ", failed chunks %v", res.FailedChunks)
	}
	if res.KeywordOnly || res.PendingVectors > 0 {
		fmt.Fprintf(w, ", vectors pending")
	}
	fmt.Fprintf(w, " in %s\n", res.Elapsed.Round(time.Millisecond))
}

func processCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one transcript file")
	}
	ctx, stop := commandContext(c)
	defer stop()

	db, closeDB, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	path := c.Args().First()
	src, err := readSource(path, c.String("session"), db.Config().Project)
	if err != nil {
		return err
	}

	pipeline, err := db.NewPipeline(ingestion.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	res, err := pipeline.Process(ctx, src, processOptions(c)...)
	printResult(c.App.Writer, path, res)
	if err != nil {
		return fmt.Errorf("processing %s: %w", path, err)
	}
	return nil
}

func batchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("expected at least one transcript file")
	}
	ctx, stop := commandContext(c)
	defer stop()

	db, closeDB, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	paths := c.Args().Slice()
	sources := make([]ingestion.Source, 0, len(paths))
	for _, path := range paths {
		src, err := readSource(path, "", db.Config().Project)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	pipeline, err := db.NewPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	results, err := pipeline.ProcessBatch(ctx, sources, processOptions(c)...)
	for i, res := range results {
		printResult(c.App.Writer, paths[i], res)
	}
	return err
}

func searchCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("a query is required")
	}
	mode, err := core.ParseSearchMode(c.String("mode"))
	if err != nil {
		return err
	}
	var category core.Category
	if name := c.String("category"); name != "" {
		if category, err = core.ParseCategory(name); err != nil {
			return err
		}
	}

	ctx, stop := commandContext(c)
	defer stop()
	db, closeDB, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	engine, err := db.NewEngine()
	if err != nil {
		return err
	}
	q := search.Query{Text: text, Mode: mode, Category: category, Limit: c.Int("limit")}
	if !c.Bool("all-projects") {
		q.Project = db.Config().Project
	}
	results, err := engine.Search(ctx, q)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Found %d results\n", len(results))
	for i, r := range results {
		fmt.Fprintf(w, "%d: [%s] %s (%s, x%d)[%0.4f]\n",
			i+1, r.Item.Category, r.Item.Text, r.Item.SessionID, r.Item.OccurrenceCount, r.Score)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	ctx, stop := commandContext(c)
	defer stop()
	db, closeDB, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	cfg := db.Config()
	res, err := db.Manager().RebuildVectors(ctx, index.RebuildOptions{
		All:      c.Bool("all"),
		Progress: c.App.ErrWriter,
		Config: &reembed.Config{
			BatchSize:      c.Int("batch-size"),
			ReportInterval: c.Int("report-interval"),
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     c.Duration("retry-delay"),
		},
	})
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Embedded %d of %d items with %s (%d failed)\n",
		res.Embedded, res.Selected, cfg.EmbeddingModel, res.Failed)
	return nil
}

func repairCommand(c *cli.Context) error {
	ctx, stop := commandContext(c)
	defer stop()
	db, closeDB, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := db.Manager().Repair(ctx)
	if err != nil {
		return err
	}
	w := c.App.Writer
	if !report.Changed() {
		fmt.Fprintln(w, "Indexes are consistent")
		return nil
	}
	fmt.Fprintf(w, "Removed %d orphaned vectors and %d orphaned keyword entries\n", report.VectorOrphans, report.KeywordOrphans)
	fmt.Fprintf(w, "Restored %d keyword entries, marked %d items pending\n", report.KeywordRestored, report.MarkedPending)
	if report.MarkedPending > 0 {
		fmt.Fprintln(w, "Run 'minutes reembed' to embed pending items")
	}
	return nil
}

func sessionsCommand(c *cli.Context) error {
	ctx, stop := commandContext(c)
	defer stop()
	db, closeDB, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	var filter storage.SessionFilter
	if !c.Bool("all-projects") {
		filter.Project = db.Config().Project
	}
	if since := c.Timestamp("since"); since != nil {
		filter.Since = *since
	}
	if until := c.Timestamp("until"); until != nil {
		filter.Until = *until
	}
	records, err := db.Sessions().List(ctx, filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSESSION\tPROJECT\tPROCESSED\tITEMS\tDROPPED\tFAILED\tHASH")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Seq, r.SessionID, r.Project, r.ProcessedAt.Local().Format(time.DateTime),
			r.ItemCount, r.DroppedCount, r.FailedChunks, shortHash(r.FileHash))
	}
	return tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func statsCommand(c *cli.Context) error {
	ctx, stop := commandContext(c)
	defer stop()
	db, closeDB, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer closeDB()

	project := db.Config().Project
	counts, err := db.Manager().Counts(ctx, project)
	if err != nil {
		return err
	}
	pending, err := db.Manager().PendingCount(ctx)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Project: %s\n", project)
	total := 0
	for _, category := range core.Categories {
		fmt.Fprintf(w, "  %-12s %d\n", category, counts[category])
		total += counts[category]
	}
	fmt.Fprintf(w, "  %-12s %d\n", "total", total)
	fmt.Fprintf(w, "Pending vectors (all projects): %d\n", pending)
	return nil
}
