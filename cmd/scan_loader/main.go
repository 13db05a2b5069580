package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lcalzada-xor/vmap/internal/adapters/ingest"
	"github.com/lcalzada-xor/vmap/internal/adapters/storage"
	"github.com/lcalzada-xor/vmap/internal/core/services/scoring"
	"github.com/lcalzada-xor/vmap/internal/core/services/stats"
	"github.com/lcalzada-xor/vmap/internal/core/services/unify"
	"github.com/lcalzada-xor/vmap/internal/telemetry"
)

// scan_loader runs the unification pipeline offline: it ingests one or more
// scanner export files, merges them into a single dataset and writes the
// unified CSV, without starting the web server.
func main() {
	output := flag.String("o", "", "Unified CSV output path (default stdout)")
	dbPath := flag.String("db", "", "Persist the dataset to this SQLite database (empty to skip)")
	minMatches := flag.Int("min-signature-matches", ingest.DefaultMinSignatureMatches, "CSV header columns required to attribute a scanner format")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: scan_loader [-o out.csv] [-db vmap.db] <export>...")
		os.Exit(2)
	}

	telemetry.InitMetrics()

	scorer, err := scoring.NewScorer(scoring.DefaultProfile())
	if err != nil {
		slog.Error("invalid weight profile", "error", err)
		os.Exit(1)
	}

	opts := []unify.Option{}
	if *dbPath != "" {
		store, err := storage.NewSQLiteAdapter(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "path", *dbPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		opts = append(opts, unify.WithStorage(store))
	}

	pipeline := unify.NewPipeline(ingest.NewReader(*minMatches), scorer, opts...)
	ctx := context.Background()

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("failed to open file", "path", path, "error", err)
			os.Exit(1)
		}
		result, err := pipeline.Process(ctx, path, f)
		f.Close()
		if err != nil {
			slog.Error("processing failed", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("file processed",
			"path", path,
			"scanner", result.Scanner,
			"rows", result.Summary.TotalInputRows,
			"findings", result.Count)
	}

	ds := pipeline.Current()
	if ds == nil {
		slog.Error("no dataset produced")
		os.Exit(1)
	}

	out := os.Stdout
	if *output != "" {
		out, err = os.Create(*output)
		if err != nil {
			slog.Error("failed to create output", "path", *output, "error", err)
			os.Exit(1)
		}
		defer out.Close()
	}
	if err := unify.WriteCSV(out, ds.Findings); err != nil {
		slog.Error("CSV write failed", "error", err)
		os.Exit(1)
	}

	overview := stats.Overview(ds.Findings)
	slog.Info("dataset written",
		"findings", overview.TotalFindings,
		"hosts", overview.UniqueHosts,
		"vrr_avg", overview.VRRAverage)
}
