// Command report analyses one video (or a recorded track log) and writes the
// customer activity report as CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"countertime/internal/config"
	"countertime/internal/logger"
	"countertime/internal/report"
	"countertime/internal/repository/sqlite"
	"countertime/internal/services"
	"countertime/internal/services/ai"
	"countertime/internal/services/analysis"
	"countertime/internal/services/storage"
	"countertime/internal/zone"
)

func main() {
	videoPath := flag.String("video", "", "Video file to analyse")
	tracksPath := flag.String("tracks", "", "Track log to replay instead of a video")
	zonesFile := flag.String("zones", "", "YAML zones file (default: built-in counters)")
	outPath := flag.String("out", report.Filename, "CSV report path")
	snapshotDir := flag.String("snapshots", "", "Directory for entry snapshots (video only)")
	minVisit := flag.Float64("min-visit", -1, "Minimum visit length in seconds (default MIN_VISIT_SECONDS)")
	dbPath := flag.String("db", "", "Also store the run in this database")
	dumpTracks := flag.String("dump-tracks", "", "Record the tracked frames of a video to this file")
	flag.Parse()

	if (*videoPath == "") == (*tracksPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -video or -tracks is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	out := logger.NewWriter(os.Stdout)

	zones := zone.Default()
	if *zonesFile != "" {
		loaded, err := zone.LoadFile(*zonesFile)
		if err != nil {
			log.Fatalf("Failed to load zones: %v", err)
		}
		zones = loaded
	}

	runnerCfg := analysis.RunnerConfig{Zones: zones, MinVisit: cfg.MinVisit}
	if *minVisit >= 0 {
		runnerCfg.MinVisit = time.Duration(*minVisit * float64(time.Second))
	}

	var buffer *storage.BufferService
	if *dbPath != "" {
		db, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		runnerCfg.Runs = sqlite.NewRunRepository(db)
		runnerCfg.Visits = sqlite.NewVisitRepository(db)
		if *snapshotDir != "" {
			buffer = storage.NewBufferService(*snapshotDir, cfg.SnapshotBufferLimit, sqlite.NewSnapshotRepository(db), out)
		}
	} else if *snapshotDir != "" {
		buffer = storage.NewBufferService(*snapshotDir, cfg.SnapshotBufferLimit, nil, out)
	}

	runner := analysis.NewRunner(runnerCfg, out)
	defer runner.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		source   string
		pipeline analysis.Pipeline
	)
	if *tracksPath != "" {
		source = filepath.Base(*tracksPath)
		pipeline = analysis.TrackLogPipeline(*tracksPath)
	} else {
		source = filepath.Base(*videoPath)
		detector := ai.NewDetectorService(cfg, out)
		defer detector.Close()

		var trackLog io.Writer
		if *dumpTracks != "" {
			f, err := os.Create(*dumpTracks)
			if err != nil {
				log.Fatalf("Failed to create track log: %v", err)
			}
			defer f.Close()
			trackLog = f
		}
		manager := services.NewManager(detector, buffer, nil, zones, cfg, out)
		pipeline = manager.VideoPipeline(*videoPath, trackLog)
	}

	session, _, err := runner.Analyze(ctx, source, pipeline)
	if buffer != nil {
		buffer.FlushSnapshots()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Analysis failed: %v", err)
	}

	rows := report.FromLedger(session.Ledger())
	fmt.Println("\n--- Customer Activity Report ---")
	if len(rows) == 0 {
		fmt.Println(report.EmptyMessage)
		return
	}
	if err := report.WriteTable(os.Stdout, rows); err != nil {
		log.Fatalf("Failed to print report: %v", err)
	}

	if err := writeCSV(*outPath, rows); err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}
	fmt.Printf("\nReport successfully saved to %s\n", *outPath)
}

func writeCSV(path string, rows []report.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
