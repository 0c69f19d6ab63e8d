// internal/watcher/watcher.go
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aegislab/aegishive/internal/detect"
	"github.com/aegislab/aegishive/internal/forensic"
	"github.com/aegislab/aegishive/internal/history"
	"github.com/aegislab/aegishive/internal/metrics"
	"github.com/aegislab/aegishive/internal/telemetry"
)

// DefaultInterval is the poll delay between directory scans.
const DefaultInterval = 5 * time.Second

// Watcher polls a directory for telemetry CSV batches and feeds every
// row through the detection engine. Files are consumed at-most-once:
// each file is deleted after processing whether or not it parsed.
type Watcher struct {
	dir      string
	interval time.Duration
	engine   *detect.Engine
	reporter *forensic.Reporter
	ledger   *history.Ledger
}

// New creates a watcher over dir. An interval <= 0 selects
// DefaultInterval.
func New(dir string, interval time.Duration, engine *detect.Engine, reporter *forensic.Reporter, ledger *history.Ledger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		engine:   engine,
		reporter: reporter,
		ledger:   ledger,
	}
}

// Run starts the poll loop. It scans immediately, then on every tick,
// until ctx is cancelled. The in-flight file is allowed to finish; the
// stop signal is checked between files and between cycles.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	log.Printf("Watcher starting: dir=%s interval=%s", w.dir, w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Watcher shutting down")
			return nil
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	paths, err := filepath.Glob(filepath.Join(w.dir, "*.csv"))
	if err != nil {
		log.Printf("Watcher scan error: %v", err)
		return
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		w.processFile(ctx, path)
	}
}

// processFile parses one telemetry batch and classifies every row.
// Errors are logged and must never terminate the poll loop. The file is
// removed afterwards regardless of outcome: a malformed batch is lost,
// not retried. Deliberate at-most-once policy; see DESIGN.md before
// changing it.
func (w *Watcher) processFile(ctx context.Context, path string) {
	log.Printf("Watcher: processing %s", filepath.Base(path))

	records, skipped, err := w.parseFile(path)
	if skipped > 0 {
		metrics.WatcherRowsSkipped.Add(float64(skipped))
		log.Printf("Watcher: skipped %d malformed rows in %s", skipped, filepath.Base(path))
	}

	outcome := "consumed"
	if err != nil {
		outcome = "skipped"
		log.Printf("Watcher: cannot parse %s: %v", filepath.Base(path), err)
	} else {
		for _, rec := range records {
			w.classify(ctx, rec)
		}
	}
	metrics.WatcherFiles.WithLabelValues(outcome).Inc()

	if err := os.Remove(path); err != nil {
		log.Printf("Watcher: remove %s: %v", filepath.Base(path), err)
	}
}

func (w *Watcher) parseFile(path string) ([]telemetry.Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return telemetry.ParseCSV(f)
}

func (w *Watcher) classify(ctx context.Context, rec telemetry.Record) {
	res, err := w.engine.Classify(rec)
	if err != nil {
		metrics.ClassifyErrors.Inc()
		log.Printf("Watcher: classify error: %v", err)
		return
	}
	metrics.RecordsClassified.WithLabelValues(telemetry.SourceWatcher, string(res.Verdict)).Inc()

	if res.Verdict != telemetry.VerdictMalicious {
		return
	}

	log.Printf("Watcher: THREAT DETECTED (p=%.3f)", res.Probability)
	report := w.reporter.Explain(ctx, rec)
	w.ledger.Record(telemetry.NewDetectionEvent(telemetry.SourceWatcher, res.Verdict, res.Probability, report))
}
