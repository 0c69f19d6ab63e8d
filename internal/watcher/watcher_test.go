// internal/watcher/watcher_test.go
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aegislab/aegishive/internal/detect"
	"github.com/aegislab/aegishive/internal/forensic"
	"github.com/aegislab/aegishive/internal/history"
	"github.com/aegislab/aegishive/internal/model"
	"github.com/aegislab/aegishive/internal/telemetry"
)

func testClassifier() *model.Classifier {
	return &model.Classifier{
		Version:      1,
		FeatureNames: []string{"duration", "orig_bytes"},
		Means:        []float64{10, 5000},
		Stddevs:      []float64{10, 10000},
		Weights:      []float64{-2, 3},
		Bias:         0,
		ConnStates:   model.DefaultConnStates,
	}
}

func newTestWatcher(t *testing.T) (*Watcher, *history.Ledger, string) {
	t.Helper()
	dir := t.TempDir()
	ledger := history.New(20)
	engine := detect.NewEngine(testClassifier(), 0.25)
	reporter := forensic.NewReporter(nil, time.Second)
	return New(dir, time.Second, engine, reporter, ledger), ledger, dir
}

func writeBatch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	return path
}

func TestProcessFileMaliciousRow(t *testing.T) {
	w, ledger, dir := newTestWatcher(t)

	path := writeBatch(t, dir, "batch.csv",
		"duration,orig_bytes,resp_bytes,conn_state\n"+
			"10.0,45000,500,S0\n")
	w.processFile(context.Background(), path)

	events := ledger.Snapshot()
	if len(events) != 1 {
		t.Fatalf("Ledger has %d entries, want 1", len(events))
	}
	if events[0].Source != telemetry.SourceWatcher {
		t.Errorf("Source = %q, want %q", events[0].Source, telemetry.SourceWatcher)
	}
	// No forensic endpoints configured, so the fallback text applies.
	if events[0].Report != forensic.FallbackReport {
		t.Errorf("Report = %q, want fallback", events[0].Report)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Processed file should be removed")
	}
}

func TestProcessFileBenignAndMalformedRows(t *testing.T) {
	// One clean benign row plus one malformed row: the file is consumed
	// and removed, the ledger stays empty, and nothing panics.
	w, ledger, dir := newTestWatcher(t)

	path := writeBatch(t, dir, "mixed.csv",
		"duration,orig_bytes,resp_bytes,conn_state\n"+
			"30.0,500,4000,SF\n"+
			"not-a-number,x,y,z\n")
	w.processFile(context.Background(), path)

	if ledger.Len() != 0 {
		t.Errorf("Ledger has %d entries, want 0", ledger.Len())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Processed file should be removed")
	}
}

func TestProcessFileUnparseableRemoved(t *testing.T) {
	// A file with no usable header is still deleted: at-most-once, no
	// retry queue.
	w, ledger, dir := newTestWatcher(t)

	path := writeBatch(t, dir, "garbage.csv", "this is not telemetry\n")
	w.processFile(context.Background(), path)

	if ledger.Len() != 0 {
		t.Errorf("Ledger has %d entries, want 0", ledger.Len())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Unparseable file should still be removed")
	}
}

func TestScanIgnoresNonCSV(t *testing.T) {
	w, _, dir := newTestWatcher(t)

	path := writeBatch(t, dir, "notes.txt", "leave me alone\n")
	w.scan(context.Background())

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Non-CSV file should be untouched: %v", err)
	}
}

func TestScanProcessesEveryBatch(t *testing.T) {
	w, ledger, dir := newTestWatcher(t)

	writeBatch(t, dir, "a.csv",
		"duration,orig_bytes,resp_bytes,conn_state\n2.0,60000,300,S0\n")
	writeBatch(t, dir, "b.csv",
		"duration,orig_bytes,resp_bytes,conn_state\n1.0,80000,200,REJ\n")
	w.scan(context.Background())

	if ledger.Len() != 2 {
		t.Errorf("Ledger has %d entries, want 2", ledger.Len())
	}
	remaining, _ := filepath.Glob(filepath.Join(dir, "*.csv"))
	if len(remaining) != 0 {
		t.Errorf("%d batches left behind, want 0", len(remaining))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, _ := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watcher did not stop after cancel")
	}
}

func TestRunCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "incoming", "telemetry")
	w := New(dir, time.Second, detect.NewEngine(testClassifier(), 0.25), forensic.NewReporter(nil, time.Second), history.New(20))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Watch directory was not created: %v", err)
	}
}
