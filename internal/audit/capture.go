// internal/audit/capture.go
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aegislab/aegishive/internal/telemetry"
)

const timestampFormat = "2006-01-02 15:04:05"

var header = []string{"timestamp", "duration", "orig_bytes", "resp_bytes", "orig_pkts", "resp_pkts", "service", "verdict"}

// CaptureLog is the durable append-only record of every submission the
// endpoint accepted, benign and malicious alike. Appends are serialized
// by a mutex so concurrent request handlers cannot interleave rows.
type CaptureLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens the capture log for appending, creating it with a header
// row if it does not exist yet.
func Open(path string) (*CaptureLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open capture log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CaptureLog{f: f, path: path}, nil
}

// Append writes one immutable audit row for a classified submission.
func (c *CaptureLog) Append(rec telemetry.Record, verdict telemetry.Verdict) error {
	row := []string{
		time.Now().Format(timestampFormat),
		strconv.FormatFloat(rec.Duration, 'f', -1, 64),
		strconv.FormatInt(rec.OrigBytes, 10),
		strconv.FormatInt(rec.RespBytes, 10),
		strconv.FormatInt(rec.OrigPkts, 10),
		strconv.FormatInt(rec.RespPkts, 10),
		rec.Service,
		string(verdict),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := csv.NewWriter(c.f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("append capture row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Path returns the backing file location.
func (c *CaptureLog) Path() string {
	return c.path
}

// Close closes the backing file.
func (c *CaptureLog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.f.Close()
}
