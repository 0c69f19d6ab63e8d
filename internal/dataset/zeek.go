// internal/dataset/zeek.go
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aegislab/aegishive/internal/telemetry"
)

// Legacy Zeek TSV conn.log column indices for the fields we train on.
const (
	tsvDuration  = 8
	tsvOrigBytes = 9
	tsvRespBytes = 10
	tsvConnState = 11
)

// zeekConn is the subset of a Zeek JSON conn record we care about.
// Numeric fields arrive as numbers or "-"; json.RawMessage defers that.
type zeekConn struct {
	Duration  json.RawMessage `json:"duration"`
	OrigBytes json.RawMessage `json:"orig_bytes"`
	RespBytes json.RawMessage `json:"resp_bytes"`
	OrigPkts  json.RawMessage `json:"orig_pkts"`
	RespPkts  json.RawMessage `json:"resp_pkts"`
	ConnState string          `json:"conn_state"`
	Service   string          `json:"service"`
}

// LabelFromFilename derives the training label: files named with
// "benign" are the baseline class, everything else is attack capture.
func LabelFromFilename(name string) int {
	if strings.Contains(strings.ToLower(name), "benign") {
		return 0
	}
	return 1
}

// ConvertZeek reads one Zeek conn log (JSON-lines first, legacy TSV as
// fallback) and writes a labeled training CSV into dstDir. Returns the
// number of rows written and the output path.
func ConvertZeek(srcPath, dstDir string) (int, string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	records, err := parseZeek(f)
	if err != nil {
		return 0, "", fmt.Errorf("parse %s: %w", filepath.Base(srcPath), err)
	}
	if len(records) == 0 {
		return 0, "", fmt.Errorf("no usable rows in %s", filepath.Base(srcPath))
	}

	label := LabelFromFilename(filepath.Base(srcPath))

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return 0, "", err
	}
	stem := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	outPath := filepath.Join(dstDir, stem+".csv")

	out, err := os.Create(outPath)
	if err != nil {
		return 0, "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"duration", "orig_bytes", "resp_bytes", "orig_pkts", "resp_pkts", "conn_state", "service", "label"}); err != nil {
		return 0, "", err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatFloat(rec.Duration, 'f', -1, 64),
			strconv.FormatInt(rec.OrigBytes, 10),
			strconv.FormatInt(rec.RespBytes, 10),
			strconv.FormatInt(rec.OrigPkts, 10),
			strconv.FormatInt(rec.RespPkts, 10),
			rec.ConnState,
			rec.Service,
			strconv.Itoa(label),
		}
		if err := w.Write(row); err != nil {
			return 0, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, "", err
	}
	return len(records), outPath, nil
}

func parseZeek(f *os.File) ([]telemetry.Record, error) {
	records, jsonErr := parseZeekJSON(f)
	if jsonErr == nil {
		return records, nil
	}

	// Rewind and try legacy TSV.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return parseZeekTSV(f)
}

func parseZeekJSON(f *os.File) ([]telemetry.Record, error) {
	var records []telemetry.Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var conn zeekConn
		if err := json.Unmarshal([]byte(line), &conn); err != nil {
			return nil, fmt.Errorf("not JSON lines: %w", err)
		}
		rec := telemetry.Record{
			Duration:  rawFloat(conn.Duration),
			OrigBytes: rawInt(conn.OrigBytes),
			RespBytes: rawInt(conn.RespBytes),
			OrigPkts:  rawInt(conn.OrigPkts),
			RespPkts:  rawInt(conn.RespPkts),
			ConnState: conn.ConnState,
			Service:   conn.Service,
		}
		rec.Normalize()
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseZeekTSV(f *os.File) ([]telemetry.Record, error) {
	var records []telemetry.Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= tsvConnState {
			continue
		}
		rec := telemetry.Record{
			Duration:  tsvFloat(fields[tsvDuration]),
			OrigBytes: tsvInt(fields[tsvOrigBytes]),
			RespBytes: tsvInt(fields[tsvRespBytes]),
			ConnState: fields[tsvConnState],
		}
		rec.Normalize()
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Zeek writes "-" for null values in both formats.

func rawFloat(raw json.RawMessage) float64 {
	var v float64
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	return 0
}

func rawInt(raw json.RawMessage) int64 {
	var v int64
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	return 0
}

func tsvFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func tsvInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
