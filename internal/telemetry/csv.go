// internal/telemetry/csv.go
package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Columns a telemetry CSV must carry. Packet counters and service are
// optional and default-filled.
var requiredColumns = []string{"duration", "orig_bytes", "resp_bytes", "conn_state"}

// ParseCSV reads a batch of telemetry records from a headered CSV.
// Malformed rows are skipped and counted rather than failing the batch;
// only an unreadable stream or a missing required column is an error.
func ParseCSV(r io.Reader) ([]Record, int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, 0, fmt.Errorf("missing required column %q", name)
		}
	}

	var records []Record
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func parseRow(row []string, cols map[string]int) (Record, error) {
	var rec Record
	var err error

	if rec.Duration, err = floatField(row, cols, "duration"); err != nil {
		return Record{}, err
	}
	if rec.OrigBytes, err = intField(row, cols, "orig_bytes"); err != nil {
		return Record{}, err
	}
	if rec.RespBytes, err = intField(row, cols, "resp_bytes"); err != nil {
		return Record{}, err
	}
	// Optional counters default to zero when the column is absent.
	if _, ok := cols["orig_pkts"]; ok {
		if rec.OrigPkts, err = intField(row, cols, "orig_pkts"); err != nil {
			return Record{}, err
		}
	}
	if _, ok := cols["resp_pkts"]; ok {
		if rec.RespPkts, err = intField(row, cols, "resp_pkts"); err != nil {
			return Record{}, err
		}
	}
	rec.ConnState = stringField(row, cols, "conn_state")
	rec.Service = stringField(row, cols, "service")
	rec.Normalize()

	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func stringField(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func floatField(row []string, cols map[string]int, name string) (float64, error) {
	s := stringField(row, cols, name)
	if s == "" || s == "-" {
		// Zeek writes "-" for null numeric fields.
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}

func intField(row []string, cols map[string]int, name string) (int64, error) {
	s := stringField(row, cols, name)
	if s == "" || s == "-" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}
