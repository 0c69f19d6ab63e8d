// internal/dataset/load.go
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aegislab/aegishive/internal/telemetry"
)

// LabeledRecord pairs a telemetry record with its training label
// (0 benign, 1 malicious).
type LabeledRecord struct {
	telemetry.Record
	Label int
}

// LoadDir recursively loads every labeled CSV under dir.
func LoadDir(dir string) ([]LabeledRecord, error) {
	var all []LabeledRecord
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		records, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no labeled CSV rows found under %s", dir)
	}
	return all, nil
}

func loadFile(path string) ([]LabeledRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	labelIdx, ok := cols["label"]
	if !ok {
		return nil, fmt.Errorf("missing label column")
	}

	var records []LabeledRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if labelIdx >= len(row) {
			continue
		}
		label, err := strconv.Atoi(strings.TrimSpace(row[labelIdx]))
		if err != nil || (label != 0 && label != 1) {
			continue
		}
		rec, err := parseFeatureRow(row, cols)
		if err != nil {
			continue
		}
		records = append(records, LabeledRecord{Record: rec, Label: label})
	}
	return records, nil
}

func parseFeatureRow(row []string, cols map[string]int) (telemetry.Record, error) {
	var rec telemetry.Record
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(name string) (float64, error) {
		s := get(name)
		if s == "" || s == "-" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}

	var err error
	if rec.Duration, err = num("duration"); err != nil {
		return telemetry.Record{}, err
	}
	ob, err := num("orig_bytes")
	if err != nil {
		return telemetry.Record{}, err
	}
	rb, err := num("resp_bytes")
	if err != nil {
		return telemetry.Record{}, err
	}
	op, err := num("orig_pkts")
	if err != nil {
		return telemetry.Record{}, err
	}
	rp, err := num("resp_pkts")
	if err != nil {
		return telemetry.Record{}, err
	}
	rec.OrigBytes, rec.RespBytes = int64(ob), int64(rb)
	rec.OrigPkts, rec.RespPkts = int64(op), int64(rp)
	rec.ConnState = get("conn_state")
	rec.Service = get("service")
	rec.Normalize()
	return rec, nil
}

// Balance downsamples the benign class to at most maxBenign rows so a
// large baseline cannot drown out the attack captures. Deterministic
// for a given seed.
func Balance(records []LabeledRecord, maxBenign int, seed int64) []LabeledRecord {
	var benign, malicious []LabeledRecord
	for _, r := range records {
		if r.Label == 0 {
			benign = append(benign, r)
		} else {
			malicious = append(malicious, r)
		}
	}

	if maxBenign > 0 && len(benign) > maxBenign {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(benign), func(i, j int) {
			benign[i], benign[j] = benign[j], benign[i]
		})
		benign = benign[:maxBenign]
	}

	out := make([]LabeledRecord, 0, len(benign)+len(malicious))
	out = append(out, malicious...)
	out = append(out, benign...)
	return out
}
