// internal/dataset/zeek_test.go
package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestConvertZeekJSONLines(t *testing.T) {
	src := writeSource(t, "ddos_capture.log",
		`{"duration":0.4,"orig_bytes":70000,"resp_bytes":120,"orig_pkts":300,"resp_pkts":4,"conn_state":"S0","service":"-"}`+"\n"+
			`{"duration":"-","orig_bytes":500,"resp_bytes":"-","orig_pkts":2,"resp_pkts":1,"conn_state":"REJ"}`+"\n")

	dst := t.TempDir()
	rows, outPath, err := ConvertZeek(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, filepath.Join(dst, "ddos_capture.csv"), outPath)

	out := readCSV(t, outPath)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"duration", "orig_bytes", "resp_bytes", "orig_pkts", "resp_pkts", "conn_state", "service", "label"}, out[0])
	assert.Equal(t, "0.4", out[1][0])
	assert.Equal(t, "70000", out[1][1])
	// Attack capture: label 1.
	assert.Equal(t, "1", out[1][7])
	// Zeek nulls land as zeros; missing service defaults.
	assert.Equal(t, "0", out[2][0])
	assert.Equal(t, "0", out[2][2])
	assert.Equal(t, "-", out[2][6])
}

func TestConvertZeekLegacyTSV(t *testing.T) {
	src := writeSource(t, "benign_day1.log",
		"#separator \\x09\n"+
			"#fields\tts\tuid\tid.orig_h\tid.orig_p\tid.resp_h\tid.resp_p\tproto\tservice\tduration\torig_bytes\tresp_bytes\tconn_state\n"+
			"1693526400.1\tC1\t10.0.0.5\t51234\t93.184.216.34\t443\ttcp\tssl\t31.5\t800\t42000\tSF\n"+
			"1693526401.2\tC2\t10.0.0.6\t51235\t93.184.216.34\t443\ttcp\tssl\t12.0\t600\t9000\tSF\n")

	dst := t.TempDir()
	rows, outPath, err := ConvertZeek(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	out := readCSV(t, outPath)
	require.Len(t, out, 3)
	assert.Equal(t, "31.5", out[1][0])
	assert.Equal(t, "42000", out[1][2])
	assert.Equal(t, "SF", out[1][5])
	// Baseline capture: label 0.
	assert.Equal(t, "0", out[1][7])
}

func TestConvertZeekEmptySource(t *testing.T) {
	src := writeSource(t, "empty.log", "")
	_, _, err := ConvertZeek(src, t.TempDir())
	assert.Error(t, err)
}

func TestLabelFromFilename(t *testing.T) {
	assert.Equal(t, 0, LabelFromFilename("benign_baseline.log"))
	assert.Equal(t, 0, LabelFromFilename("Benign-Week2.log"))
	assert.Equal(t, 1, LabelFromFilename("ddos_flood.log"))
	assert.Equal(t, 1, LabelFromFilename("conn.log"))
}
