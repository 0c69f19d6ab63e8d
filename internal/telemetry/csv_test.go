// internal/telemetry/csv_test.go
package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVFullSchema(t *testing.T) {
	in := "duration,orig_bytes,resp_bytes,orig_pkts,resp_pkts,conn_state,service\n" +
		"12.5,4500,88000,40,70,SF,http\n" +
		"0.2,60000,120,30,2,S0,-\n"

	records, skipped, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)

	assert.Equal(t, 12.5, records[0].Duration)
	assert.Equal(t, int64(4500), records[0].OrigBytes)
	assert.Equal(t, int64(88000), records[0].RespBytes)
	assert.Equal(t, int64(40), records[0].OrigPkts)
	assert.Equal(t, "http", records[0].Service)
	assert.Equal(t, "S0", records[1].ConnState)
}

func TestParseCSVMinimalSchema(t *testing.T) {
	// Packet counters and service are optional; conn_state defaults
	// through Normalize when the cell is empty.
	in := "duration,orig_bytes,resp_bytes,conn_state\n" +
		"3.0,100,200,\n"

	records, skipped, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "SF", records[0].ConnState)
	assert.Equal(t, "-", records[0].Service)
	assert.Zero(t, records[0].OrigPkts)
}

func TestParseCSVSkipsMalformedRows(t *testing.T) {
	in := "duration,orig_bytes,resp_bytes,conn_state\n" +
		"1.0,100,200,SF\n" +
		"banana,x,y,z\n" +
		"-4,100,200,SF\n" +
		"2.0,300,400,REJ\n"

	records, skipped, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, 1.0, records[0].Duration)
	assert.Equal(t, 2.0, records[1].Duration)
}

func TestParseCSVZeekNulls(t *testing.T) {
	// Zeek renders null numerics as "-"; they load as zero.
	in := "duration,orig_bytes,resp_bytes,conn_state\n" +
		"-,100,-,S0\n"

	records, skipped, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].Duration)
	assert.Zero(t, records[0].RespBytes)
}

func TestParseCSVMissingRequiredColumn(t *testing.T) {
	in := "duration,orig_bytes,service\n1.0,100,http\n"

	_, _, err := ParseCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resp_bytes")
}

func TestParseCSVHeaderCaseInsensitive(t *testing.T) {
	in := "Duration,ORIG_BYTES,Resp_Bytes,Conn_State\n1.0,100,200,SF\n"

	records, _, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(100), records[0].OrigBytes)
}

func TestParseCSVEmptyStream(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}
