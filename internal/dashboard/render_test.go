// internal/dashboard/render_test.go
package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegislab/aegishive/internal/telemetry"
)

func testEvent(source, report string) telemetry.DetectionEvent {
	return telemetry.DetectionEvent{
		ID:          "test-id",
		Timestamp:   time.Date(2026, 9, 1, 14, 30, 5, 0, time.UTC),
		Source:      source,
		Verdict:     telemetry.VerdictMalicious,
		Probability: 0.91,
		Report:      report,
	}
}

func TestRenderEmptyLedger(t *testing.T) {
	page, err := Render(nil)
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, Placeholder)
	assert.NotContains(t, html, "incident-card")
}

func TestRenderOneCardPerEvent(t *testing.T) {
	events := []telemetry.DetectionEvent{
		testEvent("remote-host", "first"),
		testEvent("local-watcher", "second"),
	}

	page, err := Render(events)
	require.NoError(t, err)

	html := string(page)
	assert.Equal(t, 2, strings.Count(html, `class="incident-card"`))
	assert.NotContains(t, html, Placeholder)

	// Ledger order preserved: first event renders before the second.
	assert.Less(t, strings.Index(html, "remote-host"), strings.Index(html, "local-watcher"))
	assert.Contains(t, html, "14:30:05")
	assert.Contains(t, html, "MALICIOUS")
	assert.Contains(t, html, "#ff4444")
}

func TestRenderAutoRefresh(t *testing.T) {
	page, err := Render(nil)
	require.NoError(t, err)
	assert.Contains(t, string(page), `http-equiv="refresh" content="10"`)
}

func TestRenderStripsEmphasisMarkup(t *testing.T) {
	page, err := Render([]telemetry.DetectionEvent{
		testEvent("remote-host", "Okay, **serious** exfiltration"),
	})
	require.NoError(t, err)

	html := string(page)
	assert.NotContains(t, html, "**")
	assert.NotContains(t, html, "Okay, ")
	assert.Contains(t, html, "serious exfiltration")
}

func TestRenderSectionMarkersBecomeHeaders(t *testing.T) {
	report := "ANALYSIS SUMMARY\nburst detected\nRISK LEVEL\n8\nTECHNICAL REMEDIATION\nisolate host"
	page, err := Render([]telemetry.DetectionEvent{testEvent("remote-host", report)})
	require.NoError(t, err)

	html := string(page)
	assert.Equal(t, 3, strings.Count(html, `class="report-head"`))
	assert.Contains(t, html, `<span class="report-head">RISK LEVEL</span>`)
	assert.Contains(t, html, "burst detected<br>")
}

func TestRenderEscapesReportHTML(t *testing.T) {
	page, err := Render([]telemetry.DetectionEvent{
		testEvent("remote-host", `<script>alert("x")</script>`),
	})
	require.NoError(t, err)

	html := string(page)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderBenignColorFallback(t *testing.T) {
	ev := testEvent("remote-host", "r")
	ev.Verdict = telemetry.VerdictBenign

	page, err := Render([]telemetry.DetectionEvent{ev})
	require.NoError(t, err)
	assert.Contains(t, string(page), "#00d4ff")
}
