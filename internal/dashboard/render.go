// internal/dashboard/render.go
package dashboard

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/aegislab/aegishive/internal/telemetry"
)

// RefreshSeconds is the client-side reload interval. The dashboard has
// no push channel; the document asks the browser to re-fetch.
const RefreshSeconds = 10

// Placeholder shown when the ledger is empty.
const Placeholder = "Monitoring network interface... No active threats."

// Section markers the forensic prompt asks the model to emit. The
// renderer promotes them to styled headers.
var sectionMarkers = []string{"ANALYSIS SUMMARY", "RISK LEVEL", "TECHNICAL REMEDIATION"}

var verdictColors = map[telemetry.Verdict]string{
	telemetry.VerdictMalicious: "#ff4444",
	telemetry.VerdictBenign:    "#00d4ff",
}

type card struct {
	Time        string
	Source      string
	Verdict     telemetry.Verdict
	Probability string
	Color       template.CSS
	Report      template.HTML
}

type page struct {
	RefreshSeconds int
	Placeholder    string
	Cards          []card
}

// Render turns a ledger snapshot into a self-refreshing HTML document.
// Pure function: it never mutates the snapshot or the ledger.
func Render(events []telemetry.DetectionEvent) ([]byte, error) {
	p := page{
		RefreshSeconds: RefreshSeconds,
		Placeholder:    Placeholder,
		Cards:          make([]card, 0, len(events)),
	}
	for _, ev := range events {
		color := verdictColors[ev.Verdict]
		if color == "" {
			color = verdictColors[telemetry.VerdictBenign]
		}
		p.Cards = append(p.Cards, card{
			Time:        ev.Timestamp.Format("15:04:05"),
			Source:      ev.Source,
			Verdict:     ev.Verdict,
			Probability: fmt.Sprintf("%.1f%%", ev.Probability*100),
			Color:       template.CSS(color),
			Report:      formatReport(ev.Report),
		})
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatReport lightly sanitizes model output for display: markdown
// emphasis and conversational preamble are stripped, the raw text is
// HTML-escaped, then section markers and newlines are promoted to
// markup.
func formatReport(report string) template.HTML {
	clean := strings.ReplaceAll(report, "**", "")
	clean = strings.TrimPrefix(clean, "Okay, ")
	clean = strings.TrimPrefix(clean, "I will analyze ")
	clean = html.EscapeString(clean)

	for _, marker := range sectionMarkers {
		clean = strings.ReplaceAll(clean, marker,
			`<span class="report-head">`+marker+`</span>`)
	}
	clean = strings.ReplaceAll(clean, "\n", "<br>")

	return template.HTML(clean)
}

var pageTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta http-equiv="refresh" content="{{.RefreshSeconds}}">
    <title>Aegis Hive</title>
    <style>
        :root {
            --bg: #0b0f1a;
            --card: #161b2a;
            --accent: #38bdf8;
            --text: #f1f5f9;
        }
        body { background: var(--bg); color: var(--text); font-family: sans-serif; padding: 50px; margin: 0; }
        h1 { font-weight: 700; font-size: 1.8rem; margin-bottom: 5px; color: var(--accent); }
        .node-status { color: #64748b; font-size: 0.85rem; margin-bottom: 40px; text-transform: uppercase; letter-spacing: 1px; }
        .incident-card {
            background: var(--card);
            border-radius: 12px;
            padding: 30px;
            margin-bottom: 30px;
            box-shadow: 0 10px 15px -3px rgba(0, 0, 0, 0.4);
        }
        .card-header {
            display: flex;
            align-items: center;
            gap: 15px;
            margin-bottom: 20px;
            font-family: monospace;
            font-size: 0.8rem;
        }
        .timestamp { color: #94a3b8; }
        .source-tag { background: #1e293b; padding: 4px 10px; border-radius: 4px; color: var(--accent); }
        .verdict-tag { padding: 4px 12px; border-radius: 20px; font-weight: 600; font-size: 0.75rem; }
        .forensic-report { font-size: 0.95rem; line-height: 1.8; color: #cbd5e1; }
        .report-head {
            display: block;
            margin-top: 20px;
            margin-bottom: 8px;
            font-weight: 700;
            color: var(--accent);
            font-size: 0.9rem;
            text-transform: uppercase;
        }
        .report-head:first-child { margin-top: 0; }
        .placeholder { color: #475569; }
    </style>
</head>
<body>
    <h1>Aegis Hive | Security Terminal</h1>
    <div class="node-status">Mode: Behavioral Analysis</div>
    <div class="feed">
{{- if .Cards}}
{{- range .Cards}}
        <div class="incident-card" style="border-left: 4px solid {{.Color}};">
            <div class="card-header">
                <span class="timestamp">{{.Time}}</span>
                <span class="source-tag">{{.Source}}</span>
                <span class="verdict-tag" style="color: {{.Color}};" title="p={{.Probability}}">&#9679; {{.Verdict}}</span>
            </div>
            <div class="forensic-report">{{.Report}}</div>
        </div>
{{- end}}
{{- else}}
        <p class="placeholder">{{.Placeholder}}</p>
{{- end}}
    </div>
</body>
</html>
`))
