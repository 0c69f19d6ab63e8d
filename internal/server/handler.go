// internal/server/handler.go
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/aegislab/aegishive/internal/audit"
	"github.com/aegislab/aegishive/internal/detect"
	"github.com/aegislab/aegishive/internal/forensic"
	"github.com/aegislab/aegishive/internal/history"
	"github.com/aegislab/aegishive/internal/metrics"
	"github.com/aegislab/aegishive/internal/telemetry"
)

// KeyHeader carries the static submission secret.
const KeyHeader = "X-AEGIS-KEY"

// AnalyzeResponse is the wire response for a classified submission. The
// report is present only for malicious verdicts.
type AnalyzeResponse struct {
	Verdict telemetry.Verdict `json:"verdict"`
	Report  string            `json:"report,omitempty"`
}

// AnalyzeHandler handles POST /analyze submissions. Safe for concurrent
// callers: the only shared mutations go through the ledger's lock and
// the capture log's serialized appends.
type AnalyzeHandler struct {
	engine          *detect.Engine
	reporter        *forensic.Reporter
	ledger          *history.Ledger
	capture         *audit.CaptureLog
	apiKey          string
	maxPayloadBytes int64
}

// NewAnalyzeHandler wires the submission endpoint. An empty apiKey
// disables the endpoint rather than accepting unauthenticated traffic.
func NewAnalyzeHandler(engine *detect.Engine, reporter *forensic.Reporter, ledger *history.Ledger, capture *audit.CaptureLog, apiKey string, maxPayloadBytes int64) *AnalyzeHandler {
	return &AnalyzeHandler{
		engine:          engine,
		reporter:        reporter,
		ledger:          ledger,
		capture:         capture,
		apiKey:          apiKey,
		maxPayloadBytes: maxPayloadBytes,
	}
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// Missing AEGIS_API_KEY at startup disables submissions entirely.
	if h.apiKey == "" {
		http.Error(w, "Submission endpoint disabled: no API key configured", http.StatusServiceUnavailable)
		return
	}

	// Check auth before touching anything else. A rejected caller
	// produces no classification, no ledger entry, no audit row.
	key := r.Header.Get(KeyHeader)
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
		metrics.AuthFailures.Inc()
		http.Error(w, "Invalid Key", http.StatusForbidden)
		return
	}

	if r.ContentLength > h.maxPayloadBytes {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxPayloadBytes+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > h.maxPayloadBytes {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	var rec telemetry.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := rec.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.Normalize()

	res, err := h.engine.Classify(rec)
	if err != nil {
		metrics.ClassifyErrors.Inc()
		if errors.Is(err, detect.ErrClassifierUnavailable) {
			http.Error(w, "Classifier unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Printf("Classify error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	metrics.RecordsClassified.WithLabelValues(telemetry.SourceRemote, string(res.Verdict)).Inc()

	// Durable audit row for both verdicts, before the fallible
	// forensic call.
	if err := h.capture.Append(rec, res.Verdict); err != nil {
		log.Printf("Capture log error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	resp := AnalyzeResponse{Verdict: res.Verdict}
	if res.Verdict == telemetry.VerdictMalicious {
		log.Printf("THREAT DETECTED via %s (p=%.3f)", telemetry.SourceRemote, res.Probability)
		// The forensic call blocks on network I/O; the ledger lock is
		// only taken after it completes.
		resp.Report = h.reporter.Explain(r.Context(), rec)
		h.ledger.Record(telemetry.NewDetectionEvent(telemetry.SourceRemote, res.Verdict, res.Probability, resp.Report))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
