// internal/telemetry/telemetry.go
package telemetry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Defaults for optional telemetry fields.
const (
	DefaultConnState = "SF"
	DefaultService   = "-"
)

// Source tags identify which ingress path produced a detection.
const (
	SourceWatcher = "local-watcher"
	SourceRemote  = "remote-host"
)

// Verdict is the binary outcome of the detection threshold.
type Verdict string

const (
	VerdictBenign    Verdict = "BENIGN"
	VerdictMalicious Verdict = "MALICIOUS"
)

// Record is a single connection-level telemetry summary. All inputs are
// normalized to this schema before reaching the detection engine.
type Record struct {
	Duration  float64 `json:"duration"`
	OrigBytes int64   `json:"orig_bytes"`
	RespBytes int64   `json:"resp_bytes"`
	OrigPkts  int64   `json:"orig_pkts"`
	RespPkts  int64   `json:"resp_pkts"`
	ConnState string  `json:"conn_state,omitempty"`
	Service   string  `json:"service,omitempty"`
}

// Normalize fills defaults for absent optional fields.
func (r *Record) Normalize() {
	if r.ConnState == "" {
		r.ConnState = DefaultConnState
	}
	if r.Service == "" {
		r.Service = DefaultService
	}
}

// Validate rejects records with negative counters.
func (r *Record) Validate() error {
	if r.Duration < 0 {
		return fmt.Errorf("duration must be non-negative, got %v", r.Duration)
	}
	if r.OrigBytes < 0 || r.RespBytes < 0 {
		return fmt.Errorf("byte counters must be non-negative")
	}
	if r.OrigPkts < 0 || r.RespPkts < 0 {
		return fmt.Errorf("packet counters must be non-negative")
	}
	return nil
}

// Numeric returns the named numeric feature value. The second return is
// false for names this schema does not carry (conn_state is categorical
// and handled by the classifier's encoder, not here).
func (r *Record) Numeric(name string) (float64, bool) {
	switch name {
	case "duration":
		return r.Duration, true
	case "orig_bytes":
		return float64(r.OrigBytes), true
	case "resp_bytes":
		return float64(r.RespBytes), true
	case "orig_pkts":
		return float64(r.OrigPkts), true
	case "resp_pkts":
		return float64(r.RespPkts), true
	}
	return 0, false
}

// DetectionEvent is one entry in the history ledger. Events are created
// only for malicious verdicts.
type DetectionEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Verdict     Verdict   `json:"verdict"`
	Probability float64   `json:"probability"`
	Report      string    `json:"report,omitempty"`
}

// NewDetectionEvent builds an event stamped with wall-clock time at
// second resolution.
func NewDetectionEvent(source string, verdict Verdict, probability float64, report string) DetectionEvent {
	return DetectionEvent{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().Truncate(time.Second),
		Source:      source,
		Verdict:     verdict,
		Probability: probability,
		Report:      report,
	}
}
