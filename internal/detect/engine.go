// internal/detect/engine.go
package detect

import (
	"errors"

	"github.com/aegislab/aegishive/internal/model"
	"github.com/aegislab/aegishive/internal/telemetry"
)

// DefaultThreshold is deliberately below the 0.5 midpoint: a missed
// attack costs more than a false alarm, so the engine favors recall.
const DefaultThreshold = 0.25

// ErrClassifierUnavailable indicates no model artifact was loaded.
// Classification fails closed; callers decide whether to reject the
// request or skip the record.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Result pairs a verdict with the probability that produced it.
type Result struct {
	Verdict     telemetry.Verdict
	Probability float64
}

// Engine applies the shared detection rule. It holds only the read-only
// classifier and the threshold, has no side effects, and is safe for
// concurrent use by both ingress paths.
type Engine struct {
	clf       *model.Classifier
	threshold float64
}

// NewEngine wraps a loaded classifier. A threshold <= 0 selects
// DefaultThreshold.
func NewEngine(clf *model.Classifier, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{clf: clf, threshold: threshold}
}

// Threshold returns the configured decision threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Classify builds the feature vector in the exact order the classifier
// was trained with and applies the threshold rule. Malicious iff
// probability >= threshold.
func (e *Engine) Classify(rec telemetry.Record) (Result, error) {
	if e == nil || e.clf == nil {
		return Result{Verdict: telemetry.VerdictBenign}, ErrClassifierUnavailable
	}

	vec := make([]float64, len(e.clf.FeatureNames))
	for i, name := range e.clf.FeatureNames {
		if name == "conn_state" {
			vec[i] = e.clf.EncodeConnState(rec.ConnState)
			continue
		}
		// Expected numeric features absent from the schema stay zero.
		if v, ok := rec.Numeric(name); ok {
			vec[i] = v
		}
	}

	p, err := e.clf.Prob(vec)
	if err != nil {
		return Result{Verdict: telemetry.VerdictBenign}, err
	}

	res := Result{Verdict: telemetry.VerdictBenign, Probability: p}
	if p >= e.threshold {
		res.Verdict = telemetry.VerdictMalicious
	}
	return res, nil
}
