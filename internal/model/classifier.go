// internal/model/classifier.go
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// ErrArtifactMissing indicates the model artifact does not exist at the
// configured path. Callers treat this as a startup failure for the
// detection path, not a per-request condition.
var ErrArtifactMissing = errors.New("classifier artifact not found")

// DefaultConnStates is the label encoding for Zeek connection states.
// Unseen states encode to zero.
var DefaultConnStates = map[string]float64{
	"SF":   1,
	"S0":   2,
	"REJ":  3,
	"RSTR": 4,
	"RSTO": 5,
	"S1":   6,
}

// Classifier is a trained logistic-regression model plus the exact
// ordered feature list it was fitted with. Read-only after load; safe
// for concurrent use.
type Classifier struct {
	Version      int                `json:"version"`
	TrainedAt    time.Time          `json:"trained_at"`
	Samples      int                `json:"samples"`
	FeatureNames []string           `json:"feature_names"`
	Means        []float64          `json:"means"`
	Stddevs      []float64          `json:"stddevs"`
	Weights      []float64          `json:"weights"`
	Bias         float64            `json:"bias"`
	ConnStates   map[string]float64 `json:"conn_states"`
}

// Load reads a classifier artifact from disk.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var c Classifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the artifact, creating parent directories if needed.
func (c *Classifier) Save(path string) error {
	if err := c.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Classifier) validate() error {
	n := len(c.FeatureNames)
	if n == 0 {
		return errors.New("no feature names")
	}
	if len(c.Weights) != n || len(c.Means) != n || len(c.Stddevs) != n {
		return fmt.Errorf("parameter lengths do not match %d features", n)
	}
	return nil
}

// EncodeConnState maps a connection state code onto its numeric label.
func (c *Classifier) EncodeConnState(state string) float64 {
	return c.ConnStates[state]
}

// Prob returns the probability of the malicious class for a raw feature
// vector in FeatureNames order. Standardization happens here so callers
// always pass raw values.
func (c *Classifier) Prob(vec []float64) (float64, error) {
	if len(vec) != len(c.FeatureNames) {
		return 0, fmt.Errorf("feature vector length %d, model expects %d", len(vec), len(c.FeatureNames))
	}
	z := c.Bias
	for i, v := range vec {
		std := c.Stddevs[i]
		if std == 0 {
			std = 1
		}
		z += c.Weights[i] * ((v - c.Means[i]) / std)
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
