// internal/trainer/train.go
package trainer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/aegislab/aegishive/internal/dataset"
	"github.com/aegislab/aegishive/internal/model"
)

// featureNames is the ordered feature set the classifier is fitted
// with. The detection engine rebuilds vectors from this list at
// inference time, so order matters.
var featureNames = []string{"duration", "orig_bytes", "resp_bytes", "orig_pkts", "resp_pkts", "conn_state"}

// Options tune the training run.
type Options struct {
	Epochs       int
	LearningRate float64
	TestFraction float64
	Seed         int64
}

// DefaultOptions hold out 20% for evaluation and give SGD enough
// passes to converge on standardized features.
func DefaultOptions() Options {
	return Options{
		Epochs:       200,
		LearningRate: 0.1,
		TestFraction: 0.2,
		Seed:         42,
	}
}

// Evaluation summarizes held-out performance.
type Evaluation struct {
	TrainSize int
	TestSize  int
	Accuracy  float64
	// Indexed by class label: 0 benign, 1 malicious.
	Precision [2]float64
	Recall    [2]float64
	Support   [2]int
}

// String renders a performance report for the train command.
func (e Evaluation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- PERFORMANCE REPORT ---\n")
	fmt.Fprintf(&b, "Trained on %d rows, evaluated on %d\n", e.TrainSize, e.TestSize)
	fmt.Fprintf(&b, "Accuracy: %.2f%%\n", e.Accuracy*100)
	for label, name := range map[int]string{0: "benign", 1: "malicious"} {
		fmt.Fprintf(&b, "  %-9s precision=%.3f recall=%.3f support=%d\n",
			name, e.Precision[label], e.Recall[label], e.Support[label])
	}
	return b.String()
}

// Train fits a standardized logistic-regression classifier on labeled
// telemetry. Deterministic for a given seed.
func Train(records []dataset.LabeledRecord, opts Options) (*model.Classifier, Evaluation, error) {
	if opts.Epochs <= 0 || opts.LearningRate <= 0 {
		def := DefaultOptions()
		if opts.Epochs <= 0 {
			opts.Epochs = def.Epochs
		}
		if opts.LearningRate <= 0 {
			opts.LearningRate = def.LearningRate
		}
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}

	if len(records) < 10 {
		return nil, Evaluation{}, fmt.Errorf("need at least 10 labeled rows, got %d", len(records))
	}
	if !hasBothClasses(records) {
		return nil, Evaluation{}, errors.New("training data must contain both benign and malicious rows")
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	shuffled := make([]dataset.LabeledRecord, len(records))
	copy(shuffled, records)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	testSize := int(float64(len(shuffled)) * opts.TestFraction)
	if testSize < 1 {
		testSize = 1
	}
	test, train := shuffled[:testSize], shuffled[testSize:]

	X := vectorize(train)
	y := labels(train)
	means, stddevs := standardize(X)

	weights := make([]float64, len(featureNames))
	bias := 0.0

	// Plain SGD on log loss; one sample at a time, shuffled each epoch.
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, i := range order {
			p := sigmoid(dot(weights, X[i]) + bias)
			grad := p - y[i]
			for j := range weights {
				weights[j] -= opts.LearningRate * grad * X[i][j]
			}
			bias -= opts.LearningRate * grad
		}
	}

	clf := &model.Classifier{
		Version:      1,
		TrainedAt:    time.Now().UTC(),
		Samples:      len(train),
		FeatureNames: append([]string(nil), featureNames...),
		Means:        means,
		Stddevs:      stddevs,
		Weights:      weights,
		Bias:         bias,
		ConnStates:   model.DefaultConnStates,
	}

	eval := evaluate(clf, test)
	eval.TrainSize = len(train)
	eval.TestSize = len(test)
	return clf, eval, nil
}

func hasBothClasses(records []dataset.LabeledRecord) bool {
	seen := [2]bool{}
	for _, r := range records {
		seen[r.Label] = true
	}
	return seen[0] && seen[1]
}

// vectorize builds raw (unstandardized) feature rows in featureNames
// order, using the same conn_state encoding inference will use.
func vectorize(records []dataset.LabeledRecord) [][]float64 {
	X := make([][]float64, len(records))
	for i, r := range records {
		row := make([]float64, len(featureNames))
		for j, name := range featureNames {
			if name == "conn_state" {
				row[j] = model.DefaultConnStates[r.ConnState]
				continue
			}
			if v, ok := r.Numeric(name); ok {
				row[j] = v
			}
		}
		X[i] = row
	}
	return X
}

func labels(records []dataset.LabeledRecord) []float64 {
	y := make([]float64, len(records))
	for i, r := range records {
		y[i] = float64(r.Label)
	}
	return y
}

// standardize transforms X in place to zero mean and unit variance per
// column, returning the fitted means and stddevs for the artifact.
func standardize(X [][]float64) (means, stddevs []float64) {
	n := len(featureNames)
	means = make([]float64, n)
	stddevs = make([]float64, n)
	if len(X) == 0 {
		return means, stddevs
	}

	for j := 0; j < n; j++ {
		sum := 0.0
		for i := range X {
			sum += X[i][j]
		}
		means[j] = sum / float64(len(X))

		ss := 0.0
		for i := range X {
			d := X[i][j] - means[j]
			ss += d * d
		}
		stddevs[j] = math.Sqrt(ss / float64(len(X)))
	}

	for i := range X {
		for j := 0; j < n; j++ {
			std := stddevs[j]
			if std == 0 {
				std = 1
			}
			X[i][j] = (X[i][j] - means[j]) / std
		}
	}
	return means, stddevs
}

func evaluate(clf *model.Classifier, test []dataset.LabeledRecord) Evaluation {
	var eval Evaluation
	var correct int
	// Confusion counts: predicted x actual.
	var tp, fp, tn, fn int

	Xt := vectorize(test)
	for i, r := range test {
		p, err := clf.Prob(Xt[i])
		if err != nil {
			continue
		}
		predicted := 0
		if p >= 0.5 {
			predicted = 1
		}
		if predicted == r.Label {
			correct++
		}
		switch {
		case predicted == 1 && r.Label == 1:
			tp++
		case predicted == 1 && r.Label == 0:
			fp++
		case predicted == 0 && r.Label == 0:
			tn++
		default:
			fn++
		}
		eval.Support[r.Label]++
	}

	if len(test) > 0 {
		eval.Accuracy = float64(correct) / float64(len(test))
	}
	eval.Precision[1] = ratio(tp, tp+fp)
	eval.Recall[1] = ratio(tp, tp+fn)
	eval.Precision[0] = ratio(tn, tn+fn)
	eval.Recall[0] = ratio(tn, tn+fp)
	return eval
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
