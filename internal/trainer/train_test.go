// internal/trainer/train_test.go
package trainer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegislab/aegishive/internal/dataset"
	"github.com/aegislab/aegishive/internal/telemetry"
)

// syntheticTraffic builds a cleanly separable corpus: slow low-volume
// established flows as baseline, short high-upload half-open flows as
// attack traffic.
func syntheticTraffic(perClass int, seed int64) []dataset.LabeledRecord {
	rng := rand.New(rand.NewSource(seed))
	records := make([]dataset.LabeledRecord, 0, perClass*2)

	for i := 0; i < perClass; i++ {
		records = append(records, dataset.LabeledRecord{
			Record: telemetry.Record{
				Duration:  20 + rng.Float64()*40,
				OrigBytes: int64(200 + rng.Intn(2000)),
				RespBytes: int64(5000 + rng.Intn(40000)),
				OrigPkts:  int64(10 + rng.Intn(40)),
				RespPkts:  int64(15 + rng.Intn(60)),
				ConnState: "SF",
				Service:   "http",
			},
			Label: 0,
		})
		records = append(records, dataset.LabeledRecord{
			Record: telemetry.Record{
				Duration:  0.05 + rng.Float64()*2,
				OrigBytes: int64(50000 + rng.Intn(800000)),
				RespBytes: int64(rng.Intn(500)),
				OrigPkts:  int64(200 + rng.Intn(700)),
				RespPkts:  int64(rng.Intn(20)),
				ConnState: "S0",
				Service:   "-",
			},
			Label: 1,
		})
	}
	return records
}

func TestTrainSeparatesClasses(t *testing.T) {
	records := syntheticTraffic(200, 7)

	clf, eval, err := Train(records, DefaultOptions())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, eval.Accuracy, 0.95, "separable data should train near-perfectly")
	assert.Equal(t, eval.TrainSize+eval.TestSize, len(records))
	assert.Equal(t, eval.TestSize, eval.Support[0]+eval.Support[1])

	// The fitted model must flag an obvious exfil burst and pass an
	// obvious baseline flow.
	burst, err := clf.Prob([]float64{0.5, 400000, 100, 500, 5, clf.EncodeConnState("S0")})
	require.NoError(t, err)
	assert.Greater(t, burst, 0.5)

	baseline, err := clf.Prob([]float64{40, 1000, 20000, 30, 40, clf.EncodeConnState("SF")})
	require.NoError(t, err)
	assert.Less(t, baseline, 0.5)
}

func TestTrainDeterministic(t *testing.T) {
	records := syntheticTraffic(100, 3)

	a, _, err := Train(records, DefaultOptions())
	require.NoError(t, err)
	b, _, err := Train(records, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
	assert.Equal(t, a.Means, b.Means)
}

func TestTrainArtifactMatchesEngine(t *testing.T) {
	// The artifact carries everything inference needs: feature order,
	// standardization parameters, and the conn_state encoding.
	clf, _, err := Train(syntheticTraffic(50, 11), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"duration", "orig_bytes", "resp_bytes", "orig_pkts", "resp_pkts", "conn_state"}, clf.FeatureNames)
	assert.Len(t, clf.Means, 6)
	assert.Len(t, clf.Stddevs, 6)
	assert.Len(t, clf.Weights, 6)
	assert.NotEmpty(t, clf.ConnStates)
	assert.False(t, clf.TrainedAt.IsZero())
}

func TestTrainRejectsTinyCorpus(t *testing.T) {
	_, _, err := Train(syntheticTraffic(2, 1), DefaultOptions())
	assert.Error(t, err)
}

func TestTrainRejectsSingleClass(t *testing.T) {
	records := syntheticTraffic(20, 1)
	benignOnly := records[:0:0]
	for _, r := range records {
		if r.Label == 0 {
			benignOnly = append(benignOnly, r)
		}
	}

	_, _, err := Train(benignOnly, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both")
}

func TestEvaluationReport(t *testing.T) {
	_, eval, err := Train(syntheticTraffic(100, 5), DefaultOptions())
	require.NoError(t, err)

	report := eval.String()
	assert.Contains(t, report, "PERFORMANCE REPORT")
	assert.Contains(t, report, "Accuracy:")
	assert.Contains(t, report, "malicious")
	assert.Contains(t, report, "benign")
}
