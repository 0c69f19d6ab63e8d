// internal/simulator/simulator.go
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/aegislab/aegishive/internal/server"
	"github.com/aegislab/aegishive/internal/telemetry"
)

// Config controls a simulation run against a live /analyze endpoint.
type Config struct {
	TargetURL string
	APIKey    string
	Count     int
	// AttackEvery injects one exfil-burst record per N submissions.
	// Zero disables attack traffic.
	AttackEvery int
	Seed        int64
}

// Runner drives synthetic telemetry at the submission endpoint: a
// benign baseline with periodic attack bursts, the same footprint the
// lab attack scripts produce.
type Runner struct {
	cfg    Config
	client *http.Client
}

// NewRunner creates a simulator.
func NewRunner(cfg Config) *Runner {
	if cfg.Count <= 0 {
		cfg.Count = 50
	}
	return &Runner{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Run submits the configured number of records and logs a tally.
func (r *Runner) Run(ctx context.Context) error {
	gofakeit.Seed(r.cfg.Seed)

	log.Printf("Simulation starting: target=%s count=%d", r.cfg.TargetURL, r.cfg.Count)

	var sent, failed, flagged int
	for i := 0; i < r.cfg.Count; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rec := benignRecord()
		if r.cfg.AttackEvery > 0 && (i+1)%r.cfg.AttackEvery == 0 {
			rec = burstRecord()
		}

		verdict, err := r.submit(ctx, rec)
		if err != nil {
			failed++
			log.Printf("Simulate: submit %d: %v", i+1, err)
			continue
		}
		sent++
		if verdict == telemetry.VerdictMalicious {
			flagged++
		}
	}

	log.Printf("Simulation complete: sent=%d failed=%d flagged=%d", sent, failed, flagged)
	if failed == r.cfg.Count {
		return fmt.Errorf("all %d submissions failed", failed)
	}
	return nil
}

func (r *Runner) submit(ctx context.Context, rec telemetry.Record) (telemetry.Verdict, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(r.cfg.TargetURL, "/") + "/analyze"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(server.KeyHeader, r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out server.AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Verdict, nil
}

// benignRecord fakes ordinary interactive traffic: moderate duration,
// balanced byte counts, mostly clean connection states.
func benignRecord() telemetry.Record {
	dur := gofakeit.Float64Range(0.5, 45)
	return telemetry.Record{
		Duration:  dur,
		OrigBytes: int64(gofakeit.Number(200, 8000)),
		RespBytes: int64(gofakeit.Number(500, 60000)),
		OrigPkts:  int64(gofakeit.Number(4, 120)),
		RespPkts:  int64(gofakeit.Number(4, 160)),
		ConnState: gofakeit.RandomString([]string{"SF", "SF", "SF", "S1"}),
		Service:   gofakeit.RandomString([]string{"http", "ssl", "dns", "-"}),
	}
}

// burstRecord fakes an exfiltration burst: a short connection pushing a
// large upload with barely any response.
func burstRecord() telemetry.Record {
	return telemetry.Record{
		Duration:  gofakeit.Float64Range(0.05, 2),
		OrigBytes: int64(gofakeit.Number(40000, 900000)),
		RespBytes: int64(gofakeit.Number(0, 800)),
		OrigPkts:  int64(gofakeit.Number(200, 2000)),
		RespPkts:  int64(gofakeit.Number(0, 60)),
		ConnState: gofakeit.RandomString([]string{"S0", "REJ", "RSTR"}),
		Service:   "-",
	}
}
