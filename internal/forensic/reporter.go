// internal/forensic/reporter.go
package forensic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aegislab/aegishive/internal/metrics"
	"github.com/aegislab/aegishive/internal/telemetry"
)

const systemPrompt = `You are an elite SOC analyst producing forensic briefs on confirmed network threats.

OUTPUT REQUIREMENTS:
- Start immediately with ANALYSIS SUMMARY.
- Do NOT say "Okay", "I will", or "Here is".
- Use technical, cold, forensic language.
- Keep bullet points clean.

STRUCTURE:
1. ANALYSIS SUMMARY
2. RISK LEVEL (1-10)
3. TECHNICAL REMEDIATION`

// FallbackReport is returned whenever the external analyst cannot be
// reached. A forensic failure never suppresses the underlying verdict.
const FallbackReport = "AI analysis unavailable"

// ErrUnavailable indicates all analyst endpoints are down.
var ErrUnavailable = errors.New("all forensic endpoints unavailable")

// Endpoint is a single text-generation provider (OpenAI-compatible).
type Endpoint struct {
	URL    string
	Model  string
	APIKey string
}

// Reporter turns a malicious telemetry record into a structured text
// brief via an external model, trying each endpoint in order.
type Reporter struct {
	endpoints []Endpoint
	client    *http.Client
}

// NewReporter builds a reporter with a bounded overall timeout so the
// outbound call can never stall a request handler or the watcher loop
// indefinitely.
func NewReporter(endpoints []Endpoint, timeout time.Duration) *Reporter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Reporter{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Explain produces a forensic brief for a malicious record. On any
// failure it returns FallbackReport; errors are logged, never
// propagated into the detection path. One attempt per endpoint, no
// retries.
func (r *Reporter) Explain(ctx context.Context, rec telemetry.Record) string {
	metrics.ForensicCalls.Inc()
	start := time.Now()
	report, err := r.analyze(ctx, rec)
	metrics.ForensicLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ForensicFailures.Inc()
		log.Printf("Forensic analysis failed: %v (verdict preserved)", err)
		return FallbackReport
	}
	return report
}

func (r *Reporter) analyze(ctx context.Context, rec telemetry.Record) (string, error) {
	if len(r.endpoints) == 0 {
		return "", errors.New("no forensic endpoints configured")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf("Analyze this malicious network telemetry: %s", payload)

	var lastErr error
	for i, ep := range r.endpoints {
		report, err := r.tryEndpoint(ctx, ep, prompt)
		if err == nil {
			if i > 0 {
				log.Printf("Forensic fallback: endpoint %d (%s) succeeded after %d failures", i+1, ep.Model, i)
			}
			return report, nil
		}

		lastErr = err
		if isUnavailableErr(err) {
			log.Printf("Forensic endpoint %d (%s) unavailable: %v, trying next...", i+1, ep.Model, err)
			continue
		}

		// Non-availability error (e.g. malformed response) - don't try fallback
		return "", err
	}

	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Ping sends a trivial prompt to verify the uplink is alive. Used by
// the uplink command, not the detection path.
func (r *Reporter) Ping(ctx context.Context) error {
	if len(r.endpoints) == 0 {
		return errors.New("no forensic endpoints configured")
	}
	var lastErr error
	for _, ep := range r.endpoints {
		if _, err := r.tryEndpoint(ctx, ep, "Aegis Hive system check: are you online?"); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (r *Reporter) tryEndpoint(ctx context.Context, ep Endpoint, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": ep.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"max_tokens": 1024,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(ep.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		// Connection errors are "unavailable"
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("connection failed: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	// Service unavailable / bad gateway / gateway timeout - try next endpoint
	if resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	report := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if report == "" {
		return "", fmt.Errorf("blank report from API")
	}
	return report, nil
}

// isUnavailableErr checks if an error indicates a transient availability issue
func isUnavailableErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "connection") ||
		strings.Contains(s, "HTTP 502") ||
		strings.Contains(s, "HTTP 503") ||
		strings.Contains(s, "HTTP 504")
}

// IsUnavailable reports whether err means every endpoint was down.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
