// internal/executor/http.go
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FairForge/burstbench/internal/config"
)

// HTTPExecutor posts a synthetic inference request to the target and
// measures the call. The request body is built once at construction;
// every Execute sends the same payload.
type HTTPExecutor struct {
	client  *http.Client
	url     string
	apiKey  string
	body    []byte
	timeout time.Duration
}

// completionRequest mirrors the OpenAI-style body most inference
// endpoints accept.
type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
	Stream    bool   `json:"stream"`
}

// NewHTTP builds an executor for the configured target.
func NewHTTP(cfg config.TargetConfig) (*HTTPExecutor, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("executor: target url is required")
	}
	body, err := json.Marshal(completionRequest{
		Model:     cfg.Model,
		Prompt:    syntheticPrompt(cfg.PromptTokens),
		MaxTokens: cfg.MaxTokens,
		Stream:    cfg.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("executor: build payload: %w", err)
	}
	return &HTTPExecutor{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 256,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		body:    body,
		timeout: cfg.Timeout,
	}, nil
}

// Execute sends one request and classifies the outcome. Timeouts and
// cancellations map to OutcomeTimeout so that requests cut off at the
// end of a run's grace period are recorded as such.
func (e *HTTPExecutor) Execute(ctx context.Context) Result {
	reqCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.url, bytes.NewReader(e.body))
	if err != nil {
		return Result{Outcome: OutcomeFailure, Latency: time.Since(start), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
			reqCtx.Err() != nil {
			return Result{Outcome: OutcomeTimeout, Latency: latency, Err: err}
		}
		return Result{Outcome: OutcomeFailure, Latency: latency, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain so the connection can be reused. For streaming targets this
	// measures time to last byte, matching how the run is scored.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		latency = time.Since(start)
		if reqCtx.Err() != nil {
			return Result{Outcome: OutcomeTimeout, Latency: latency, StatusCode: resp.StatusCode, Err: err}
		}
		return Result{Outcome: OutcomeFailure, Latency: latency, StatusCode: resp.StatusCode, Err: err}
	}
	latency = time.Since(start)

	if resp.StatusCode >= 400 {
		return Result{
			Outcome:    OutcomeFailure,
			Latency:    latency,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("executor: target returned %s", resp.Status),
		}
	}
	return Result{Outcome: OutcomeSuccess, Latency: latency, StatusCode: resp.StatusCode}
}

// syntheticPrompt builds a deterministic prompt of roughly n tokens.
func syntheticPrompt(n int) string {
	if n <= 0 {
		return "ping"
	}
	var b strings.Builder
	b.Grow(n * 6)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "tok%d ", i)
	}
	return strings.TrimSpace(b.String())
}
