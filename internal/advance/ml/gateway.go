// Package ml wraps the external risk-model service. The gateway never
// returns a Go error to node execution: every failure mode collapses into
// an unavailable outcome so the caller can fall back to rules.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Decision values the model service may return.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Outcome is the typed result of one model invocation.
type Outcome struct {
	ModelKey     string
	Unavailable  bool
	Reason       string
	Score        float64
	Decision     string
	Experimental bool
}

// Approved reports whether a usable outcome approves the advance.
func (o Outcome) Approved() bool {
	return !o.Unavailable && o.Decision == DecisionApprove
}

// Unavailable builds the degraded outcome for a failed invocation.
func Unavailable(modelKey, reason string) Outcome {
	return Outcome{ModelKey: modelKey, Unavailable: true, Reason: reason}
}

// Gateway invokes a risk model with the features of an evaluation context.
type Gateway interface {
	Invoke(ctx context.Context, modelKey string, features map[string]any) Outcome
}

type scoreRequest struct {
	ModelKey string         `json:"modelKey"`
	Features map[string]any `json:"features"`
}

type scoreResponse struct {
	Score        float64 `json:"score"`
	Decision     string  `json:"decision"`
	Experimental bool    `json:"experimental"`
}

// HTTPGateway calls the risk-model HTTP endpoint with a bounded timeout.
type HTTPGateway struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPGateway{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Invoke posts the context features to the model service. Timeout, non-2xx
// responses and malformed payloads all degrade to an unavailable outcome.
func (g *HTTPGateway) Invoke(ctx context.Context, modelKey string, features map[string]any) Outcome {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{ModelKey: modelKey, Features: features})
	if err != nil {
		return g.degrade(modelKey, fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return g.degrade(modelKey, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return g.degrade(modelKey, fmt.Sprintf("model request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return g.degrade(modelKey, fmt.Sprintf("model returned %d", resp.StatusCode))
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return g.degrade(modelKey, fmt.Sprintf("decode response: %v", err))
	}
	if sr.Decision != DecisionApprove && sr.Decision != DecisionReject {
		return g.degrade(modelKey, fmt.Sprintf("malformed decision %q", sr.Decision))
	}

	return Outcome{
		ModelKey:     modelKey,
		Score:        sr.Score,
		Decision:     sr.Decision,
		Experimental: sr.Experimental,
	}
}

func (g *HTTPGateway) degrade(modelKey, reason string) Outcome {
	g.logger.Warn("ml gateway degraded to unavailable",
		slog.String("model_key", modelKey),
		slog.String("reason", reason))
	return Unavailable(modelKey, reason)
}
