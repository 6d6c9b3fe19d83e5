// Package transform provides a reference ProcessFunc implementation for
// record transformations that call out to an HTTP API, the shape of
// collaborator the engine package is built to drive.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"jsonlbatch/internal/engine"
)

// HTTPConfig configures an HTTP-backed transform.
type HTTPConfig struct {
	URL            string
	Method         string
	RequestTimeout time.Duration
	Headers        map[string]string

	// BreakerName, when non-empty, enables a circuit breaker around the
	// request so a misbehaving upstream stops being hammered by a batch's
	// concurrent callers instead of returning one retryable failure per
	// record forever.
	BreakerName string
}

// HTTPTransform posts each record as JSON to a configured endpoint and
// decodes the JSON response body as the resulting record. It is grounded
// in the same per-call shared-session model the engine's Context carries,
// one *http.Client per run rather than per request.
type HTTPTransform struct {
	cfg     HTTPConfig
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPTransform builds an HTTPTransform. An empty Method defaults to POST.
func NewHTTPTransform(cfg HTTPConfig) *HTTPTransform {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	var breaker *gobreaker.CircuitBreaker
	if cfg.BreakerName != "" {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.BreakerName,
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		})
	}

	return &HTTPTransform{cfg: cfg, breaker: breaker}
}

// Process implements engine.ProcessFunc.
func (t *HTTPTransform) Process(ctx context.Context, record engine.Record, ectx *engine.Context) (engine.Record, error) {
	if t.breaker != nil {
		result, err := t.breaker.Execute(func() (any, error) {
			return t.do(ctx, record, ectx)
		})
		if err != nil {
			return nil, err
		}
		return result.(engine.Record), nil
	}
	return t.do(ctx, record, ectx)
}

func (t *HTTPTransform) do(ctx context.Context, record engine.Record, ectx *engine.Context) (engine.Record, error) {
	if ectx.Session == nil {
		return nil, fmt.Errorf("transform: no http session in context")
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("transform: marshal record: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, t.cfg.Method, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transform: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ectx.Session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transform: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transform: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("transform: upstream status %d: %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return nil, nil
	}

	var out engine.Record
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("transform: decode response: %w", err)
	}
	return out, nil
}
