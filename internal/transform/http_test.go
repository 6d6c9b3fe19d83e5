package transform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker"

	"jsonlbatch/internal/engine"
)

func testContext() *engine.Context {
	ectx := engine.NewContext(nil)
	ectx.Session = &http.Client{}
	return ectx
}

func TestHTTPTransform_PostsRecordAndDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var record map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			t.Errorf("decode request: %v", err)
		}
		record["ok"] = true
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(record); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	tr := NewHTTPTransform(HTTPConfig{URL: server.URL})
	out, err := tr.Process(context.Background(), engine.Record{"id": "a", "v": 1.0}, testContext())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("expected transformed record, got %v", out)
	}
	if out["id"] != "a" {
		t.Fatalf("expected original fields preserved, got %v", out)
	}
}

func TestHTTPTransform_UpstreamErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewHTTPTransform(HTTPConfig{URL: server.URL})
	if _, err := tr.Process(context.Background(), engine.Record{"id": "a"}, testContext()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestHTTPTransform_EmptyResponseVoidsRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tr := NewHTTPTransform(HTTPConfig{URL: server.URL})
	out, err := tr.Process(context.Background(), engine.Record{"id": "a"}, testContext())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil (voided) result for empty body, got %v", out)
	}
}

func TestHTTPTransform_MissingSessionFails(t *testing.T) {
	tr := NewHTTPTransform(HTTPConfig{URL: "http://unused"})
	if _, err := tr.Process(context.Background(), engine.Record{"id": "a"}, engine.NewContext(nil)); err == nil {
		t.Fatal("expected error when context has no session")
	}
}

func TestHTTPTransform_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tr := NewHTTPTransform(HTTPConfig{URL: server.URL, BreakerName: "test-breaker"})
	ectx := testContext()
	for i := 0; i < 5; i++ {
		if _, err := tr.Process(context.Background(), engine.Record{"id": "a"}, ectx); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	// The breaker is now open: the next call fails without reaching the
	// server at all.
	server.Close()
	if _, err := tr.Process(context.Background(), engine.Record{"id": "a"}, ectx); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open-breaker error, got %v", err)
	}
}
