package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"smart-apply/internal/config"
	"smart-apply/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(config.EmbeddingsConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
		Timeout: 5 * time.Second,
	})
	return c, srv
}

func TestEmbedSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq embeddingsRequest

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1, 0.2, 0.3}}},
		})
	})

	vec, err := c.Embed(context.Background(), "  senior   gopher\n\twith postgres  ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("vector len = %d, want 3", len(vec))
	}
	if gotPath != "/v1/embeddings" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Input != "senior gopher with postgres" {
		t.Errorf("input not cleaned: %q", gotReq.Input)
	}
	if gotReq.Model != "text-embedding-3-small" {
		t.Errorf("model = %q", gotReq.Model)
	}
}

func TestEmbedServiceErrorStatus(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusTooManyRequests, retryable: true},
		{status: http.StatusInternalServerError, retryable: true},
		{status: http.StatusBadRequest, retryable: false},
		{status: http.StatusUnauthorized, retryable: false},
	}

	for _, tc := range cases {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})

		_, err := c.Embed(context.Background(), "text")
		var se *ServiceError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: want ServiceError, got %v", tc.status, err)
		}
		if se.StatusCode != tc.status {
			t.Errorf("status = %d, want %d", se.StatusCode, tc.status)
		}
		if se.Retryable() != tc.retryable {
			t.Errorf("status %d: retryable = %t, want %t", tc.status, se.Retryable(), tc.retryable)
		}
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent for empty input")
	})

	_, err := c.Embed(context.Background(), "   \n\t ")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("want ServiceError, got %v", err)
	}
	if se.Retryable() {
		t.Errorf("empty input must not be retryable")
	}
}

func TestEmbedMalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := c.Embed(context.Background(), "text")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("want ServiceError, got %v", err)
	}
}

func TestRetryingEmbedderRecovers(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{1}}},
		})
	})

	re := NewRetryingEmbedder(c, retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond}, nil)
	vec, err := re.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 1 {
		t.Fatalf("vector len = %d, want 1", len(vec))
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRetryingEmbedderGivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	})

	re := NewRetryingEmbedder(c, retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond}, nil)
	_, err := re.Embed(context.Background(), "text")
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (4xx is not retryable)", calls.Load())
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  a\n\nb\t\tc  ")
	if got != "a b c" {
		t.Errorf("CleanText = %q", got)
	}
}

func TestTruncateText(t *testing.T) {
	if got := TruncateText("hello", 10); got != "hello" {
		t.Errorf("short text changed: %q", got)
	}
	if got := TruncateText("hello world", 5); got != "hello" {
		t.Errorf("TruncateText = %q", got)
	}
}
