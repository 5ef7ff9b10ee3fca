package bge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/corpus-qa/internal/infrastructure/resilience"
)

func newTestExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1, BreakerEnabled: false})
}

func TestScoreAlignsByIndex(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.91},{"index":0,"relevance_score":0.12}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-base", newTestExecutor())
	scores, err := client.Score(context.Background(), "query", []string{"first passage", "second passage"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0] != 0.12 || scores[1] != 0.91 {
		t.Fatalf("scores misaligned: %v", scores)
	}
	if payload["model"] != "bge-reranker-base" {
		t.Fatalf("expected model in payload, got %v", payload["model"])
	}
	docs, ok := payload["documents"].([]any)
	if !ok || len(docs) != 2 {
		t.Fatalf("expected documents in payload, got %v", payload["documents"])
	}
}

func TestScoreAcceptsDataShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"score":1.7}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-base", newTestExecutor())
	scores, err := client.Score(context.Background(), "query", []string{"only passage"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[0] != 1.0 {
		t.Fatalf("expected clamped score 1.0, got %v", scores[0])
	}
}

func TestScoreRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":5,"relevance_score":0.5}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-base", newTestExecutor())
	if _, err := client.Score(context.Background(), "query", []string{"only passage"}); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}

func TestScoreEmptyTexts(t *testing.T) {
	client := New("http://localhost:0", "bge-reranker-base", newTestExecutor())
	scores, err := client.Score(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores != nil {
		t.Fatalf("expected nil scores, got %v", scores)
	}
}
