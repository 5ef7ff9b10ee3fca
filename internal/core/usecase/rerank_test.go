package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

type scorerFake struct {
	scores []float64
	err    error
	query  string
	texts  []string
}

func (f *scorerFake) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	f.query = query
	f.texts = texts
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	out := make([]float64, len(texts))
	for i := range out {
		out[i] = 0.5
	}
	return out, nil
}

func TestRerankerReordersByModelScore(t *testing.T) {
	scorer := &scorerFake{scores: []float64{0.1, 0.95}}
	reranker := NewReranker(scorer, 10, time.Second)
	merged := domain.MergedList{chunk("doc-1", 0, 0.032), chunk("doc-2", 0, 0.030)}

	out, applied, degraded := reranker.Rerank(context.Background(), "question", merged, true)
	if !applied || degraded {
		t.Fatalf("expected applied=true degraded=false, got %v %v", applied, degraded)
	}
	if out[0].DocumentID != "doc-2" {
		t.Fatalf("expected doc-2 first after rerank, got %s", out[0].DocumentID)
	}
	if scorer.query != "question" || len(scorer.texts) != 2 {
		t.Fatalf("scorer received query=%q texts=%d", scorer.query, len(scorer.texts))
	}
}

func TestRerankerDisabledNormalizesFusedScores(t *testing.T) {
	reranker := NewReranker(&scorerFake{}, 10, time.Second)
	merged := domain.MergedList{chunk("doc-1", 0, 0.05), chunk("doc-2", 0, 0.03), chunk("doc-3", 0, 0.01)}

	out, applied, degraded := reranker.Rerank(context.Background(), "q", merged, false)
	if applied || degraded {
		t.Fatalf("expected passthrough, got applied=%v degraded=%v", applied, degraded)
	}
	if out[0].DocumentID != "doc-1" || out[2].DocumentID != "doc-3" {
		t.Fatalf("passthrough must keep fused order, got %s..%s", out[0].DocumentID, out[2].DocumentID)
	}
	if out[0].Score != 1.0 || out[2].Score != 0.0 {
		t.Fatalf("expected min-max normalized scores, got %f and %f", out[0].Score, out[2].Score)
	}
}

func TestRerankerScorerFailureDegradesToFusedOrder(t *testing.T) {
	reranker := NewReranker(&scorerFake{err: errors.New("scorer down")}, 10, time.Second)
	merged := domain.MergedList{chunk("doc-1", 0, 0.05), chunk("doc-2", 0, 0.03)}

	out, applied, degraded := reranker.Rerank(context.Background(), "q", merged, true)
	if applied || !degraded {
		t.Fatalf("expected degraded passthrough, got applied=%v degraded=%v", applied, degraded)
	}
	if out[0].DocumentID != "doc-1" {
		t.Fatalf("degraded path must keep fused order, got %s", out[0].DocumentID)
	}
}

func TestRerankerScoreCountMismatchDegrades(t *testing.T) {
	reranker := NewReranker(&scorerFake{scores: []float64{0.4}}, 10, time.Second)
	merged := domain.MergedList{chunk("doc-1", 0, 0.05), chunk("doc-2", 0, 0.03)}

	_, applied, degraded := reranker.Rerank(context.Background(), "q", merged, true)
	if applied || !degraded {
		t.Fatalf("expected degradation on score count mismatch")
	}
}

func TestRerankerKeepsTailBeyondHead(t *testing.T) {
	scorer := &scorerFake{scores: []float64{0.2, 0.9}}
	reranker := NewReranker(scorer, 2, time.Second)
	merged := domain.MergedList{chunk("doc-1", 0, 0.05), chunk("doc-2", 0, 0.04), chunk("doc-3", 0, 0.03)}

	out, _, _ := reranker.Rerank(context.Background(), "q", merged, true)
	if len(out) != 3 {
		t.Fatalf("expected full list back, got %d", len(out))
	}
	if out[2].DocumentID != "doc-3" {
		t.Fatalf("tail must keep fused order after the head, got %s", out[2].DocumentID)
	}
}

func TestRerankerEmptyInput(t *testing.T) {
	reranker := NewReranker(&scorerFake{}, 10, time.Second)
	out, applied, degraded := reranker.Rerank(context.Background(), "q", nil, true)
	if len(out) != 0 || applied || degraded {
		t.Fatalf("expected empty passthrough, got %d applied=%v degraded=%v", len(out), applied, degraded)
	}
}
