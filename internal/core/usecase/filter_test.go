package usecase

import (
	"testing"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

func TestFilterEvidenceThresholdAndCap(t *testing.T) {
	merged := domain.MergedList{
		chunk("doc-1", 0, 0.95),
		chunk("doc-2", 0, 0.80),
		chunk("doc-3", 0, 0.75),
		chunk("doc-4", 0, 0.40),
		chunk("doc-5", 0, 0.72),
	}

	evidence := filterEvidence(merged, 0.6, 2)
	if len(evidence) != 2 {
		t.Fatalf("expected cap of 2, got %d", len(evidence))
	}
	for _, c := range evidence {
		if c.Score < 0.6 {
			t.Fatalf("chunk %s below threshold: %f", c.DocumentID, c.Score)
		}
	}
	if evidence[0].DocumentID != "doc-1" || evidence[1].DocumentID != "doc-2" {
		t.Fatalf("filter must preserve order, got %s, %s", evidence[0].DocumentID, evidence[1].DocumentID)
	}
}

func TestFilterEvidenceSkipsBelowThresholdMidList(t *testing.T) {
	merged := domain.MergedList{
		chunk("doc-1", 0, 0.9),
		chunk("doc-2", 0, 0.1),
		chunk("doc-3", 0, 0.8),
	}

	evidence := filterEvidence(merged, 0.5, 5)
	if len(evidence) != 2 {
		t.Fatalf("expected 2 surviving chunks, got %d", len(evidence))
	}
	if evidence[1].DocumentID != "doc-3" {
		t.Fatalf("expected doc-3 to survive, got %s", evidence[1].DocumentID)
	}
}

func TestFilterEvidenceAllBelowThresholdIsEmptyNotError(t *testing.T) {
	merged := domain.MergedList{chunk("doc-1", 0, 0.2), chunk("doc-2", 0, 0.3)}

	evidence := filterEvidence(merged, 0.9, 5)
	if len(evidence) != 0 {
		t.Fatalf("expected empty evidence set, got %d", len(evidence))
	}
	if evidence.TopScore() != 0 {
		t.Fatalf("empty evidence top score must be 0, got %f", evidence.TopScore())
	}
}

func TestFilterEvidenceZeroThresholdKeepsAllUpToCap(t *testing.T) {
	merged := domain.MergedList{chunk("doc-1", 0, 0.0), chunk("doc-2", 0, 0.0)}

	evidence := filterEvidence(merged, 0, 10)
	if len(evidence) != 2 {
		t.Fatalf("zero threshold must keep everything, got %d", len(evidence))
	}
}
