package usecase

import "github.com/kirillkom/corpus-qa/internal/core/domain"

// filterEvidence drops chunks below the relevance threshold and truncates
// to the evidence cap, preserving the incoming order. Removing everything
// is a valid outcome: the empty set flows downstream so generation can
// answer honestly instead of fabricating citations.
func filterEvidence(merged domain.MergedList, threshold float64, maxEvidence int) domain.EvidenceSet {
	out := make(domain.EvidenceSet, 0, len(merged))
	for _, chunk := range merged {
		if chunk.Score < threshold {
			continue
		}
		out = append(out, chunk)
		if maxEvidence > 0 && len(out) >= maxEvidence {
			break
		}
	}
	return out
}
