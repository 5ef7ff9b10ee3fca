package usecase

import (
	"sort"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

// RRFMerger fuses any number of ranked lists with Reciprocal Rank Fusion:
// each list contributes weight/(k+rank) per chunk it contains. The merge
// depends only on per-list ranks, so it is invariant to the order the
// lists arrive in, and composing more retrievers or sub-queries is just
// more additive terms.
type RRFMerger struct {
	k       int
	weights map[string]float64
}

func NewRRFMerger(k int, weights map[string]float64) *RRFMerger {
	if k <= 0 {
		k = 60
	}
	return &RRFMerger{k: k, weights: weights}
}

type fusedCandidate struct {
	chunk    domain.RetrievedChunk
	score    float64
	bestRank int
}

// Merge returns chunks ordered by non-increasing fused score with no
// duplicate chunk keys. Ties break by the earliest rank observed in any
// list, then by chunk identity.
func (m *RRFMerger) Merge(lists []domain.RankedList) domain.MergedList {
	acc := make(map[string]fusedCandidate)
	for _, list := range lists {
		weight := m.weights[list.Retriever]
		if weight <= 0 {
			weight = 1.0
		}
		for idx, chunk := range list.Chunks {
			rank := idx + 1
			key := chunk.Key()
			candidate, ok := acc[key]
			if !ok {
				candidate.bestRank = rank
			}
			candidate.chunk = preferRicherChunk(candidate.chunk, chunk)
			candidate.chunk.RawScores = recordRawScore(candidate.chunk.RawScores, list.Retriever, chunk.Score)
			candidate.score += weight / float64(m.k+rank)
			if rank < candidate.bestRank {
				candidate.bestRank = rank
			}
			acc[key] = candidate
		}
	}

	out := make([]fusedCandidate, 0, len(acc))
	for _, c := range acc {
		c.chunk.Score = c.score
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].bestRank != out[j].bestRank {
			return out[i].bestRank < out[j].bestRank
		}
		if out[i].chunk.DocumentID != out[j].chunk.DocumentID {
			return out[i].chunk.DocumentID < out[j].chunk.DocumentID
		}
		return out[i].chunk.ChunkIndex < out[j].chunk.ChunkIndex
	})

	merged := make(domain.MergedList, len(out))
	for i, c := range out {
		merged[i] = c.chunk
	}
	return merged
}

func recordRawScore(scores map[string]float64, retriever string, score float64) map[string]float64 {
	if scores == nil {
		scores = make(map[string]float64, 2)
	}
	if existing, ok := scores[retriever]; !ok || score > existing {
		scores[retriever] = score
	}
	return scores
}

// preferRicherChunk backfills fields the other retriever's view of the
// same chunk may have left empty.
func preferRicherChunk(current, candidate domain.RetrievedChunk) domain.RetrievedChunk {
	if current.DocumentID == "" && current.Filename == "" && current.Text == "" {
		merged := candidate
		merged.RawScores = current.RawScores
		return merged
	}
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Filename == "" && candidate.Filename != "" {
		current.Filename = candidate.Filename
	}
	return current
}

func trimCandidates(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}
