package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
)

const (
	rerankFusedWeight = 0.3
	rerankModelWeight = 0.7
	maxRerankHead     = 64
)

// Reranker rescores the fused head with a cross-encoder and blends the
// model score with the normalized fused score. Reranking is a quality
// refinement: disabled or failing, the fused order passes through with
// scores min-max normalized so the relevance threshold keeps its meaning.
type Reranker struct {
	scorer  ports.RelevanceScorer
	topN    int
	timeout time.Duration
}

func NewReranker(scorer ports.RelevanceScorer, topN int, timeout time.Duration) *Reranker {
	if topN <= 0 {
		topN = 20
	}
	if topN > maxRerankHead {
		topN = maxRerankHead
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reranker{scorer: scorer, topN: topN, timeout: timeout}
}

// Rerank returns the rescored list plus (applied, degraded) flags.
// applied is true only when the cross-encoder actually scored the head.
func (r *Reranker) Rerank(ctx context.Context, query string, merged domain.MergedList, enabled bool) (domain.MergedList, bool, bool) {
	if len(merged) == 0 {
		return merged, false, false
	}

	topN := r.topN
	if topN > len(merged) {
		topN = len(merged)
	}
	head := make([]domain.RetrievedChunk, topN)
	copy(head, merged[:topN])
	normalizeScores(head)

	if !enabled || r.scorer == nil {
		return rejoin(head, merged, topN), false, false
	}

	texts := make([]string, len(head))
	for i, chunk := range head {
		texts[i] = chunk.Text
	}

	scoreCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scores, err := r.scorer.Score(scoreCtx, query, texts)
	if err != nil || len(scores) != len(head) {
		return rejoin(head, merged, topN), false, true
	}

	for i := range head {
		head[i].Score = rerankFusedWeight*head[i].Score + rerankModelWeight*clampUnit(scores[i])
	}

	sort.SliceStable(head, func(i, j int) bool {
		if head[i].Score != head[j].Score {
			return head[i].Score > head[j].Score
		}
		if head[i].DocumentID != head[j].DocumentID {
			return head[i].DocumentID < head[j].DocumentID
		}
		return head[i].ChunkIndex < head[j].ChunkIndex
	})

	return rejoin(head, merged, topN), true, false
}

// normalizeScores min-max normalizes in place to [0,1].
func normalizeScores(chunks []domain.RetrievedChunk) {
	if len(chunks) == 0 {
		return
	}

	minScore := chunks[0].Score
	maxScore := chunks[0].Score
	for _, chunk := range chunks[1:] {
		if chunk.Score < minScore {
			minScore = chunk.Score
		}
		if chunk.Score > maxScore {
			maxScore = chunk.Score
		}
	}

	rangeScore := maxScore - minScore
	for i := range chunks {
		if rangeScore <= 0 {
			if chunks[i].Score > 0 {
				chunks[i].Score = 1
			} else {
				chunks[i].Score = 0
			}
			continue
		}
		chunks[i].Score = (chunks[i].Score - minScore) / rangeScore
	}
}

func rejoin(head []domain.RetrievedChunk, merged domain.MergedList, topN int) domain.MergedList {
	if topN == len(merged) {
		return head
	}
	out := make(domain.MergedList, 0, len(merged))
	out = append(out, head...)
	out = append(out, merged[topN:]...)
	return out
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
