package domain

import "strconv"

// Retriever names used as RawScores keys and in diagnostics.
const (
	RetrieverEmbedding = "embedding"
	RetrieverLexical   = "lexical"
)

// RetrievedChunk is one retrievable passage of a source document.
// Identity is (DocumentID, ChunkIndex): the same physical chunk returned
// by two retrievers is one entity, never two.
type RetrievedChunk struct {
	DocumentID string             `json:"document_id"`
	ChunkIndex int                `json:"chunk_index"`
	Filename   string             `json:"filename,omitempty"`
	Text       string             `json:"text"`
	RawScores  map[string]float64 `json:"raw_scores,omitempty"`
	Score      float64            `json:"score"`
}

// Key returns the chunk identity used for deduplication across stages.
func (c RetrievedChunk) Key() string {
	return c.DocumentID + ":" + strconv.Itoa(c.ChunkIndex)
}

// RankedList is the output of one retriever for one sub-query. Chunks are
// ordered by that retriever's judgment; rank is the 1-based position.
// Chunk Score holds the retriever's raw score.
type RankedList struct {
	Retriever string           `json:"retriever"`
	Query     SubQuery         `json:"query"`
	Chunks    []RetrievedChunk `json:"chunks"`
}

// MergedList is the fusion output: ordered by non-increasing fused score,
// no duplicate chunk keys. Chunk Score holds the fused score.
type MergedList []RetrievedChunk

// EvidenceSet is the final filtered, ordered evidence handed to answer
// generation. Empty is a valid value, not an error.
type EvidenceSet []RetrievedChunk

// TopScore returns the leading score or zero when empty.
func (e EvidenceSet) TopScore() float64 {
	if len(e) == 0 {
		return 0
	}
	return e[0].Score
}

// RetrievalFailure records one failed (retriever, sub-query) pair.
type RetrievalFailure struct {
	Retriever string `json:"retriever"`
	Query     string `json:"query"`
	Reason    string `json:"reason"`
}

// RetrievalDiagnostics accumulates what happened to a request on its way
// through the pipeline. Degradations are stage tags such as
// "optimizer_failed" or "rerank_failed"; they are reported, never fatal.
type RetrievalDiagnostics struct {
	ResolvedQuery  string             `json:"resolved_query"`
	SubQueries     int                `json:"sub_queries"`
	RankedLists    int                `json:"ranked_lists"`
	FusedChunks    int                `json:"fused_chunks"`
	FailedPairs    []RetrievalFailure `json:"failed_pairs,omitempty"`
	Degradations   []string           `json:"degradations,omitempty"`
	RerankApplied  bool               `json:"rerank_applied"`
	EvidenceChunks int                `json:"evidence_chunks"`
}
