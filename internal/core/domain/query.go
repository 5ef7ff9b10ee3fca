package domain

import "time"

// SubQueryOrigin tags how a sub-query came to be.
type SubQueryOrigin string

const (
	SubQueryOriginal SubQueryOrigin = "original"
	SubQueryExpanded SubQueryOrigin = "expanded"
)

// SubQuery is one retrieval query derived from the user question.
// Element 0 of any expansion is always the resolved question itself.
type SubQuery struct {
	Text   string         `json:"text"`
	Origin SubQueryOrigin `json:"origin"`
}

// QueryOptions carries the per-request knobs. Zero values are normalized
// against configured defaults before the pipeline runs.
type QueryOptions struct {
	MaxTokens          int     `json:"max_tokens"`
	RelevanceThreshold float64 `json:"relevance_threshold"`
	MaxEvidence        int     `json:"max_evidence_count"`
	EnableRerank       bool    `json:"enable_rerank"`
	EnableOptimization bool    `json:"enable_optimization"`
	EnableExpansion    bool    `json:"enable_expansion"`
	TemplateName       string  `json:"template_name,omitempty"`
}

// QueryRequest is one incoming question. Immutable once constructed.
type QueryRequest struct {
	Question       string       `json:"question"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Options        QueryOptions `json:"options"`
}

// PipelineLimits bounds one pass through the pipeline. Zero values are
// normalized to defaults by the use case constructors.
type PipelineLimits struct {
	Timeout            time.Duration      `json:"timeout"`
	RewriteTimeout     time.Duration      `json:"rewrite_timeout"`
	RerankTimeout      time.Duration      `json:"rerank_timeout"`
	HistoryTurns       int                `json:"history_turns"`
	ExpansionCount     int                `json:"expansion_count"`
	CandidatesPerQuery int                `json:"candidates_per_query"`
	FanOutLimit        int                `json:"fan_out_limit"`
	RRFK               int                `json:"rrf_k"`
	RetrieverWeights   map[string]float64 `json:"retriever_weights,omitempty"`
	RerankTopN         int                `json:"rerank_top_n"`
	MaxEvidence        int                `json:"max_evidence_count"`
	RelevanceThreshold float64            `json:"relevance_threshold"`
	MaxTokens          int                `json:"max_tokens"`
}

// AnswerResult is what the pipeline hands back to the caller.
type AnswerResult struct {
	QueryID        string                 `json:"query_id"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Question       string                 `json:"question"`
	Answer         string                 `json:"answer"`
	ProcessingTime float64                `json:"processing_time"`
	TokensUsed     int                    `json:"tokens_used"`
	RelevanceScore float64                `json:"relevance_score"`
	ChunkCount     int                    `json:"retrieved_chunks_count"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
