package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

// Degradation tags recorded in retrieval diagnostics. Degraded stages
// lower answer quality, never fail the request.
const (
	degradeOptimizer   = "optimizer_failed"
	degradeExpander    = "expander_failed"
	degradeRetrieval   = "partial_retrieval"
	degradeRerank      = "rerank_failed"
	degradeMemoryRead  = "memory_read_failed"
	degradeMemoryWrite = "memory_write_failed"
)

// RetrievalUseCase runs the evidence pipeline: resolve, expand, fan out
// retrieval, fuse, rerank, filter. Stages run strictly in that order; all
// of them degrade in place except retrieval, which is fatal only when
// every (retriever, sub-query) pair failed.
type RetrievalUseCase struct {
	optimizer *QueryOptimizer
	expander  *QueryExpander
	retriever *ParallelRetriever
	merger    *RRFMerger
	reranker  *Reranker
	limits    domain.PipelineLimits
}

func NewRetrievalUseCase(
	optimizer *QueryOptimizer,
	expander *QueryExpander,
	retriever *ParallelRetriever,
	merger *RRFMerger,
	reranker *Reranker,
	limits domain.PipelineLimits,
) *RetrievalUseCase {
	if limits.CandidatesPerQuery <= 0 {
		limits.CandidatesPerQuery = 30
	}
	if limits.MaxEvidence <= 0 {
		limits.MaxEvidence = 5
	}

	return &RetrievalUseCase{
		optimizer: optimizer,
		expander:  expander,
		retriever: retriever,
		merger:    merger,
		reranker:  reranker,
		limits:    limits,
	}
}

// Retrieve produces the evidence set for one request. The diagnostics are
// non-nil whenever the question passed validation, including on fatal
// retrieval errors.
func (uc *RetrievalUseCase) Retrieve(ctx context.Context, req domain.QueryRequest, history []domain.ConversationTurn) (domain.EvidenceSet, *domain.RetrievalDiagnostics, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "retrieve evidence", fmt.Errorf("question is required"))
	}
	if req.Options.RelevanceThreshold < 0 || req.Options.RelevanceThreshold > 1 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "retrieve evidence",
			fmt.Errorf("relevance threshold %.3f is outside [0,1]", req.Options.RelevanceThreshold))
	}
	maxEvidence := req.Options.MaxEvidence
	if maxEvidence <= 0 {
		maxEvidence = uc.limits.MaxEvidence
	}

	diag := &domain.RetrievalDiagnostics{}

	resolved, degraded := uc.optimizer.Resolve(ctx, question, history, req.Options.EnableOptimization)
	if degraded {
		diag.Degradations = append(diag.Degradations, degradeOptimizer)
	}
	diag.ResolvedQuery = resolved

	queries, degraded := uc.expander.Expand(ctx, resolved, req.Options.EnableExpansion)
	if degraded {
		diag.Degradations = append(diag.Degradations, degradeExpander)
	}
	diag.SubQueries = len(queries)

	lists, failures, err := uc.retriever.Retrieve(ctx, queries, uc.limits.CandidatesPerQuery)
	diag.FailedPairs = failures
	if err != nil {
		return nil, diag, err
	}
	diag.RankedLists = len(lists)
	if len(failures) > 0 {
		diag.Degradations = append(diag.Degradations, degradeRetrieval)
	}

	merged := uc.merger.Merge(lists)
	diag.FusedChunks = len(merged)

	reranked, applied, degraded := uc.reranker.Rerank(ctx, resolved, merged, req.Options.EnableRerank)
	diag.RerankApplied = applied
	if degraded {
		diag.Degradations = append(diag.Degradations, degradeRerank)
	}

	evidence := filterEvidence(reranked, req.Options.RelevanceThreshold, maxEvidence)
	diag.EvidenceChunks = len(evidence)
	return evidence, diag, nil
}
