package usecase

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
)

// ParallelRetriever fans every (retriever, sub-query) pair out concurrently
// under a bounded limit. A failed pair contributes nothing but its failure
// record; only all pairs failing is an error. Result order is positional
// (retriever-major, sub-query-minor), never arrival order, so downstream
// fusion stays deterministic.
type ParallelRetriever struct {
	retrievers []ports.Retriever
	limit      int
}

func NewParallelRetriever(retrievers []ports.Retriever, limit int) *ParallelRetriever {
	if limit <= 0 {
		limit = 3
	}
	return &ParallelRetriever{retrievers: retrievers, limit: limit}
}

// Retrieve runs the fan-out and returns the successful ranked lists plus
// the failed pairs. The error is non-nil only when no pair succeeded or
// the context expired.
func (pr *ParallelRetriever) Retrieve(ctx context.Context, queries []domain.SubQuery, topK int) ([]domain.RankedList, []domain.RetrievalFailure, error) {
	if len(pr.retrievers) == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("no retrievers configured"))
	}
	if len(queries) == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("no sub-queries to retrieve"))
	}
	if topK <= 0 {
		topK = 30
	}

	type pair struct {
		retriever ports.Retriever
		query     domain.SubQuery
	}
	pairs := make([]pair, 0, len(pr.retrievers)*len(queries))
	for _, retriever := range pr.retrievers {
		for _, query := range queries {
			pairs = append(pairs, pair{retriever: retriever, query: query})
		}
	}

	results := make([]domain.RankedList, len(pairs))
	errs := make([]error, len(pairs))

	var group errgroup.Group
	group.SetLimit(pr.limit)
	for i, p := range pairs {
		group.Go(func() error {
			chunks, err := p.retriever.Search(ctx, p.query.Text, topK)
			if err != nil {
				errs[i] = err
				return nil
			}
			if len(chunks) > topK {
				chunks = chunks[:topK]
			}
			results[i] = domain.RankedList{
				Retriever: p.retriever.Name(),
				Query:     p.query,
				Chunks:    chunks,
			}
			return nil
		})
	}
	// Goroutines never return errors; failures land in errs so one bad
	// pair cannot cancel its siblings.
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, domain.WrapError(domain.ErrTimeout, "retrieve", err)
	}

	lists := make([]domain.RankedList, 0, len(pairs))
	failures := make([]domain.RetrievalFailure, 0)
	for i, p := range pairs {
		if errs[i] != nil {
			failures = append(failures, domain.RetrievalFailure{
				Retriever: p.retriever.Name(),
				Query:     truncateForDiagnostics(p.query.Text),
				Reason:    errs[i].Error(),
			})
			continue
		}
		lists = append(lists, results[i])
	}

	if len(lists) == 0 {
		return nil, failures, domain.WrapError(domain.ErrUnavailable, "retrieve",
			fmt.Errorf("all %d retrieval calls failed", len(pairs)))
	}
	return lists, failures, nil
}

func truncateForDiagnostics(s string) string {
	const maxRunes = 120
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes])
}
