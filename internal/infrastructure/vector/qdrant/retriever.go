package qdrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
)

// SemanticRetriever embeds the query and searches the dense vector space.
type SemanticRetriever struct {
	embedder ports.Embedder
	client   *Client
}

func NewSemanticRetriever(embedder ports.Embedder, client *Client) *SemanticRetriever {
	return &SemanticRetriever{embedder: embedder, client: client}
}

func (r *SemanticRetriever) Name() string {
	return domain.RetrieverEmbedding
}

func (r *SemanticRetriever) Search(ctx context.Context, text string, topK int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("semantic search: %w: empty query", domain.ErrInvalidInput)
	}
	vector, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}
	return r.client.SearchDense(ctx, vector, topK)
}

// SparseRetriever matches query terms against the hashed sparse vectors
// stored next to the dense ones. It needs no embedding round trip.
type SparseRetriever struct {
	client *Client
}

func NewSparseRetriever(client *Client) *SparseRetriever {
	return &SparseRetriever{client: client}
}

func (r *SparseRetriever) Name() string {
	return domain.RetrieverLexical
}

func (r *SparseRetriever) Search(ctx context.Context, text string, topK int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("sparse search: %w: empty query", domain.ErrInvalidInput)
	}
	return r.client.SearchSparse(ctx, text, topK)
}
