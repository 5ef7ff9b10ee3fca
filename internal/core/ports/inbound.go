package ports

import (
	"context"
	"io"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

// QueryService is the inbound contract for answering questions against the corpus.
type QueryService interface {
	Process(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error)
}

// EvidenceSearcher runs the retrieval pipeline without generation and
// returns the filtered evidence. Serves search-only callers.
type EvidenceSearcher interface {
	Retrieve(ctx context.Context, req domain.QueryRequest) (domain.EvidenceSet, *domain.RetrievalDiagnostics, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// TaskProcessor is the inbound contract for asynchronous ingest processing.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, taskID string) error
}
