package ports

import (
	"context"
	"io"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

// Retriever is the single capability both retrieval variants expose. Name
// tags ranked lists and raw scores; Search must be deterministic for a
// fixed index state and fail on empty query text.
type Retriever interface {
	Name() string
	Search(ctx context.Context, text string, topK int) ([]domain.RetrievedChunk, error)
}

// RelevanceScorer scores (query, passage) pairs jointly with a
// cross-encoder. Scores align with texts by index and live in [0,1].
type RelevanceScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AnswerGenerator produces model output from an assembled prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (domain.GenerationResult, error)
	GenerateJSON(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error)
}

// ConversationMemory is the append/read log of conversation turns.
// Appends for the same conversation id are serialized by the implementation.
type ConversationMemory interface {
	Recent(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
	Append(ctx context.Context, turn domain.ConversationTurn) error
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex ingests chunk embeddings into the semantic index.
type VectorIndex interface {
	IndexChunks(ctx context.Context, chunks []domain.DocumentChunk, vectors [][]float32) error
}

// LexicalStore ingests chunks into the inverted lexical index.
type LexicalStore interface {
	IndexChunks(ctx context.Context, chunks []domain.DocumentChunk) error
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, chunkCount int) error
}

// TaskRepository tracks ingest task state across worker restarts.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.IngestTask) error
	GetByID(ctx context.Context, id string) (*domain.IngestTask, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
	ListPending(ctx context.Context, limit int) ([]domain.IngestTask, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingest task envelopes.
type MessageQueue interface {
	PublishIngestTask(ctx context.Context, msg domain.TaskMessage) error
	SubscribeIngestTasks(ctx context.Context, handler func(context.Context, domain.TaskMessage) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}
