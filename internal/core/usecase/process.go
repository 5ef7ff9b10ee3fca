package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
)

// ProcessDocumentUseCase turns an uploaded document into indexed chunks.
// Every document lands in both the vector index and the lexical store;
// the lexical backend choice only affects the query side.
type ProcessDocumentUseCase struct {
	documents ports.DocumentRepository
	tasks     ports.TaskRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectors   ports.VectorIndex
	lexical   ports.LexicalStore
}

func NewProcessDocumentUseCase(
	documents ports.DocumentRepository,
	tasks ports.TaskRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	lexical ports.LexicalStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		documents: documents,
		tasks:     tasks,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		lexical:   lexical,
	}
}

// ProcessTask runs the indexing pipeline for one queued task and records
// the outcome on both the task and the document. Redeliveries of a
// finished task are no-ops.
func (uc *ProcessDocumentUseCase) ProcessTask(ctx context.Context, taskID string) error {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("fetch task by id: %w", err)
	}
	if task.Status == domain.TaskDone {
		return nil
	}

	if err := uc.tasks.MarkRunning(ctx, task.ID); err != nil {
		return fmt.Errorf("set task=running: %w", err)
	}
	if err := uc.documents.UpdateStatus(ctx, task.DocumentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, err := uc.indexDocument(ctx, task.DocumentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, task, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.documents.SetChunkCount(ctx, task.DocumentID, chunkCount); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}
	if err := uc.documents.UpdateStatus(ctx, task.DocumentID, domain.StatusIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	if err := uc.tasks.MarkDone(ctx, task.ID); err != nil {
		return fmt.Errorf("set task=done: %w", err)
	}
	return nil
}

// ProcessPending drains tasks the queue never delivered, for example
// after a publish failure or a worker crash. It returns how many tasks
// finished; per-task failures are recorded on the task rows.
func (uc *ProcessDocumentUseCase) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 10
	}
	pending, err := uc.tasks.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending tasks: %w", err)
	}

	processed := 0
	for _, task := range pending {
		if err := uc.ProcessTask(ctx, task.ID); err != nil {
			continue
		}
		processed++
	}
	return processed, nil
}

func (uc *ProcessDocumentUseCase) indexDocument(ctx context.Context, documentID string) (int, error) {
	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return 0, err
	}

	pieces, err := uc.chunk(text)
	if err != nil {
		return 0, err
	}
	chunks := buildChunks(doc, pieces)

	vectors, err := uc.embed(ctx, pieces)
	if err != nil {
		return 0, err
	}

	if err := uc.vectors.IndexChunks(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("index chunks in vector db: %w", err)
	}
	if err := uc.lexical.IndexChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index chunks in lexical store: %w", err)
	}
	return len(chunks), nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) chunk(text string) ([]string, error) {
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, task *domain.IngestTask, processErr error) error {
	if err := uc.documents.UpdateStatus(ctx, task.DocumentID, domain.StatusFailed, processErr.Error()); err != nil {
		return err
	}
	return uc.tasks.MarkFailed(ctx, task.ID, processErr.Error())
}

func buildChunks(doc *domain.Document, pieces []string) []domain.DocumentChunk {
	chunks := make([]domain.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Filename:   doc.Filename,
			Text:       piece,
			Tokens:     len(strings.Fields(piece)),
		}
	}
	return chunks
}
