package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
)

// IngestDocumentUseCase accepts an upload: it stores the raw file, records
// the document and its ingest task, and queues the task for the indexing
// worker.
type IngestDocumentUseCase struct {
	documents ports.DocumentRepository
	tasks     ports.TaskRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
}

func NewIngestDocumentUseCase(
	documents ports.DocumentRepository,
	tasks ports.TaskRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		documents: documents,
		tasks:     tasks,
		storage:   storage,
		queue:     queue,
	}
}

// Upload stores the file and enqueues indexing. The task row is the
// durable record: when the queue publish fails the upload still succeeds
// and the worker sweep picks the pending task up later.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	task := &domain.IngestTask{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Status:     domain.TaskPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create ingest task: %w", err)
	}

	// Best effort: the pending task row survives a queue outage.
	_ = uc.queue.PublishIngestTask(ctx, domain.TaskMessage{
		TaskID:     task.ID,
		DocumentID: doc.ID,
		EnqueuedAt: time.Now().UTC(),
	})

	return doc, nil
}

// GetByID exposes document state to the read side.
func (uc *IngestDocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.documents.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
