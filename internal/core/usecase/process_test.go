package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type processRepoFake struct {
	doc         *domain.Document
	getErr      error
	statusErr   error
	statusCalls []statusCall
	chunkCount  int
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *processRepoFake) SetChunkCount(_ context.Context, _ string, chunkCount int) error {
	f.chunkCount = chunkCount
	return nil
}

type processTaskFake struct {
	task      *domain.IngestTask
	getErr    error
	running   bool
	done      bool
	failedMsg string
	pending   []domain.IngestTask
	listErr   error
}

func (f *processTaskFake) Create(context.Context, *domain.IngestTask) error { return nil }

func (f *processTaskFake) GetByID(_ context.Context, id string) (*domain.IngestTask, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.task != nil && f.task.ID == id {
		copyTask := *f.task
		return &copyTask, nil
	}
	for _, task := range f.pending {
		if task.ID == id {
			copyTask := task
			return &copyTask, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "fetch task", errors.New("no task"))
}

func (f *processTaskFake) MarkRunning(context.Context, string) error {
	f.running = true
	return nil
}

func (f *processTaskFake) MarkDone(context.Context, string) error {
	f.done = true
	return nil
}

func (f *processTaskFake) MarkFailed(_ context.Context, _ string, errMessage string) error {
	f.failedMsg = errMessage
	return nil
}

func (f *processTaskFake) ListPending(context.Context, int) ([]domain.IngestTask, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.pending, nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type embedderFake struct {
	vectors [][]float32
	err     error
}

func (f *embedderFake) Embed(context.Context, []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) { return nil, nil }

type vectorIndexFake struct {
	chunks  []domain.DocumentChunk
	vectors [][]float32
	err     error
}

func (f *vectorIndexFake) IndexChunks(_ context.Context, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.chunks = chunks
	f.vectors = vectors
	return nil
}

type lexicalStoreFake struct {
	chunks []domain.DocumentChunk
	err    error
}

func (f *lexicalStoreFake) IndexChunks(_ context.Context, chunks []domain.DocumentChunk) error {
	if f.err != nil {
		return f.err
	}
	f.chunks = chunks
	return nil
}

func newProcessFixture(repo *processRepoFake, tasks *processTaskFake, extractor *extractorFake, embedder *embedderFake, vectors *vectorIndexFake, lexical *lexicalStoreFake) *ProcessDocumentUseCase {
	return NewProcessDocumentUseCase(
		repo,
		tasks,
		extractor,
		&chunkerFake{chunks: []string{"first chunk", "second chunk"}},
		embedder,
		vectors,
		lexical,
	)
}

func TestProcessTaskSuccess(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1", Filename: "report.txt"}}
	tasks := &processTaskFake{task: &domain.IngestTask{ID: "task-1", DocumentID: "doc-1", Status: domain.TaskPending}}
	vectors := &vectorIndexFake{}
	lexical := &lexicalStoreFake{}
	uc := newProcessFixture(repo, tasks, &extractorFake{text: "text"}, &embedderFake{vectors: [][]float32{{1}, {2}}}, vectors, lexical)

	if err := uc.ProcessTask(context.Background(), "task-1"); err != nil {
		t.Fatalf("ProcessTask() error = %v", err)
	}
	if !tasks.running || !tasks.done {
		t.Fatalf("expected task running then done, got running=%v done=%v", tasks.running, tasks.done)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusIndexed {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.chunkCount != 2 {
		t.Fatalf("expected chunk count 2, got %d", repo.chunkCount)
	}
	if len(vectors.chunks) != 2 || len(vectors.vectors) != 2 {
		t.Fatalf("expected both chunks in the vector index, got %d/%d", len(vectors.chunks), len(vectors.vectors))
	}
	if len(lexical.chunks) != 2 {
		t.Fatalf("expected both chunks in the lexical store, got %d", len(lexical.chunks))
	}
	if vectors.chunks[1].ChunkIndex != 1 || vectors.chunks[1].Filename != "report.txt" {
		t.Fatalf("unexpected chunk metadata: %+v", vectors.chunks[1])
	}
	if vectors.chunks[0].Tokens != 2 {
		t.Fatalf("expected token estimate 2, got %d", vectors.chunks[0].Tokens)
	}
}

func TestProcessTaskMarksFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	tasks := &processTaskFake{task: &domain.IngestTask{ID: "task-1", DocumentID: "doc-1", Status: domain.TaskPending}}
	uc := newProcessFixture(repo, tasks, &extractorFake{err: errors.New("extract fail")}, &embedderFake{vectors: [][]float32{{1}, {2}}}, &vectorIndexFake{}, &lexicalStoreFake{})

	err := uc.ProcessTask(context.Background(), "task-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
	if repo.statusCalls[1].errMsg == "" {
		t.Fatalf("expected failure reason on the document")
	}
	if tasks.failedMsg == "" {
		t.Fatalf("expected failure reason on the task")
	}
	if tasks.done {
		t.Fatalf("failed task must not be marked done")
	}
}

func TestProcessTaskMarksFailedOnVectorMismatch(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	tasks := &processTaskFake{task: &domain.IngestTask{ID: "task-1", DocumentID: "doc-1", Status: domain.TaskPending}}
	uc := newProcessFixture(repo, tasks, &extractorFake{text: "text"}, &embedderFake{vectors: [][]float32{{1}}}, &vectorIndexFake{}, &lexicalStoreFake{})

	err := uc.ProcessTask(context.Background(), "task-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessTaskMarksFailedOnLexicalError(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	tasks := &processTaskFake{task: &domain.IngestTask{ID: "task-1", DocumentID: "doc-1", Status: domain.TaskPending}}
	uc := newProcessFixture(repo, tasks, &extractorFake{text: "text"}, &embedderFake{vectors: [][]float32{{1}, {2}}}, &vectorIndexFake{}, &lexicalStoreFake{err: errors.New("pg down")})

	err := uc.ProcessTask(context.Background(), "task-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if tasks.failedMsg == "" {
		t.Fatalf("expected failure recorded on the task")
	}
}

func TestProcessTaskSkipsFinishedTask(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	tasks := &processTaskFake{task: &domain.IngestTask{ID: "task-1", DocumentID: "doc-1", Status: domain.TaskDone}}
	uc := newProcessFixture(repo, tasks, &extractorFake{text: "text"}, &embedderFake{vectors: [][]float32{{1}, {2}}}, &vectorIndexFake{}, &lexicalStoreFake{})

	if err := uc.ProcessTask(context.Background(), "task-1"); err != nil {
		t.Fatalf("redelivery must be a no-op, got %v", err)
	}
	if len(repo.statusCalls) != 0 {
		t.Fatalf("expected no status updates on redelivery, got %+v", repo.statusCalls)
	}
	if tasks.running {
		t.Fatalf("finished task must not run again")
	}
}

func TestProcessPendingSweep(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	tasks := &processTaskFake{pending: []domain.IngestTask{
		{ID: "task-1", DocumentID: "doc-1", Status: domain.TaskPending},
		{ID: "task-2", DocumentID: "doc-1", Status: domain.TaskPending},
	}}
	uc := newProcessFixture(repo, tasks, &extractorFake{text: "text"}, &embedderFake{vectors: [][]float32{{1}, {2}}}, &vectorIndexFake{}, &lexicalStoreFake{})

	processed, err := uc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed tasks, got %d", processed)
	}
}

func TestProcessPendingListError(t *testing.T) {
	tasks := &processTaskFake{listErr: errors.New("pg down")}
	uc := newProcessFixture(&processRepoFake{doc: &domain.Document{ID: "doc-1"}}, tasks, &extractorFake{text: "text"}, &embedderFake{vectors: [][]float32{{1}, {2}}}, &vectorIndexFake{}, &lexicalStoreFake{})

	if _, err := uc.ProcessPending(context.Background(), 10); err == nil {
		t.Fatalf("expected error")
	}
}
