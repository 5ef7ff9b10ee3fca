package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/corpus-qa/internal/config"
	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

type queryFake struct {
	err    error
	result *domain.AnswerResult
	last   *domain.QueryRequest
}

func (f *queryFake) Process(_ context.Context, req domain.QueryRequest) (*domain.AnswerResult, error) {
	f.last = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AnswerResult{
		QueryID:        "q-1",
		ConversationID: req.ConversationID,
		Question:       req.Question,
		Answer:         "stub answer",
	}, nil
}

type documentsFake struct {
	uploadErr error
	getErr    error
}

func (f *documentsFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_file.txt",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (f *documentsFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Document{
		ID:          "doc-1",
		Filename:    "a.txt",
		MimeType:    "text/plain",
		StoragePath: "doc-1_a.txt",
		Status:      domain.StatusIndexed,
		ChunkCount:  3,
	}, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	rt, err := NewRouter(cfg, &queryFake{}, &documentsFake{}, nil, nil)
	if err != nil {
		panic(err)
	}
	return rt.Handler()
}
