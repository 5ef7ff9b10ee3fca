package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/corpus-qa/internal/config"
)

func newValidatingHandler(t *testing.T) http.Handler {
	t.Helper()

	rt, err := NewRouter(config.Config{APIValidateRequests: true}, &queryFake{}, &documentsFake{}, nil, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func TestValidationRejectsMissingQuestion(t *testing.T) {
	handler := newValidatingHandler(t)

	res := postQuery(t, handler, map[string]any{"session_id": "conv-1"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing question, got %d: %s", res.Code, res.Body.String())
	}
}

func TestValidationRejectsOutOfRangeThreshold(t *testing.T) {
	handler := newValidatingHandler(t)

	res := postQuery(t, handler, map[string]any{
		"question":            "valid question",
		"relevance_threshold": 1.5,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for threshold above 1, got %d", res.Code)
	}
}

func TestValidationRejectsUnknownFields(t *testing.T) {
	handler := newValidatingHandler(t)

	res := postQuery(t, handler, map[string]any{
		"question": "valid question",
		"top_k":    10,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestValidationPassesWellFormedQuery(t *testing.T) {
	handler := newValidatingHandler(t)

	res := postQuery(t, handler, map[string]any{
		"question":            "how do we rotate credentials?",
		"relevance_threshold": 0.4,
		"max_evidence_count":  3,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
}

func TestValidationIgnoresPathsOutsideContract(t *testing.T) {
	handler := newValidatingHandler(t)

	// openapi.yaml is served but deliberately not described by itself;
	// the validator must let it through.
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for undocumented path, got %d", res.Code)
	}
	if res.Body.Len() == 0 {
		t.Fatalf("expected the embedded document body")
	}
}

func TestValidationSkipsMultipartUploads(t *testing.T) {
	handler := newValidatingHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	// The handler, not the validator, reports the malformed multipart
	// body: proof the request skipped buffering validation.
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from the upload handler, got %d", res.Code)
	}
}
