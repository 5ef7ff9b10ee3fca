// Package httpadapter exposes the query pipeline and document ingestion
// over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/corpus-qa/internal/config"
	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/observability/metrics"
)

const serviceName = "corpus-qa"

// serviceVersion is overridden at build time via -ldflags.
var serviceVersion = "dev"

type queryService interface {
	Process(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error)
}

type documentService interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

type Router struct {
	cfg         config.Config
	query       queryService
	documents   documentService
	health      *HealthChecker
	httpMetrics *metrics.HTTPServerMetrics
	validator   *requestValidator
}

func NewRouter(
	cfg config.Config,
	query queryService,
	documents documentService,
	health *HealthChecker,
	httpMetrics *metrics.HTTPServerMetrics,
) (*Router, error) {
	rt := &Router{
		cfg:         cfg,
		query:       query,
		documents:   documents,
		health:      health,
		httpMetrics: httpMetrics,
	}

	if cfg.APIValidateRequests {
		validator, err := newRequestValidator()
		if err != nil {
			return nil, fmt.Errorf("build request validator: %w", err)
		}
		rt.validator = validator
	}

	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/info", rt.serviceInfo)
	mux.HandleFunc("/v1/query", rt.handleQuery)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/openapi.yaml", rt.serveOpenAPISpec)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
	}

	var handler http.Handler = mux
	if rt.validator != nil {
		handler = rt.validator.Middleware(handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.BackpressureWaitMsec)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	report := rt.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (rt *Router) serviceInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"models": map[string]string{
			"generation": rt.cfg.OllamaGenModel,
			"embedding":  rt.cfg.OllamaEmbedModel,
			"reranker":   rt.cfg.RerankerModel,
		},
		"lexical_backend": rt.cfg.LexicalBackend,
		"defaults": map[string]any{
			"max_tokens":          rt.cfg.MaxTokens,
			"relevance_threshold": rt.cfg.RelevanceThreshold,
			"max_evidence_count":  rt.cfg.MaxEvidence,
		},
	})
}

// queryRequestBody uses pointers for the tunables so an absent field can
// be told apart from an explicit zero: relevance_threshold 0 means "keep
// everything", omitting it means the configured default.
type queryRequestBody struct {
	Question           string   `json:"question"`
	SessionID          string   `json:"session_id"`
	MaxTokens          *int     `json:"max_tokens"`
	RelevanceThreshold *float64 `json:"relevance_threshold"`
	MaxEvidence        *int     `json:"max_evidence_count"`
	EnableRerank       *bool    `json:"enable_rerank"`
	EnableOptimization *bool    `json:"enable_optimization"`
	EnableExpansion    *bool    `json:"enable_expansion"`
	TemplateName       string   `json:"template_name"`
}

func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.query.Process(r.Context(), domain.QueryRequest{
		Question:       body.Question,
		ConversationID: body.SessionID,
		Options:        rt.queryOptions(body),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	rt.recordQueryMetrics(result)
	logDegradations(r.Context(), result)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) queryOptions(body queryRequestBody) domain.QueryOptions {
	opts := domain.QueryOptions{
		MaxTokens:          rt.cfg.MaxTokens,
		RelevanceThreshold: rt.cfg.RelevanceThreshold,
		MaxEvidence:        rt.cfg.MaxEvidence,
		EnableRerank:       true,
		EnableOptimization: true,
		EnableExpansion:    true,
		TemplateName:       body.TemplateName,
	}
	if body.MaxTokens != nil {
		opts.MaxTokens = *body.MaxTokens
	}
	if body.RelevanceThreshold != nil {
		opts.RelevanceThreshold = *body.RelevanceThreshold
	}
	if body.MaxEvidence != nil {
		opts.MaxEvidence = *body.MaxEvidence
	}
	if body.EnableRerank != nil {
		opts.EnableRerank = *body.EnableRerank
	}
	if body.EnableOptimization != nil {
		opts.EnableOptimization = *body.EnableOptimization
	}
	if body.EnableExpansion != nil {
		opts.EnableExpansion = *body.EnableExpansion
	}
	return opts
}

func (rt *Router) recordQueryMetrics(result *domain.AnswerResult) {
	if rt.httpMetrics == nil {
		return
	}

	duration := time.Duration(result.ProcessingTime * float64(time.Second))
	rt.httpMetrics.RecordQueryObservation("api", "query", result.ChunkCount, duration)
	rt.httpMetrics.RecordTokenUsage("api", "query", rt.cfg.OllamaGenModel, result.TokensUsed)

	diag := retrievalDiagnostics(result)
	if diag == nil {
		return
	}
	rt.httpMetrics.RecordDegradations("api", diag.Degradations)
	for _, failure := range diag.FailedPairs {
		rt.httpMetrics.RecordFailedPair("api", failure.Retriever)
	}
	if diag.RerankApplied {
		rt.httpMetrics.RecordRerankApplied("api")
	}
}

// Degraded stages never fail the request; the WARN trail is how they stay
// visible outside metrics.
func logDegradations(ctx context.Context, result *domain.AnswerResult) {
	diag := retrievalDiagnostics(result)
	if diag == nil || len(diag.Degradations) == 0 {
		return
	}
	slog.Warn("query_degraded",
		"request_id", requestIDFromContext(ctx),
		"query_id", result.QueryID,
		"degradations", diag.Degradations,
	)
}

func retrievalDiagnostics(result *domain.AnswerResult) *domain.RetrievalDiagnostics {
	diag, ok := result.Metadata["retrieval"].(*domain.RetrievalDiagnostics)
	if !ok {
		return nil
	}
	return diag
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.documents.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
