package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
	"github.com/kirillkom/corpus-qa/internal/core/prompt"
)

// AnswerUseCase wraps the retrieval pipeline with conversation memory and
// answer generation: it reads recent turns, retrieves evidence, renders
// the prompt, calls the generator, and appends both turns to the log.
type AnswerUseCase struct {
	retrieval *RetrievalUseCase
	generator ports.AnswerGenerator
	memory    ports.ConversationMemory
	templates *prompt.Registry
	limits    domain.PipelineLimits
}

func NewAnswerUseCase(
	retrieval *RetrievalUseCase,
	generator ports.AnswerGenerator,
	memory ports.ConversationMemory,
	templates *prompt.Registry,
	limits domain.PipelineLimits,
) *AnswerUseCase {
	if limits.Timeout <= 0 {
		limits.Timeout = 60 * time.Second
	}
	if limits.HistoryTurns <= 0 {
		limits.HistoryTurns = 3
	}
	if limits.MaxTokens <= 0 {
		limits.MaxTokens = 4000
	}

	return &AnswerUseCase{
		retrieval: retrieval,
		generator: generator,
		memory:    memory,
		templates: templates,
		limits:    limits,
	}
}

// Process answers one question end to end.
func (uc *AnswerUseCase) Process(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error) {
	started := time.Now()

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process query", fmt.Errorf("question is required"))
	}
	req.Options = uc.normalizeOptions(req.Options)

	ctx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	history, memoryDegraded := uc.loadHistory(ctx, req.ConversationID)

	evidence, diag, err := uc.retrieval.Retrieve(ctx, req, history)
	if err != nil {
		if isPipelineTimeout(err) && !domain.IsKind(err, domain.ErrTimeout) {
			return nil, domain.WrapError(domain.ErrTimeout, "process query", err)
		}
		return nil, err
	}
	if memoryDegraded {
		diag.Degradations = append(diag.Degradations, degradeMemoryRead)
	}

	template, known := uc.templates.Resolve(req.Options.TemplateName)
	if !known {
		diag.Degradations = append(diag.Degradations, "unknown_template")
	}
	promptText := uc.templates.Render(template, diag.ResolvedQuery, evidence, history)

	generated, err := uc.generator.Generate(ctx, promptText, domain.GenerationOptions{MaxTokens: req.Options.MaxTokens})
	if err != nil {
		if isPipelineTimeout(err) {
			return nil, domain.WrapError(domain.ErrTimeout, "generate answer", err)
		}
		return nil, domain.WrapError(domain.ErrUnavailable, "generate answer", err)
	}
	answer := strings.TrimSpace(generated.Text)
	if answer == "" {
		answer = "No answer could be produced for this question. Please try rephrasing it."
	}

	if req.ConversationID != "" && uc.memory != nil {
		if err := uc.appendTurns(ctx, req.ConversationID, req.Question, answer); err != nil {
			// The answer already exists; a failed log write must not
			// discard it.
			diag.Degradations = append(diag.Degradations, degradeMemoryWrite)
		}
	}

	return &domain.AnswerResult{
		QueryID:        uuid.NewString(),
		ConversationID: req.ConversationID,
		Question:       diag.ResolvedQuery,
		Answer:         answer,
		ProcessingTime: time.Since(started).Seconds(),
		TokensUsed:     generated.TokensUsed,
		RelevanceScore: evidence.TopScore(),
		ChunkCount:     len(evidence),
		Metadata: map[string]interface{}{
			"retrieval": diag,
			"template":  template.Name,
			"features": map[string]bool{
				"optimization": req.Options.EnableOptimization,
				"expansion":    req.Options.EnableExpansion,
				"rerank":       req.Options.EnableRerank,
			},
		},
	}, nil
}

// Retrieve runs the pipeline without generation and without writing to
// conversation memory.
func (uc *AnswerUseCase) Retrieve(ctx context.Context, req domain.QueryRequest) (domain.EvidenceSet, *domain.RetrievalDiagnostics, error) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "retrieve evidence", fmt.Errorf("question is required"))
	}
	req.Options = uc.normalizeOptions(req.Options)

	ctx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	history, memoryDegraded := uc.loadHistory(ctx, req.ConversationID)
	evidence, diag, err := uc.retrieval.Retrieve(ctx, req, history)
	if err != nil {
		return nil, diag, err
	}
	if memoryDegraded {
		diag.Degradations = append(diag.Degradations, degradeMemoryRead)
	}
	return evidence, diag, nil
}

func (uc *AnswerUseCase) normalizeOptions(opts domain.QueryOptions) domain.QueryOptions {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = uc.limits.MaxTokens
	}
	if opts.MaxEvidence <= 0 {
		opts.MaxEvidence = uc.limits.MaxEvidence
	}
	if opts.TemplateName == "" {
		opts.TemplateName = prompt.TemplateBasic
	}
	return opts
}

// loadHistory reads recent turns best-effort: the pipeline can answer
// without them, so a memory read failure only degrades.
func (uc *AnswerUseCase) loadHistory(ctx context.Context, conversationID string) ([]domain.ConversationTurn, bool) {
	if conversationID == "" || uc.memory == nil {
		return nil, false
	}
	history, err := uc.memory.Recent(ctx, conversationID, uc.limits.HistoryTurns*2)
	if err != nil {
		return nil, true
	}
	return history, false
}

func (uc *AnswerUseCase) appendTurns(ctx context.Context, conversationID, question, answer string) error {
	now := time.Now().UTC()
	if err := uc.memory.Append(ctx, domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Text:           question,
		CreatedAt:      now,
	}); err != nil {
		return fmt.Errorf("append user turn: %w", err)
	}
	if err := uc.memory.Append(ctx, domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Text:           answer,
		CreatedAt:      now,
	}); err != nil {
		return fmt.Errorf("append assistant turn: %w", err)
	}
	return nil
}

func isPipelineTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
