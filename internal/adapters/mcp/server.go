// Package mcpadapter exposes the query pipeline as MCP tools over stdio,
// so agent runtimes can use the corpus without going through HTTP.
package mcpadapter

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/corpus-qa/internal/config"
	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

const serverName = "corpus-qa"

// serverVersion is overridden at build time via -ldflags.
var serverVersion = "dev"

type queryService interface {
	Process(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error)
	Retrieve(ctx context.Context, req domain.QueryRequest) (domain.EvidenceSet, *domain.RetrievalDiagnostics, error)
}

type Server struct {
	mcpServer *server.MCPServer
	query     queryService
	cfg       config.Config
}

func NewServer(cfg config.Config, query queryService) *Server {
	s := &Server{query: query, cfg: cfg}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	mcpServer.AddTool(queryTool(), s.handleQuery)
	mcpServer.AddTool(searchTool(), s.handleSearch)
	s.mcpServer = mcpServer

	return s
}

// ServeStdio blocks, speaking MCP over stdin/stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("corpus_query",
		mcp.WithDescription("Answer a question against the indexed document corpus. Runs the full pipeline: query optimization, expansion, hybrid retrieval, rerank and answer generation."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation id. Ties this question to previous turns so pronouns resolve against them."),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Upper bound on generated tokens."),
		),
		mcp.WithNumber("relevance_threshold",
			mcp.Description("Score in [0,1] below which evidence chunks are dropped. 0 keeps everything."),
		),
		mcp.WithNumber("max_evidence_count",
			mcp.Description("Maximum evidence chunks handed to generation."),
		),
		mcp.WithBoolean("enable_rerank",
			mcp.Description("Rescore the head of the fused list with the cross-encoder."),
		),
		mcp.WithBoolean("enable_optimization",
			mcp.Description("Resolve pronouns and references against conversation history."),
		),
		mcp.WithBoolean("enable_expansion",
			mcp.Description("Generate paraphrase sub-queries before retrieval."),
		),
		mcp.WithString("template_name",
			mcp.Description("Prompt template name. Unknown names fall back to basic_rag."),
		),
	)
}

func searchTool() mcp.Tool {
	return mcp.NewTool("corpus_search",
		mcp.WithDescription("Retrieve evidence chunks for a question without generating an answer. Returns the filtered, reranked evidence set with retrieval diagnostics."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to retrieve evidence for."),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation id used for reference resolution."),
		),
		mcp.WithNumber("relevance_threshold",
			mcp.Description("Score in [0,1] below which evidence chunks are dropped. 0 keeps everything."),
		),
		mcp.WithNumber("max_evidence_count",
			mcp.Description("Maximum evidence chunks returned."),
		),
		mcp.WithBoolean("enable_rerank",
			mcp.Description("Rescore the head of the fused list with the cross-encoder."),
		),
		mcp.WithBoolean("enable_optimization",
			mcp.Description("Resolve pronouns and references against conversation history."),
		),
		mcp.WithBoolean("enable_expansion",
			mcp.Description("Generate paraphrase sub-queries before retrieval."),
		),
	)
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.queryRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.query.Process(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return mcp.NewToolResultStructured(result, result.Answer), nil
}

type searchResult struct {
	Evidence    domain.EvidenceSet           `json:"evidence"`
	Diagnostics *domain.RetrievalDiagnostics `json:"diagnostics,omitempty"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.queryRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	evidence, diag, err := s.query.Retrieve(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	payload := searchResult{Evidence: evidence, Diagnostics: diag}
	return mcp.NewToolResultStructured(payload, fmt.Sprintf("%d evidence chunks retrieved", len(evidence))), nil
}

// queryRequest folds configured defaults into the tool arguments. Absent
// arguments take the default; an explicit zero threshold means "keep
// everything", same as the HTTP surface.
func (s *Server) queryRequest(request mcp.CallToolRequest) (domain.QueryRequest, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return domain.QueryRequest{}, fmt.Errorf("question is required: %w", err)
	}

	return domain.QueryRequest{
		Question:       question,
		ConversationID: request.GetString("session_id", ""),
		Options: domain.QueryOptions{
			MaxTokens:          request.GetInt("max_tokens", s.cfg.MaxTokens),
			RelevanceThreshold: request.GetFloat("relevance_threshold", s.cfg.RelevanceThreshold),
			MaxEvidence:        request.GetInt("max_evidence_count", s.cfg.MaxEvidence),
			EnableRerank:       request.GetBool("enable_rerank", true),
			EnableOptimization: request.GetBool("enable_optimization", true),
			EnableExpansion:    request.GetBool("enable_expansion", true),
			TemplateName:       request.GetString("template_name", ""),
		},
	}, nil
}
