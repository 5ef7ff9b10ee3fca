// Package bootstrap wires adapters to use cases. Both binaries build the
// same App; the api consumes the query/ingest side, the worker the
// processing side.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/corpus-qa/internal/config"
	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
	"github.com/kirillkom/corpus-qa/internal/core/prompt"
	"github.com/kirillkom/corpus-qa/internal/core/usecase"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/extractor"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/corpus-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/rerank/bge"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	AnswerUC  *usecase.AnswerUseCase
	IngestUC  *usecase.IngestDocumentUseCase
	ProcessUC *usecase.ProcessDocumentUseCase

	Queue *natsqueue.Queue

	// HealthProbes feed the healthz endpoint; keys are the component
	// names it reports.
	HealthProbes map[string]func(context.Context) error

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	tasks := postgres.NewTaskRepository(db)
	memory := postgres.NewConversationStore(db)
	lexicalIndex := postgres.NewLexicalIndex(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorClient := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	semantic := qdrant.NewSemanticRetriever(embedder, vectorClient)

	// Ingestion always writes both indexes; the backend choice only
	// selects which one answers lexical queries.
	var lexicalRetriever ports.Retriever = lexicalIndex
	if cfg.LexicalBackend == "qdrant" {
		lexicalRetriever = qdrant.NewSparseRetriever(vectorClient)
	}

	var scorer ports.RelevanceScorer
	if cfg.RerankerURL != "" {
		scorer = bge.New(cfg.RerankerURL, cfg.RerankerModel, executor)
	}

	limits := pipelineLimits(cfg)

	optimizer := usecase.NewQueryOptimizer(generator, limits.RewriteTimeout)
	expander := usecase.NewQueryExpander(generator, limits.ExpansionCount, limits.RewriteTimeout)
	parallel := usecase.NewParallelRetriever([]ports.Retriever{semantic, lexicalRetriever}, limits.FanOutLimit)
	merger := usecase.NewRRFMerger(limits.RRFK, limits.RetrieverWeights)
	reranker := usecase.NewReranker(scorer, limits.RerankTopN, limits.RerankTimeout)
	retrieval := usecase.NewRetrievalUseCase(optimizer, expander, parallel, merger, reranker, limits)

	templates, err := prompt.NewRegistry()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	answerUC := usecase.NewAnswerUseCase(retrieval, generator, memory, templates, limits)

	ingestUC := usecase.NewIngestDocumentUseCase(documents, tasks, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(
		documents,
		tasks,
		extractor.NewSelector(storage),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		vectorClient,
		lexicalIndex,
	)

	probes := map[string]func(context.Context) error{
		"vector_index":  vectorClient.Ping,
		"lexical_index": db.PingContext,
		"generator":     ollamaClient.Ping,
		"queue":         queue.Ping,
	}

	return &App{
		Config:       cfg,
		AnswerUC:     answerUC,
		IngestUC:     ingestUC,
		ProcessUC:    processUC,
		Queue:        queue,
		HealthProbes: probes,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func pipelineLimits(cfg config.Config) domain.PipelineLimits {
	return domain.PipelineLimits{
		Timeout:            time.Duration(cfg.PipelineTimeoutSeconds) * time.Second,
		RewriteTimeout:     time.Duration(cfg.RewriteTimeoutSeconds) * time.Second,
		RerankTimeout:      time.Duration(cfg.RerankTimeoutSeconds) * time.Second,
		HistoryTurns:       cfg.HistoryTurns,
		ExpansionCount:     cfg.ExpansionCount,
		CandidatesPerQuery: cfg.CandidatesPerQuery,
		FanOutLimit:        cfg.FanOutLimit,
		RRFK:               cfg.FusionRRFK,
		RetrieverWeights: map[string]float64{
			domain.RetrieverEmbedding: cfg.WeightEmbedding,
			domain.RetrieverLexical:   cfg.WeightLexical,
		},
		RerankTopN:         cfg.RerankTopN,
		MaxEvidence:        cfg.MaxEvidence,
		RelevanceThreshold: cfg.RelevanceThreshold,
		MaxTokens:          cfg.MaxTokens,
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
