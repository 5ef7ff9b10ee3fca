package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
}

// New builds the shared Ollama client. A nil executor falls back to the
// default retry/breaker policy.
func New(baseURL, genModel, embedModel string, exec *resilience.Executor) *Client {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		exec:       exec,
	}
}

func (c *Client) GenModel() string { return c.genModel }

// Ping lists local models as a cheap liveness check. Used by the healthz
// probe; bypasses the resilience executor so a tripped breaker does not
// mask a recovered backend.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama ping status: %s", resp.Status)
	}
	return nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	type embedResponse struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	response, err := resilience.Do(ctx, e.client.exec, "ollama_embed", func(ctx context.Context) (embedResponse, error) {
		var out embedResponse
		if err := e.client.postJSON(ctx, "/api/embed", request, &out, "embed"); err != nil {
			return embedResponse{}, err
		}
		return out, nil
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed texts", err)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (domain.GenerationResult, error) {
	response, err := g.client.generate(ctx, prompt, opts, false)
	if err != nil {
		return domain.GenerationResult{}, wrapTemporaryIfNeeded("generate text", err)
	}
	return domain.GenerationResult{
		Text:       strings.TrimSpace(response.Response),
		TokensUsed: response.PromptEvalCount + response.EvalCount,
	}, nil
}

func (g *Generator) GenerateJSON(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	response, err := g.client.generate(ctx, prompt, opts, true)
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate json", err)
	}
	return strings.TrimSpace(response.Response), nil
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) generate(ctx context.Context, prompt string, opts domain.GenerationOptions, jsonMode bool) (generateResponse, error) {
	request := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	if jsonMode {
		request["format"] = "json"
	}
	if options := buildModelOptions(opts); len(options) > 0 {
		request["options"] = options
	}

	return resilience.Do(ctx, c.exec, "ollama_generate", func(ctx context.Context) (generateResponse, error) {
		var out generateResponse
		if err := c.postJSON(ctx, "/api/generate", request, &out, "generate"); err != nil {
			return generateResponse{}, err
		}
		return out, nil
	}, classifyOllamaError)
}

func buildModelOptions(opts domain.GenerationOptions) map[string]any {
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	return options
}
