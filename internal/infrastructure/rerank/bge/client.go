package bge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/corpus-qa/internal/infrastructure/resilience"
)

// Client scores (query, passage) pairs against a cross-encoder serving
// endpoint. It speaks the common /rerank shape: bge-reranker behind TEI,
// Infinity and compatible gateways all answer it.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, model string, exec *resilience.Executor) *Client {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
}

type rerankEntry struct {
	Index          int      `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

type rerankResponse struct {
	Results []rerankEntry `json:"results"`
	Data    []rerankEntry `json:"data"`
}

// Score returns one score per text, aligned by index and clamped to [0,1].
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": texts,
	}

	response, err := resilience.Do(ctx, c.exec, "rerank_score", func(ctx context.Context) (rerankResponse, error) {
		var out rerankResponse
		if err := c.postJSON(ctx, "/rerank", request, &out); err != nil {
			return rerankResponse{}, err
		}
		return out, nil
	}, classifyRerankError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("score passages", err)
	}

	entries := response.Results
	if len(entries) == 0 {
		entries = response.Data
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("rerank response carries no scores")
	}

	scores := make([]float64, len(texts))
	for _, entry := range entries {
		if entry.Index < 0 || entry.Index >= len(texts) {
			return nil, fmt.Errorf("rerank score index %d out of range [0,%d)", entry.Index, len(texts))
		}
		scores[entry.Index] = clamp01(entryScore(entry))
	}
	return scores, nil
}

func entryScore(entry rerankEntry) float64 {
	if entry.RelevanceScore != nil {
		return *entry.RelevanceScore
	}
	if entry.Score != nil {
		return *entry.Score
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reranker request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
