package domain

// GenerationOptions tunes one generation call. Zero values mean
// "model default".
type GenerationOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// GenerationResult is the model output plus its reported token usage.
type GenerationResult struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}
