package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
)

const minResolvedQueryRunes = 10

// QueryOptimizer rewrites a question into a self-contained query by
// resolving pronouns and omitted referents from recent conversation turns.
// Resolution is a best-effort enhancement: with no history or with the
// toggle off it is a pure passthrough, and any rewrite failure falls back
// to the original text.
type QueryOptimizer struct {
	generator ports.AnswerGenerator
	timeout   time.Duration
}

func NewQueryOptimizer(generator ports.AnswerGenerator, timeout time.Duration) *QueryOptimizer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QueryOptimizer{generator: generator, timeout: timeout}
}

// Resolve returns the resolved query text and whether the rewrite degraded
// to the original. The returned text is never empty for a non-empty input.
func (o *QueryOptimizer) Resolve(ctx context.Context, question string, history []domain.ConversationTurn, enabled bool) (string, bool) {
	if !enabled || len(history) == 0 || o.generator == nil {
		return question, false
	}

	rewriteCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := o.generator.Generate(rewriteCtx, buildResolvePrompt(question, history), domain.GenerationOptions{
		Temperature: 0.1,
	})
	if err != nil {
		return question, true
	}

	resolved := cleanRewrite(result.Text)
	if utf8.RuneCountInString(resolved) < minResolvedQueryRunes {
		return question, true
	}
	return resolved, false
}

func buildResolvePrompt(question string, history []domain.ConversationTurn) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		prefix := "Q"
		if turn.Role == domain.RoleAssistant {
			prefix = "A"
		}
		lines = append(lines, prefix+": "+text)
	}
	if len(lines) == 0 {
		lines = append(lines, "(empty)")
	}

	return fmt.Sprintf(`Rewrite the user question into a single self-contained search query.
Replace pronouns and omitted references with what they point to in the conversation.
Keep the language of the question. Return only the rewritten question, no explanations.

Conversation:
%s

Question:
%s`, strings.Join(lines, "\n"), question)
}

// cleanRewrite strips wrapping the model tends to add around the rewritten
// question.
func cleanRewrite(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	return strings.Trim(text, "\"'`")
}
