package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
)

const (
	minVariantRunes      = 5
	maxConcatQueryRunes  = 512
	expansionTemperature = 0.3
)

// QueryExpander widens recall by generating paraphrase variants of the
// resolved query. Element 0 of the result is always the resolved query
// itself; on any upstream failure the result degrades to that single
// element.
type QueryExpander struct {
	generator ports.AnswerGenerator
	count     int
	timeout   time.Duration
}

func NewQueryExpander(generator ports.AnswerGenerator, count int, timeout time.Duration) *QueryExpander {
	if count <= 0 {
		count = 3
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QueryExpander{generator: generator, count: count, timeout: timeout}
}

// Expand returns the ordered sub-query sequence and whether expansion
// degraded to the original-only form.
func (e *QueryExpander) Expand(ctx context.Context, resolved string, enabled bool) ([]domain.SubQuery, bool) {
	out := []domain.SubQuery{{Text: resolved, Origin: domain.SubQueryOriginal}}
	if !enabled || e.generator == nil {
		return out, false
	}

	expandCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.generator.GenerateJSON(expandCtx, buildExpandPrompt(resolved, e.count), domain.GenerationOptions{
		Temperature: expansionTemperature,
	})
	if err != nil {
		return out, true
	}

	variants, err := parseVariants(raw)
	if err != nil {
		return out, true
	}

	seen := map[string]struct{}{normalizeQueryText(resolved): {}}
	accepted := make([]string, 0, e.count)
	for _, variant := range variants {
		if len(accepted) >= e.count {
			break
		}
		variant = strings.TrimSpace(variant)
		if !isValidVariant(variant, seen) {
			continue
		}
		seen[normalizeQueryText(variant)] = struct{}{}
		accepted = append(accepted, variant)
		out = append(out, domain.SubQuery{Text: variant, Origin: domain.SubQueryExpanded})
	}

	if concat := buildConcatQuery(resolved, accepted); concat != "" {
		out = append(out, domain.SubQuery{Text: concat, Origin: domain.SubQueryExpanded})
	}
	return out, false
}

func buildExpandPrompt(resolved string, count int) string {
	return fmt.Sprintf(`Generate %d alternative phrasings of the search query below.
Each alternative must keep the original meaning, use different wording, and stay in the query language.
Return a strict JSON array of strings, nothing else.

Query:
%s`, count, resolved)
}

func parseVariants(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty expansion response")
	}

	var variants []string
	if err := json.Unmarshal([]byte(raw), &variants); err == nil {
		return variants, nil
	}

	// Some models wrap the array in an object.
	var wrapped struct {
		Variants []string `json:"variants"`
		Queries  []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal expansion json: %w", err)
	}
	if len(wrapped.Variants) > 0 {
		return wrapped.Variants, nil
	}
	if len(wrapped.Queries) > 0 {
		return wrapped.Queries, nil
	}
	return nil, fmt.Errorf("expansion json carries no variants")
}

func isValidVariant(variant string, seen map[string]struct{}) bool {
	if variant == "" || utf8.RuneCountInString(variant) < minVariantRunes {
		return false
	}
	if _, dup := seen[normalizeQueryText(variant)]; dup {
		return false
	}
	return true
}

// buildConcatQuery appends the terms the variants introduced on top of the
// resolved query, forming one broad catch-all sub-query.
func buildConcatQuery(resolved string, variants []string) string {
	if len(variants) == 0 {
		return ""
	}

	known := make(map[string]struct{})
	for _, term := range splitQueryTerms(resolved) {
		known[term] = struct{}{}
	}

	fresh := make([]string, 0, 16)
	for _, variant := range variants {
		for _, term := range splitQueryTerms(variant) {
			if _, ok := known[term]; ok {
				continue
			}
			known[term] = struct{}{}
			fresh = append(fresh, term)
		}
	}
	if len(fresh) == 0 {
		return ""
	}

	concat := resolved + " " + strings.Join(fresh, " ")
	if utf8.RuneCountInString(concat) > maxConcatQueryRunes {
		runes := []rune(concat)
		concat = strings.TrimSpace(string(runes[:maxConcatQueryRunes]))
	}
	return concat
}

func normalizeQueryText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?？。")
	return strings.Join(strings.Fields(s), " ")
}

func splitQueryTerms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
