// Package prompt holds the answer-generation templates and renders the
// evidence block handed to the model.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

//go:embed templates.yaml
var templatesYAML []byte

const (
	TemplateBasic          = "basic_rag"
	TemplateConversational = "conversational_rag"

	// Rendered in place of the context block when filtering removed
	// every chunk, so the model answers honestly instead of citing
	// evidence that does not exist.
	emptyContextLine = "No relevant information was found in the knowledge base for this question."
)

type Template struct {
	Name   string `yaml:"name"`
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// Registry resolves template names to templates. Unknown names fall back
// to basic_rag.
type Registry struct {
	templates map[string]Template
}

func NewRegistry() (*Registry, error) {
	var file templateFile
	if err := yaml.Unmarshal(templatesYAML, &file); err != nil {
		return nil, fmt.Errorf("parse embedded templates: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("embedded templates are empty")
	}

	templates := make(map[string]Template, len(file.Templates))
	for _, tpl := range file.Templates {
		name := strings.TrimSpace(tpl.Name)
		if name == "" {
			return nil, fmt.Errorf("template without a name")
		}
		templates[name] = tpl
	}
	if _, ok := templates[TemplateBasic]; !ok {
		return nil, fmt.Errorf("template %q is required", TemplateBasic)
	}

	return &Registry{templates: templates}, nil
}

// Resolve returns the named template, falling back to basic_rag for
// unknown or empty names. The second return reports whether the name
// resolved exactly.
func (r *Registry) Resolve(name string) (Template, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.templates[TemplateBasic], true
	}
	if tpl, ok := r.templates[name]; ok {
		return tpl, true
	}
	return r.templates[TemplateBasic], false
}

// Render assembles the final generation prompt for one request.
func (r *Registry) Render(tpl Template, question string, evidence domain.EvidenceSet, history []domain.ConversationTurn) string {
	body := tpl.User
	body = strings.ReplaceAll(body, "{question}", strings.TrimSpace(question))
	body = strings.ReplaceAll(body, "{context}", FormatContext(evidence))
	body = strings.ReplaceAll(body, "{history}", formatHistory(history))

	system := strings.TrimSpace(tpl.System)
	if system == "" {
		return body
	}
	return system + "\n\n" + body
}

// FormatContext renders the evidence block: one numbered entry per chunk
// with its source and relevance score.
func FormatContext(evidence domain.EvidenceSet) string {
	if len(evidence) == 0 {
		return emptyContextLine
	}

	var b strings.Builder
	for idx, chunk := range evidence {
		source := chunk.Filename
		if source == "" {
			source = chunk.DocumentID
		}
		b.WriteString(fmt.Sprintf("[%d] source=%s score=%.3f\n%s\n\n", idx+1, source, chunk.Score, chunk.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return "(no previous turns)"
	}

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
		return "(no previous turns)"
	}
	return strings.Join(lines, "\n")
}
