// internal/ai/generator.go
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"devdigest/internal/model"
)

// Generator turns a window of stored commits into a structured blog-post
// draft via a language model.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

func NewGenerator(completer Completer, logger *slog.Logger) *Generator {
	return &Generator{completer: completer, logger: logger}
}

// summaryPayload is the JSON shape the model is asked to produce.
type summaryPayload struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// Generate asks the model for a development summary of the given commits,
// grouped by repository full name. Malformed model output never fails the
// call; missing fields are defaulted instead.
func (g *Generator) Generate(ctx context.Context, commitsByRepo map[string][]model.Commit, from, to time.Time) (model.Summary, error) {
	prompt := buildSummaryPrompt(commitsByRepo, from, to)

	completion, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return model.Summary{}, fmt.Errorf("generating summary: %w", err)
	}

	summary := parseSummary(completion.Text, from, to)
	summary.TokensUsed = completion.TokensUsed
	return summary, nil
}

// Enhance rewrites draft content according to user instructions and returns
// the new content plus the token cost.
func (g *Generator) Enhance(ctx context.Context, content, instructions string) (string, int, error) {
	var b strings.Builder
	b.WriteString("Rewrite the following development blog post draft according to the instructions.\n")
	b.WriteString("Return only the rewritten post, no preamble.\n\n")
	fmt.Fprintf(&b, "Instructions: %s\n\nDraft:\n%s\n", instructions, content)

	completion, err := g.completer.Complete(ctx, b.String())
	if err != nil {
		return "", 0, fmt.Errorf("enhancing content: %w", err)
	}
	return strings.TrimSpace(completion.Text), completion.TokensUsed, nil
}

func buildSummaryPrompt(commitsByRepo map[string][]model.Commit, from, to time.Time) string {
	repos := make([]string, 0, len(commitsByRepo))
	for name := range commitsByRepo {
		repos = append(repos, name)
	}
	sort.Strings(repos)

	var b strings.Builder
	b.WriteString("You are a developer-relations writer. Summarize the following commit activity ")
	fmt.Fprintf(&b, "between %s and %s as a blog post for a technical audience.\n\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	for _, name := range repos {
		fmt.Fprintf(&b, "Repository %s:\n", name)
		for _, c := range commitsByRepo[name] {
			fmt.Fprintf(&b, "- %s (%s, +%d/-%d, %d files): %s\n",
				shortSHA(c.SHA), c.AuthorName, c.Additions, c.Deletions, c.ChangedFiles,
				firstLine(c.Message))
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with a single JSON object, no code fences, with exactly these keys:\n")
	b.WriteString(`{"title": string, "content": markdown string, "summary": one-paragraph string, "tags": array of lowercase strings}`)
	return b.String()
}

// parseSummary extracts the structured payload from the model output. Models
// sometimes wrap JSON in code fences or prose; tolerate that, and fall back
// to defaulted fields rather than failing the request.
func parseSummary(text string, from, to time.Time) model.Summary {
	defaultTitle := fmt.Sprintf("Development Update: %s – %s",
		from.Format("Jan 2"), to.Format("Jan 2, 2006"))

	var payload summaryPayload
	if raw, ok := extractJSONObject(text); ok {
		_ = json.Unmarshal([]byte(raw), &payload)
	}

	summary := model.Summary{
		Title:   strings.TrimSpace(payload.Title),
		Content: strings.TrimSpace(payload.Content),
		Summary: strings.TrimSpace(payload.Summary),
		Tags:    payload.Tags,
	}
	if summary.Title == "" {
		summary.Title = defaultTitle
	}
	if summary.Content == "" {
		summary.Content = strings.TrimSpace(text)
	}
	if len(summary.Tags) == 0 {
		summary.Tags = []string{"development", "changelog"}
	}
	return summary
}

// extractJSONObject returns the first balanced {...} span in text.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
