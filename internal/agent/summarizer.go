package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/observability"
)

const (
	// MinSummarizeLength is the length above which outputs are summarised.
	MinSummarizeLength = 800
	// TargetSummaryLength is the size summaries aim for.
	TargetSummaryLength = 500
)

// Summarizer shortens long worker output before it is handed to dependent steps.
// With a nil Model, or when the model fails, it truncates at a sentence boundary.
type Summarizer struct {
	Model  llms.Model
	Logger *slog.Logger
}

// Summarize returns text unchanged when it is short enough. focus names the kind of
// content ("web_search", "code_output") so the prompt can say what to preserve.
func (s *Summarizer) Summarize(ctx context.Context, text, focus string) string {
	if len(text) <= MinSummarizeLength {
		return text
	}
	if s == nil || s.Model == nil {
		return TruncateSentences(text, TargetSummaryLength)
	}

	var hint string
	switch focus {
	case "web_search":
		hint = "Preserve all URLs, titles, key facts, and numbers. Focus on the most relevant search results."
	case "code_output":
		hint = "Preserve key output values, error messages, and important results."
	default:
		hint = "Preserve the most important information and key details."
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(summarizerPrompt, hint, TargetSummaryLength)),
		llms.TextParts(llms.ChatMessageTypeHuman, "Summarize this:\n\n"+text),
	}
	choice, err := generate(ctx, s.Model, messages, llms.WithTemperature(0.3), llms.WithMaxTokens(400))
	if err == nil && strings.TrimSpace(choice.Content) != "" {
		return strings.TrimSpace(choice.Content)
	}
	if err == nil {
		err = fmt.Errorf("empty summary")
	}
	s.logger(ctx).Warn("summarization failed, truncating", "error", err, "length", len(text))
	return TruncateSentences(text, TargetSummaryLength)
}

// logger falls back to the run's logger from ctx.
func (s *Summarizer) logger(ctx context.Context) *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return observability.LoggerFrom(ctx)
}

// TruncateSentences cuts text to at most about max characters, preferring sentence
// boundaries, and marks the cut with "...".
func TruncateSentences(text string, max int) string {
	if len(text) <= max {
		return text
	}

	var b strings.Builder
	for _, sentence := range splitSentences(text) {
		if b.Len() > 0 && b.Len()+len(sentence)+1 > max {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	if b.Len() > 0 && b.Len() <= max {
		return strings.TrimRight(b.String(), ".") + "..."
	}

	// One long sentence: cut at the last space if that keeps most of it.
	cut := strings.ToValidUTF8(text[:max], "")
	if i := strings.LastIndexByte(cut, ' '); i > max*8/10 {
		cut = cut[:i]
	}
	return cut + "..."
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		end := -1
		switch {
		case (text[i] == '.' || text[i] == '!' || text[i] == '?') && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n'):
			end = i + 1
		case text[i] == '\n' && i+1 < len(text) && text[i+1] == '\n':
			end = i
		}
		if end < 0 {
			continue
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
