package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/switchboard/pkg/config"
)

// NewModel builds a langchaingo model for a configured provider. model overrides the
// provider's default model when non-empty.
func NewModel(ctx context.Context, provider string, p config.ProviderConfig, model string) (llms.Model, error) {
	if model == "" {
		model = p.Model
	}
	switch provider {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		} else if provider == "openrouter" {
			opts = append(opts, openai.WithBaseURL("https://openrouter.ai/api/v1"))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(p.APIKey),
			anthropic.WithModel(model),
		}
		if p.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.BaseURL))
		}
		return anthropic.New(opts...)
	case "googleai":
		return googleai.New(ctx,
			googleai.WithAPIKey(p.APIKey),
			googleai.WithDefaultModel(model),
		)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

// callOptions turns worker settings into langchaingo call options.
func callOptions(w config.WorkerConfig) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(w.Temperature)}
	if w.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(w.MaxTokens))
	}
	return opts
}

// generate sends messages and returns the first choice.
func generate(ctx context.Context, model llms.Model, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentChoice, error) {
	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return resp.Choices[0], nil
}

// conversation builds a system prompt, alternating example turns and the final input.
func conversation(system string, examples [][2]string, input string) []llms.MessageContent {
	var messages []llms.MessageContent
	if strings.TrimSpace(system) != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, ex := range examples {
		messages = append(messages,
			llms.TextParts(llms.ChatMessageTypeHuman, ex[0]),
			llms.TextParts(llms.ChatMessageTypeAI, ex[1]),
		)
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, input))
}
