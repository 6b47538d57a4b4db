// internal/ai/anthropic.go
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicCompleter implements the Completer interface using the Anthropic API.
type AnthropicCompleter struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicCompleter creates a new AnthropicCompleter.
// If model is empty, it defaults to claude-sonnet-4-20250514.
func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	if model == "" {
		model = defaultAnthropicModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicCompleter{
		client: &client,
		model:  model,
	}
}

// Complete sends a prompt to Anthropic and returns the text completion.
func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (Completion, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == 429 {
				return Completion{}, fmt.Errorf("%w: %s", ErrRateLimit, err)
			}
			if apiErr.StatusCode == 408 || apiErr.StatusCode == 504 {
				return Completion{}, fmt.Errorf("%w: %s", ErrTimeout, err)
			}
		}
		if ctx.Err() != nil {
			return Completion{}, fmt.Errorf("%w: %s", ErrTimeout, ctx.Err())
		}
		return Completion{}, fmt.Errorf("anthropic completion: %w", err)
	}

	tokens := int(msg.Usage.InputTokens + msg.Usage.OutputTokens)
	for _, block := range msg.Content {
		if block.Type == "text" {
			return Completion{Text: block.Text, TokensUsed: tokens}, nil
		}
	}

	return Completion{}, fmt.Errorf("%w: no text content in response", ErrInvalidResponse)
}
