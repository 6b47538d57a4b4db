// internal/ai/openai.go
package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAICompleter implements the Completer interface using the OpenAI API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a new OpenAICompleter.
// If model is empty, it defaults to gpt-4o-mini.
func NewOpenAICompleter(apiKey, model string) *OpenAICompleter {
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(apiKey)
	return &OpenAICompleter{
		client: client,
		model:  model,
	}
}

// Complete sends a prompt to OpenAI and returns the text completion.
func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (Completion, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			if apiErr.HTTPStatusCode == 429 {
				return Completion{}, fmt.Errorf("%w: %s", ErrRateLimit, err)
			}
			if apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 504 {
				return Completion{}, fmt.Errorf("%w: %s", ErrTimeout, err)
			}
		}
		if ctx.Err() != nil {
			return Completion{}, fmt.Errorf("%w: %s", ErrTimeout, ctx.Err())
		}
		return Completion{}, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: no choices in response", ErrInvalidResponse)
	}

	return Completion{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
