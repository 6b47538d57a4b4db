// internal/ai/completer.go
package ai

import (
	"context"
	"errors"
)

// Sentinel errors for provider operations.
var (
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrTimeout         = errors.New("request timed out")
	ErrInvalidResponse = errors.New("invalid response from provider")
)

// Completion is one model response plus its token cost.
type Completion struct {
	Text       string
	TokensUsed int
}

// Completer generates text completions from a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}
