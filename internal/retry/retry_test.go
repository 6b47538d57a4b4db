// internal/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Base: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestPolicy_Do_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	wantErr := errors.New("still broken")
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_StopsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("bad request")
	p := fastPolicy(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fastPolicy(3).Do(ctx, func() error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}
