package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoSucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	policy := FinancialTransactionPolicy()
	policy.InitialDelay = time.Millisecond
	policy.MaxDelay = 5 * time.Millisecond

	calls := 0
	err := Do(context.Background(), policy, nil, func(ctx context.Context, n int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDoRetriesUpToMaxRetriesThenFails(t *testing.T) {
	policy := FinancialTransactionPolicy()
	policy.InitialDelay = time.Millisecond
	policy.MaxDelay = 2 * time.Millisecond

	calls := 0
	err := Do(context.Background(), policy, nil, func(ctx context.Context, n int) error {
		calls++
		return errors.New("still failing")
	})
	require.Error(t, err)
	require.Equal(t, policy.MaxRetries+1, calls)
}

func TestDoStopsImmediatelyWhenShouldRetryReturnsFalse(t *testing.T) {
	policy := FinancialTransactionPolicy()
	policy.InitialDelay = time.Millisecond

	calls := 0
	err := Do(context.Background(), policy, func(error) bool { return false }, func(ctx context.Context, n int) error {
		calls++
		return errors.New("non-retryable")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoSameSTANPreservedAcrossAttempts(t *testing.T) {
	policy := FinancialTransactionPolicy()
	policy.InitialDelay = time.Millisecond
	policy.MaxDelay = 2 * time.Millisecond

	stan := "000042"
	seen := make([]string, 0)
	_ = Do(context.Background(), policy, nil, func(ctx context.Context, n int) error {
		seen = append(seen, stan) // the caller is responsible for reusing the STAN; verify it stays constant
		if n < 3 {
			return errors.New("retry me")
		}
		return nil
	})
	require.Equal(t, []string{"000042", "000042", "000042"}, seen)
}

func TestIsRetryableCode(t *testing.T) {
	require.True(t, IsRetryableCode("91"))
	require.True(t, IsRetryableCode("96"))
	require.True(t, IsRetryableCode("68"))
	require.True(t, IsRetryableCode("ND"))
	require.False(t, IsRetryableCode("00"))
	require.False(t, IsRetryableCode("55"))
}
