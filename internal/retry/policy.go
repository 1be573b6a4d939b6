// Package retry implements the financial-transaction retry policy §4.8
// describes: exponential backoff with jitter, a fixed set of retryable
// upstream response codes, and STAN-preserving re-sends so upstream
// dedup stays anchored to the original request.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/paynet/fep/internal/ferr"
	"github.com/paynet/fep/internal/txn"
)

// Policy mirrors the teacher's RetryConfig shape, generalized with a
// jitter factor and a response-code-aware IsRetryable check.
type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterFactor      float64
}

// FinancialTransactionPolicy is the default policy for withdrawals,
// transfers, and other money-moving requests: at most 2 retries, per
// §8 scenario 3's worked example (10000ms overall deadline).
func FinancialTransactionPolicy() Policy {
	return Policy{
		MaxRetries:        2,
		InitialDelay:      2 * time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.2,
	}
}

// delay computes the wait before attempt n (1-indexed), per
// min(maxDelay, initialDelay * multiplier^(n-1)) * (1 +/- jitterFactor*rand).
func (p Policy) delay(attempt int) time.Duration {
	raw := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		raw *= p.BackoffMultiplier
	}
	if capped := float64(p.MaxDelay); raw > capped {
		raw = capped
	}
	if p.JitterFactor > 0 {
		jitter := (rand.Float64()*2 - 1) * p.JitterFactor
		raw *= 1 + jitter
	}
	if raw < 0 {
		raw = 0
	}
	return time.Duration(raw)
}

// IsRetryableCode reports whether an upstream response code is
// transient per §4.8: issuer-inoperative (91), system-malfunction (96),
// response-late (68), or no-response ("ND").
func IsRetryableCode(code string) bool {
	return txn.RetryableResponseCodes[code]
}

// IsRetryableError reports whether an error kind the pipeline raised is
// transient (only KindTimeout, per ferr.Kind.Retryable).
func IsRetryableError(err error) bool {
	fe, ok := ferr.As(err)
	if !ok {
		return false
	}
	return fe.Kind.Retryable()
}

// ErrRetriesExhausted is returned by Do only when no attempt ran
// (MaxRetries below zero); when the final attempt fails, Do returns
// that attempt's error.
var ErrRetriesExhausted = errors.New("retry: max attempts exhausted")

// Do runs attempt up to MaxRetries+1 times, re-invoking attempt with
// the same input every time so the caller can preserve the original
// STAN across retries. shouldRetry inspects the returned error to
// decide whether another attempt is warranted; if nil, every error is
// considered retryable.
func Do(ctx context.Context, policy Policy, shouldRetry func(error) bool, attempt func(ctx context.Context, n int) error) error {
	var lastErr error
	for n := 1; n <= policy.MaxRetries+1; n++ {
		lastErr = attempt(ctx, n)
		if lastErr == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if n > policy.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.delay(n)):
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrRetriesExhausted
}
