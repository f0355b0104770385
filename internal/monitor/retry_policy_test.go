package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_RecoverableScrapeErrorRetries(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy()
	err := &ScrapeError{Handle: "creator", Kind: ScrapeRecoverable, Err: errors.New("rate limited")}
	require.True(t, policy.ShouldRetry(err, 1))
	require.True(t, policy.ShouldRetry(err, 2))
}

func TestRetryPolicy_FatalScrapeErrorNeverRetries(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy()
	err := &ScrapeError{Handle: "creator", Kind: ScrapeFatal, Err: errors.New("account gone")}
	require.False(t, policy.ShouldRetry(err, 1))
}

func TestRetryPolicy_AttemptCap(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(2, time.Millisecond, time.Second)
	err := &ScrapeError{Handle: "creator", Kind: ScrapeRecoverable, Err: errors.New("timeout")}
	require.True(t, policy.ShouldRetry(err, 1))
	require.False(t, policy.ShouldRetry(err, 2), "the attempt that just failed was the last allowed")
}

func TestRetryPolicy_ContextSentinelsStopRetrying(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy()
	require.False(t, policy.ShouldRetry(context.Canceled, 1))
	require.False(t, policy.ShouldRetry(context.DeadlineExceeded, 1))
}

func TestRetryPolicy_RecoverableWrappingDeadlineStillRetries(t *testing.T) {
	t.Parallel()

	// A per-attempt timeout is classified recoverable; the wrapped
	// deadline sentinel must not override that verdict.
	policy := NewExponentialRetryPolicy()
	err := &ScrapeError{Handle: "creator", Kind: ScrapeRecoverable, Err: context.DeadlineExceeded}
	require.True(t, policy.ShouldRetry(err, 1))
}

func TestRetryPolicy_NilErrorDoesNotRetry(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy()
	require.False(t, policy.ShouldRetry(nil, 1))
}

func TestRetryPolicy_BackoffGrowsAndStaysBounded(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(5, 100*time.Millisecond, 2*time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		delay := policy.Backoff(attempt)
		require.Positive(t, delay)
		require.LessOrEqual(t, delay, 2*time.Second)
	}
}

func TestRetryPolicy_NonPositiveConfigFallsBack(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(0, 0, 0)
	err := &ScrapeError{Handle: "creator", Kind: ScrapeRecoverable, Err: errors.New("transient")}
	require.True(t, policy.ShouldRetry(err, 2))
	require.False(t, policy.ShouldRetry(err, 3))
}
