package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestClassifyLLMError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RetryClass
	}{
		{"nil", nil, RetryClassNonRetryable},
		{"rate limit", errors.New("429 Too Many Requests"), RetryClassRetryable},
		{"bad gateway", errors.New("502 bad gateway"), RetryClassRetryable},
		{"client timeout", errors.New("context deadline exceeded (Client.Timeout exceeded)"), RetryClassMaybe},
		{"context length", errors.New("maximum context length is 8192 tokens"), RetryClassMaybe},
		{"auth", errors.New("401 invalid api key"), RetryClassNonRetryable},
		{"unknown", errors.New("something odd"), RetryClassNonRetryable},
		{"pre-classified", NewEngineError(errors.New("x"), RetryClassRetryable), RetryClassRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLLMError(tt.err))
		})
	}
}

func TestExtractRetryAfter(t *testing.T) {
	assert.Equal(t, 7*time.Second, ExtractRetryAfter(WrapLLMError(errors.New("slow down"), 429, "7")))
	assert.Equal(t, 3*time.Second, ExtractRetryAfter(errors.New("rate limited, retry after 3 seconds")))
	assert.Zero(t, ExtractRetryAfter(errors.New("boom")))
}

func TestWrapLLMError(t *testing.T) {
	assert.NoError(t, WrapLLMError(nil, 500, ""))

	err := WrapLLMError(errors.New("503 service unavailable"), 503, "")
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, RetryClassRetryable, ee.Class)
	assert.True(t, ee.IsNetwork)
	assert.False(t, ee.IsRateLimit)
}

func TestRetryWithPolicy(t *testing.T) {
	transient := errors.New("503 service unavailable")

	tests := []struct {
		name          string
		policy        RetryPolicy
		failures      int
		err           error
		wantCalls     int
		wantErr       bool
		wantExhausted bool
	}{
		{"success first try", fastPolicy(3), 0, transient, 1, false, false},
		{"recovers", fastPolicy(3), 2, transient, 3, false, false},
		{"exhausted", fastPolicy(2), 10, transient, 3, true, true},
		{"no retries returns first error", fastPolicy(0), 10, transient, 1, true, false},
		{"non retryable", fastPolicy(3), 10, errors.New("invalid request"), 1, true, false},
		{"maybe is guarded", fastPolicy(5), 10, errors.New("deadline exceeded"), 3, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var retries []int
			_, err := RetryWithPolicy(context.Background(), tt.policy,
				func(context.Context) (string, error) {
					calls++
					if calls <= tt.failures {
						return "", tt.err
					}
					return "ok", nil
				},
				ClassifyLLMError,
				func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) },
			)

			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, retries, tt.wantCalls-1)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantExhausted, IsRetryExhausted(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRetryWithPolicy_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}

	_, err := RetryWithPolicy(ctx, policy,
		func(context.Context) (int, error) { return 0, errors.New("502 bad gateway") },
		ClassifyLLMError,
		func(int, time.Duration, error) { cancel() },
	)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStepError(t *testing.T) {
	st := &State{ExplorationCounter: 2}
	base := errors.New("boom")

	err := WrapWithContext(base, st, StepDispatch, "read_file", "/p/a.csv")
	assert.EqualError(t, err, "[round=2 step=dispatch op=read_file file=/p/a.csv] boom")
	assert.ErrorIs(t, err, base)

	err = WrapWithContext(base, st, StepMerge, "llm_call", "")
	assert.EqualError(t, err, "[round=2 step=merge op=llm_call] boom")

	assert.NoError(t, WrapWithContext(nil, st, StepMerge, "llm_call", ""))
}
