package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
)

func testPolicy() *Policy {
	// Short backoffs keep the retry tests fast
	return &Policy{
		MaxAttempts:       5,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := testPolicy().Execute(context.Background(), arbor.NewLogger(), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := testPolicy().Execute(context.Background(), arbor.NewLogger(), "op", func() error {
		calls++
		if calls < 3 {
			return &interfaces.StatusError{Code: 503, Body: "unavailable"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := &interfaces.StatusError{Code: 500, Body: "boom"}
	err := testPolicy().Execute(context.Background(), arbor.NewLogger(), "op", func() error {
		calls++
		return wantErr
	})

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.ErrorIs(t, err, wantErr)
}

func TestExecuteFailsFastOnPermanentError(t *testing.T) {
	calls := 0
	err := testPolicy().Execute(context.Background(), arbor.NewLogger(), "op", func() error {
		calls++
		return &interfaces.StatusError{Code: 400, Body: "bad request"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := &Policy{
		MaxAttempts:       5,
		InitialBackoff:    time.Hour, // Would hang without cancellation
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
	}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Execute(ctx, arbor.NewLogger(), "op", func() error {
		calls++
		return &interfaces.StatusError{Code: 503}
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffDoublesWithCap(t *testing.T) {
	policy := &Policy{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}

	// Expected pre-jitter delays: 1s, 2s, 4s, 8s
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for attempt, want := range expected {
		for i := 0; i < 50; i++ {
			got := policy.Backoff(attempt)
			assert.GreaterOrEqual(t, got, time.Duration(float64(want)*0.75), "attempt %d", attempt)
			assert.LessOrEqual(t, got, time.Duration(float64(want)*1.25), "attempt %d", attempt)
		}
	}

	// Far past the cap the jittered delay never exceeds cap+25%
	for i := 0; i < 50; i++ {
		got := policy.Backoff(20)
		assert.LessOrEqual(t, got, time.Duration(float64(60*time.Second)*1.25))
		assert.GreaterOrEqual(t, got, time.Duration(float64(60*time.Second)*0.75))
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 408", &interfaces.StatusError{Code: 408}, true},
		{"status 429", &interfaces.StatusError{Code: 429}, true},
		{"status 500", &interfaces.StatusError{Code: 500}, true},
		{"status 502", &interfaces.StatusError{Code: 502}, true},
		{"status 503", &interfaces.StatusError{Code: 503}, true},
		{"status 504", &interfaces.StatusError{Code: 504}, true},
		{"status 400", &interfaces.StatusError{Code: 400}, false},
		{"status 401", &interfaces.StatusError{Code: 401}, false},
		{"status 404", &interfaces.StatusError{Code: 404}, false},
		{"status 501", &interfaces.StatusError{Code: 501}, false},
		{"auth error", &interfaces.AuthError{Service: "sheets"}, false},
		{"validation error", &interfaces.ValidationError{Source: "apify", Reason: "no id"}, false},
		{"config error", &interfaces.ConfigError{Field: "sheet_id", Reason: "missing"}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"wrapped status", errors.Join(errors.New("outer"), &interfaces.StatusError{Code: 503}), true},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
