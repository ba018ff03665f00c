package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retries []int

	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	}

	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	}, cfg)

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retries)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("venue down")

	err := Do(context.Background(), func() error {
		calls++
		return sentinel
	}, fastConfig(4))

	if !errors.Is(err, sentinel) {
		t.Errorf("Do() error = %v, want %v", err, sentinel)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDo_PermanentStops(t *testing.T) {
	calls := 0
	sentinel := errors.New("invalid symbol")

	err := Do(context.Background(), func() error {
		calls++
		return Permanent(sentinel)
	}, fastConfig(5))

	if err != sentinel {
		t.Errorf("Do() error = %v, want unwrapped sentinel", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), func() error {
		calls++
		return errors.New("x")
	}, Config{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return nil
	}, fastConfig(3))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", Temporary(errors.New("timeout"))
		}
		return "ok", nil
	}, fastConfig(3))

	if err != nil || got != "ok" {
		t.Errorf("DoWithResult() = %q, %v; want ok, nil", got, err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"permanent", Permanent(errors.New("x")), false},
		{"temporary", Temporary(errors.New("x")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConfig_DelayBounded(t *testing.T) {
	cfg := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2, JitterFactor: 0.5}
	cfg.normalize()

	for attempt := 0; attempt < 10; attempt++ {
		if d := cfg.delay(attempt); d < 0 || d > 75*time.Millisecond {
			t.Errorf("delay(%d) = %v out of bounds", attempt, d)
		}
	}
}
