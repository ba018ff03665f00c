package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config - экспоненциальный backoff с jitter:
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay) ± JitterFactor
type Config struct {
	// MaxAttempts - число попыток, включая первую. <= 0 → одна попытка.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0 - 1.0

	// RetryIf решает, повторять ли ошибку. nil → IsRetryable.
	RetryIf func(error) bool

	// OnRetry вызывается перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig - 3 попытки, 100ms/200ms (+ jitter), не дольше 5s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

func (c *Config) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	c.JitterFactor = math.Max(0, math.Min(1, c.JitterFactor))
	if c.RetryIf == nil {
		c.RetryIf = IsRetryable
	}
}

func (c *Config) delay(attempt int) time.Duration {
	d := math.Min(float64(c.InitialDelay)*math.Pow(c.Multiplier, float64(attempt)), float64(c.MaxDelay))
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(0, d))
}

// Do выполняет операцию с повторами, возвращая последнюю ошибку
//
//	err := retry.Do(ctx, func() error {
//	    _, err := client.Ping(ctx)
//	    return err
//	}, retry.DefaultConfig())
func Do(ctx context.Context, operation func() error, cfg Config) error {
	_, err := DoWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, cfg)
	return err
}

// DoWithResult выполняет операцию с результатом и повторами
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	cfg.normalize()

	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, unwrapMarker(lastErr)
			}
			return zero, err
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) || attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, unwrapMarker(lastErr)
		}
	}

	return zero, unwrapMarker(lastErr)
}

// ============================================================
// Классификация ошибок
// ============================================================

// RetryableError - ошибка, сама сообщающая о возможности повтора
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable: ошибки контекста не повторяются, RetryableError решает сама, остальные - повторяются
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

type markedError struct {
	err       error
	retryable bool
}

func (e *markedError) Error() string   { return e.err.Error() }
func (e *markedError) Unwrap() error   { return e.err }
func (e *markedError) Retryable() bool { return e.retryable }

// Permanent помечает ошибку как неповторяемую
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err}
}

// Temporary помечает ошибку как повторяемую
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, retryable: true}
}

// unwrapMarker снимает пометку Permanent/Temporary с итоговой ошибки
func unwrapMarker(err error) error {
	var m *markedError
	if errors.As(err, &m) && err == error(m) {
		return m.err
	}
	return err
}
