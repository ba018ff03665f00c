package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket для запросов к площадкам.
//
// Ведро наполняется со скоростью rate токенов/сек до ёмкости burst, запрос потребляет один токен.
//
//	limiter := NewRateLimiter(10, 20) // 10 req/sec, burst 20
//	err := limiter.Wait(ctx)          // блокирующее ожидание
//	if limiter.Allow() { ... }        // неблокирующая проверка
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter создаёт limiter. rate <= 0 → 10 req/sec, burst <= 0 → 2x rate.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < 1 {
		burst = 1
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// refill вызывается под lock'ом
func (rl *RateLimiter) refill(now time.Time) {
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// take забирает токен или возвращает время до появления следующего
func (rl *RateLimiter) take() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}
	return false, time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait := rl.take()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow забирает токен без блокировки
func (rl *RateLimiter) Allow() bool {
	ok, _ := rl.take()
	return ok
}

// Tokens возвращает текущее количество токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(time.Now())
	return rl.tokens
}

// Rate возвращает скорость пополнения
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// ============================================================
// MultiLimiter - лимиты по категориям запросов
// ============================================================

// Категории запросов к площадке
const (
	CategoryMarketData = "market_data"
	CategoryOrders     = "orders"
)

// MultiLimiter держит отдельный limiter на категорию. Категория без лимита не ограничивается.
type MultiLimiter struct {
	limiters map[string]*RateLimiter
	mu       sync.RWMutex
}

// NewMultiLimiter создаёт пустой MultiLimiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{limiters: make(map[string]*RateLimiter)}
}

// Add задаёт лимит категории
func (ml *MultiLimiter) Add(category string, rate, burst float64) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.limiters[category] = NewRateLimiter(rate, burst)
}

// Wait ожидает токен категории
func (ml *MultiLimiter) Wait(ctx context.Context, category string) error {
	if l := ml.Get(category); l != nil {
		return l.Wait(ctx)
	}
	return nil
}

// Get возвращает limiter категории или nil
func (ml *MultiLimiter) Get(category string) *RateLimiter {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return ml.limiters[category]
}
