package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/models"
	"arbd/pkg/ratelimit"
	"arbd/pkg/retry"
)

var (
	venueRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbitrage",
			Subsystem: "venue",
			Name:      "requests_total",
			Help:      "Venue adapter calls by operation and result",
		},
		[]string{"venue", "op", "result"},
	)

	venueLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arbitrage",
			Subsystem: "venue",
			Name:      "request_duration_seconds",
			Help:      "Venue adapter call latency including retries",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"venue", "op"},
	)
)

// ResilientOptions - параметры декоратора
type ResilientOptions struct {
	Timeout   time.Duration // на одну попытку; 0 = без таймаута
	RateLimit float64       // запросов в секунду; 0 = без ограничения
	Burst     float64
	Retry     retry.Config
}

// Resilient оборачивает адаптер: таймаут на вызов, token bucket и повторы для чтения.
// Размещение ордеров никогда не повторяется.
type Resilient struct {
	inner   Adapter
	opts    ResilientOptions
	limiter *ratelimit.MultiLimiter
	logger  *zap.Logger
}

// NewResilient создаёт декоратор поверх адаптера
func NewResilient(inner Adapter, opts ResilientOptions, logger *zap.Logger) *Resilient {
	limiter := ratelimit.NewMultiLimiter()
	if opts.RateLimit > 0 {
		limiter.Add(ratelimit.CategoryMarketData, opts.RateLimit, opts.Burst)
		limiter.Add(ratelimit.CategoryOrders, opts.RateLimit, opts.Burst)
	}

	r := &Resilient{
		inner:   inner,
		opts:    opts,
		limiter: limiter,
		logger:  logger.Named("venue").With(zap.Stringer("venue", inner.Venue())),
	}
	r.opts.Retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("Retrying venue request",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return r
}

// Unwrap возвращает исходный адаптер
func (r *Resilient) Unwrap() Adapter {
	return r.inner
}

// Venue возвращает площадку адаптера
func (r *Resilient) Venue() models.Venue {
	return r.inner.Venue()
}

// GetMarketData - чтение с повторами
func (r *Resilient) GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	return read(ctx, r, "get_market_data", func(ctx context.Context) (*models.MarketData, error) {
		return r.inner.GetMarketData(ctx, symbol)
	})
}

// GetFundingRate - чтение с повторами
func (r *Resilient) GetFundingRate(ctx context.Context, symbol string) (*models.FundingRate, error) {
	return read(ctx, r, "get_funding_rate", func(ctx context.Context) (*models.FundingRate, error) {
		return r.inner.GetFundingRate(ctx, symbol)
	})
}

// GetTopSymbolsByVolume - чтение с повторами
func (r *Resilient) GetTopSymbolsByVolume(ctx context.Context, limit int) ([]string, error) {
	return read(ctx, r, "get_top_symbols", func(ctx context.Context) ([]string, error) {
		return r.inner.GetTopSymbolsByVolume(ctx, limit)
	})
}

// PlaceOrder - одна попытка, с лимитом и таймаутом
func (r *Resilient) PlaceOrder(ctx context.Context, symbol string, side models.Side, size, price decimal.Decimal) (*models.Trade, error) {
	start := time.Now()
	defer observe(r.Venue(), "place_order", start)

	if err := r.limiter.Wait(ctx, ratelimit.CategoryOrders); err != nil {
		return nil, err
	}

	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	trade, err := r.inner.PlaceOrder(callCtx, symbol, side, size, price)
	count(r.Venue(), "place_order", err)
	return trade, err
}

// GetQuote делегирует Quoter исходного адаптера с повторами
func (r *Resilient) GetQuote(ctx context.Context, inputMint, outputMint string, amount, slippageBps uint64) (*models.Quote, error) {
	q, ok := r.inner.(Quoter)
	if !ok {
		return nil, ErrNotSupported
	}
	return read(ctx, r, "get_quote", func(ctx context.Context) (*models.Quote, error) {
		return q.GetQuote(ctx, inputMint, outputMint, amount, slippageBps)
	})
}

// ExecuteSwap делегирует Swapper исходного адаптера без повторов
func (r *Resilient) ExecuteSwap(ctx context.Context, forward, reverse *models.Quote) ([]*models.Trade, error) {
	s, ok := r.inner.(Swapper)
	if !ok {
		return nil, ErrNotSupported
	}

	start := time.Now()
	defer observe(r.Venue(), "execute_swap", start)

	if err := r.limiter.Wait(ctx, ratelimit.CategoryOrders); err != nil {
		return nil, err
	}
	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	trades, err := s.ExecuteSwap(callCtx, forward, reverse)
	count(r.Venue(), "execute_swap", err)
	return trades, err
}

func (r *Resilient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// read выполняет запрос чтения: лимит → таймаут попытки → повтор по retry.Config
func read[T any](ctx context.Context, r *Resilient, op string, call func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	defer observe(r.Venue(), op, start)

	result, err := retry.DoWithResult(ctx, func() (T, error) {
		if err := r.limiter.Wait(ctx, ratelimit.CategoryMarketData); err != nil {
			var zero T
			return zero, retry.Permanent(err)
		}
		callCtx, cancel := r.withTimeout(ctx)
		defer cancel()
		res, err := call(callCtx)
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			// истёк таймаут попытки, а не родительский контекст
			return res, retry.Temporary(err)
		}
		return res, err
	}, r.opts.Retry)

	count(r.Venue(), op, err)
	return result, err
}

func observe(venue models.Venue, op string, start time.Time) {
	venueLatency.WithLabelValues(venue.String(), op).Observe(time.Since(start).Seconds())
}

func count(venue models.Venue, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	venueRequests.WithLabelValues(venue.String(), op, result).Inc()
}

// AsQuoter возвращает Quoter, если исходный адаптер (под декоратором) умеет котировать
func AsQuoter(a Adapter) (Quoter, bool) {
	if r, ok := a.(*Resilient); ok {
		if _, ok := r.inner.(Quoter); !ok {
			return nil, false
		}
		return r, true
	}
	q, ok := a.(Quoter)
	return q, ok
}

// AsSwapper возвращает Swapper, если исходный адаптер умеет исполнять обмены
func AsSwapper(a Adapter) (Swapper, bool) {
	if r, ok := a.(*Resilient); ok {
		if _, ok := r.inner.(Swapper); !ok {
			return nil, false
		}
		return r, true
	}
	s, ok := a.(Swapper)
	return s, ok
}
