package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"arbd/internal/exchange"
	"arbd/internal/models"
	"arbd/pkg/utils"
)

// DefaultRoundTripAmount - 1 SOL в лампортах
const DefaultRoundTripAmount uint64 = 1_000_000_000

// SwapRoute - маршрут обмена input → output → input
type SwapRoute struct {
	InputMint  string
	OutputMint string
}

// String - ключ маршрута "input/output"
func (r SwapRoute) String() string {
	return r.InputMint + "/" + r.OutputMint
}

// ParseSwapRoute разбирает "input/output"
func ParseSwapRoute(s string) (SwapRoute, error) {
	in, out, ok := strings.Cut(s, "/")
	if !ok || in == "" || out == "" || strings.Contains(out, "/") {
		return SwapRoute{}, fmt.Errorf("invalid swap route %q", s)
	}
	return SwapRoute{InputMint: in, OutputMint: out}, nil
}

// RoundTripConfig - параметры стратегии
type RoundTripConfig struct {
	Routes         []SwapRoute
	Amount         uint64 // в минимальных единицах input
	MinProfitBps   int64
	MaxSlippageBps uint64
	Interval       time.Duration
}

// RoundTrip котирует обмен туда и обратно на одном агрегаторе и исполняет пару,
// если обратный выход больше входа на MinProfitBps
type RoundTrip struct {
	venue   exchange.Adapter
	quoter  exchange.Quoter
	swapper exchange.Swapper
	cfg     RoundTripConfig
	exec    *Executor
	logger  *zap.Logger
}

// NewRoundTrip создаёт стратегию; возможности агрегатора проверяются в Discover
func NewRoundTrip(venue exchange.Adapter, cfg RoundTripConfig, exec *Executor, logger *zap.Logger) *RoundTrip {
	if cfg.Amount == 0 {
		cfg.Amount = DefaultRoundTripAmount
	}
	rt := &RoundTrip{
		venue:  venue,
		cfg:    cfg,
		exec:   exec,
		logger: logger.Named(string(models.StrategyRoundTrip)),
	}
	rt.quoter, _ = exchange.AsQuoter(venue)
	rt.swapper, _ = exchange.AsSwapper(venue)
	return rt
}

// Kind возвращает тип стратегии
func (r *RoundTrip) Kind() models.StrategyKind {
	return models.StrategyRoundTrip
}

// Interval - пауза между итерациями
func (r *RoundTrip) Interval() time.Duration {
	return r.cfg.Interval
}

// Discover возвращает маршруты; площадка без котировок делает стратегию неработоспособной
func (r *RoundTrip) Discover(_ context.Context) ([]string, error) {
	if r.quoter == nil {
		return nil, fmt.Errorf("%s: quotes: %w", r.venue.Venue(), exchange.ErrNotSupported)
	}
	if r.swapper == nil && !r.exec.DryRun() {
		return nil, fmt.Errorf("%s: swaps: %w", r.venue.Venue(), exchange.ErrNotSupported)
	}
	if len(r.cfg.Routes) == 0 {
		return nil, fmt.Errorf("no swap routes configured")
	}

	targets := make([]string, len(r.cfg.Routes))
	for i, route := range r.cfg.Routes {
		targets[i] = route.String()
	}
	return targets, nil
}

// RoundTripSignal - пара котировок и результат
type RoundTripSignal struct {
	Forward   *models.Quote
	Reverse   *models.Quote
	ProfitBps int64
}

// Quote котирует маршрут туда и обратно: обратная котировка берёт выход прямой
func (r *RoundTrip) Quote(ctx context.Context, route SwapRoute) (RoundTripSignal, error) {
	fwd, err := r.quoter.GetQuote(ctx, route.InputMint, route.OutputMint, r.cfg.Amount, r.cfg.MaxSlippageBps)
	if err != nil {
		return RoundTripSignal{}, fmt.Errorf("forward quote %s: %w", route, err)
	}
	rev, err := r.quoter.GetQuote(ctx, route.OutputMint, route.InputMint, fwd.OutAmount, r.cfg.MaxSlippageBps)
	if err != nil {
		return RoundTripSignal{}, fmt.Errorf("reverse quote %s: %w", route, err)
	}
	return RoundTripSignal{
		Forward:   fwd,
		Reverse:   rev,
		ProfitBps: utils.ProfitBps(fwd.InAmount, rev.OutAmount),
	}, nil
}

// Evaluate котирует маршрут, проверяет прибыль и исполняет обмен
func (r *RoundTrip) Evaluate(ctx context.Context, target string) error {
	route, err := ParseSwapRoute(target)
	if err != nil {
		return err
	}

	sig, err := r.Quote(ctx, route)
	if err != nil {
		return err
	}

	r.exec.Store().UpsertMarketData(&models.MarketData{
		Symbol:     sig.Forward.Pair(),
		Venue:      r.venue.Venue(),
		Price:      sig.Forward.Price(),
		ObservedAt: sig.Forward.QuotedAt,
	})

	SpreadObserved.WithLabelValues(string(models.StrategyRoundTrip)).Observe(float64(sig.ProfitBps))
	// убыточный обмен не проходит даже при нулевом пороге (bps округляются к нулю)
	if sig.ProfitBps < r.cfg.MinProfitBps || sig.Reverse.OutAmount < sig.Forward.InAmount {
		return nil
	}

	gain := utils.FromUint64(sig.Reverse.OutAmount).
		Sub(utils.FromUint64(sig.Forward.InAmount)).
		Shift(-sig.Forward.InDecimals)

	r.exec.ReportOpportunity(ctx, models.ArbitrageOpportunity{
		Strategy:        models.StrategyRoundTrip,
		Symbol:          target,
		VenueA:          r.venue.Venue(),
		VenueB:          r.venue.Venue(),
		PriceA:          sig.Forward.Price(),
		PriceB:          sig.Reverse.Price(),
		SpreadBps:       sig.ProfitBps,
		EstimatedProfit: gain,
		DetectedAt:      time.Now().UTC(),
	})

	if r.exec.DryRun() {
		r.logger.Info("DRY RUN: would execute round-trip swap", zap.String("route", target))
		return nil
	}

	start := time.Now()
	trades, err := r.swapper.ExecuteSwap(ctx, sig.Forward, sig.Reverse)
	RecordOrderLatency(r.venue.Venue().String(), "swap", time.Since(start))
	if err != nil {
		TradesTotal.WithLabelValues(r.venue.Venue().String(), "failed").Inc()
		return fmt.Errorf("execute swap %s: %w", target, err)
	}

	// Обмен туда и обратно возвращает в исходный токен: учтённые ноги сразу закрываются
	for _, t := range trades {
		if r.exec.Settle(ctx, t) {
			r.exec.ClosePosition(t.Venue, t.Symbol, t.Notional())
		}
	}
	return nil
}
