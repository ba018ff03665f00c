package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/exchange"
	"arbd/internal/models"
	"arbd/pkg/utils"
)

// DefaultSpotPairs - пары спотового спреда по умолчанию
var DefaultSpotPairs = []string{"ETH-USDC", "BTC-USDC", "SOL-USDC"}

// SpotSpreadConfig - параметры стратегии спотового спреда
type SpotSpreadConfig struct {
	Pairs        []string // BASE-QUOTE; референсная площадка торгует BASE
	MinSpreadBps int64
	Interval     time.Duration
	Size         decimal.Decimal // размер ноги в базовом активе
}

// SpotSpread сравнивает спотовую цену пары на площадке со ценой базового актива
// на референсной площадке: покупка там, где дешевле, продажа там, где дороже
type SpotSpread struct {
	spot      exchange.Adapter
	reference exchange.Adapter
	cfg       SpotSpreadConfig
	exec      *Executor
	logger    *zap.Logger

	bases map[string]string // пара → базовый актив
}

// NewSpotSpread создаёт стратегию
func NewSpotSpread(spot, reference exchange.Adapter, cfg SpotSpreadConfig, exec *Executor, logger *zap.Logger) *SpotSpread {
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = DefaultSpotPairs
	}
	return &SpotSpread{
		spot:      spot,
		reference: reference,
		cfg:       cfg,
		exec:      exec,
		logger:    logger.Named(string(models.StrategySpotSpread)),
		bases:     make(map[string]string, len(cfg.Pairs)),
	}
}

// Kind возвращает тип стратегии
func (s *SpotSpread) Kind() models.StrategyKind {
	return models.StrategySpotSpread
}

// Interval - пауза между итерациями
func (s *SpotSpread) Interval() time.Duration {
	return s.cfg.Interval
}

// Discover проверяет фиксированный список пар
func (s *SpotSpread) Discover(_ context.Context) ([]string, error) {
	pairs := make([]string, 0, len(s.cfg.Pairs))
	for _, p := range s.cfg.Pairs {
		base, _, err := utils.SplitPair(p)
		if err != nil {
			return nil, err
		}
		pair := utils.NormalizeSymbol(p)
		s.bases[pair] = base
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// SpotSignal - результат сравнения цен
type SpotSignal struct {
	SpreadBps int64
	Buy       *models.MarketData // дешевле
	Sell      *models.MarketData // дороже
}

// DetectSpotSpread: spread_bps = |spot - ref| / ref × 10000, проходит при >= minBps
func DetectSpotSpread(spot, ref *models.MarketData, minBps int64) (SpotSignal, bool) {
	sig := SpotSignal{SpreadBps: utils.SpreadBps(spot.Price, ref.Price, ref.Price)}
	if spot.Price.GreaterThan(ref.Price) {
		sig.Buy, sig.Sell = ref, spot
	} else {
		sig.Buy, sig.Sell = spot, ref
	}
	return sig, sig.SpreadBps >= minBps && ref.Price.IsPositive()
}

// Evaluate опрашивает обе площадки по паре, проверяет спред и исполняет
func (s *SpotSpread) Evaluate(ctx context.Context, pair string) error {
	base, ok := s.bases[pair]
	if !ok {
		return fmt.Errorf("pair %s was not discovered", pair)
	}

	spotPrice, err := s.spot.GetMarketData(ctx, pair)
	if err != nil {
		return fmt.Errorf("spot price on %s: %w", s.spot.Venue(), err)
	}
	refPrice, err := s.reference.GetMarketData(ctx, base)
	if err != nil {
		return fmt.Errorf("reference price on %s: %w", s.reference.Venue(), err)
	}
	s.exec.Store().UpsertMarketData(spotPrice)
	s.exec.Store().UpsertMarketData(refPrice)

	sig, ok := DetectSpotSpread(spotPrice, refPrice, s.cfg.MinSpreadBps)
	SpreadObserved.WithLabelValues(string(models.StrategySpotSpread)).Observe(float64(sig.SpreadBps))
	if !ok {
		return nil
	}

	s.exec.ReportOpportunity(ctx, models.ArbitrageOpportunity{
		Strategy:        models.StrategySpotSpread,
		Symbol:          pair,
		VenueA:          sig.Sell.Venue,
		VenueB:          sig.Buy.Venue,
		PriceA:          sig.Sell.Price,
		PriceB:          sig.Buy.Price,
		SpreadBps:       sig.SpreadBps,
		EstimatedProfit: sig.Sell.Price.Sub(sig.Buy.Price).Mul(s.cfg.Size),
		DetectedAt:      time.Now().UTC(),
	})

	if s.exec.DryRun() {
		s.logger.Info("DRY RUN: would execute spot spread arbitrage", zap.String("pair", pair))
		return nil
	}

	s.exec.ExecuteLegs(ctx,
		s.leg(sig.Buy, models.SideLong),
		s.leg(sig.Sell, models.SideShort),
	)
	return nil
}

// leg строит ногу на площадке наблюдения; символ площадки сохраняется (пара или базовый актив)
func (s *SpotSpread) leg(md *models.MarketData, side models.Side) Leg {
	adapter := s.reference
	if md.Venue == s.spot.Venue() {
		adapter = s.spot
	}
	return Leg{Adapter: adapter, Symbol: md.Symbol, Side: side, Size: s.cfg.Size}
}
