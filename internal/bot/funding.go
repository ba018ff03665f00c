package bot

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/exchange"
	"arbd/internal/models"
	"arbd/pkg/utils"
)

// DefaultTopSymbols - размер universe каждой площадки при discovery
const DefaultTopSymbols = 10

// FundingSignal - результат сравнения ставок финансирования
type FundingSignal struct {
	Short      *models.FundingRate // площадка с максимальной ставкой
	Long       *models.FundingRate // площадка с минимальной ставкой
	Spread     decimal.Decimal     // за период
	Annualized decimal.Decimal
}

// DetectFundingSpread выбирает max/min ставку устойчивым проходом в порядке rates
// (при равенстве побеждает первая) и сравнивает годовой спред с порогом (>= проходит).
// Вызывающий передаёт rates в порядке перечисления площадок.
func DetectFundingSpread(rates []*models.FundingRate, minAnnualized decimal.Decimal) (FundingSignal, bool) {
	if len(rates) < 2 {
		return FundingSignal{}, false
	}

	hi, lo := rates[0], rates[0]
	for _, r := range rates[1:] {
		if r.Rate.GreaterThan(hi.Rate) {
			hi = r
		}
		if r.Rate.LessThan(lo.Rate) {
			lo = r
		}
	}

	spread := hi.Rate.Sub(lo.Rate)
	sig := FundingSignal{
		Short:      hi,
		Long:       lo,
		Spread:     spread,
		Annualized: utils.AnnualizeFunding(spread),
	}
	return sig, sig.Annualized.GreaterThanOrEqual(minAnnualized)
}

// FundingArbConfig - параметры стратегии
type FundingArbConfig struct {
	MinAnnualizedSpread decimal.Decimal
	Interval            time.Duration
	TopSymbols          int
	PositionNotional    decimal.Decimal // на каждую ногу, USDT
}

// FundingArb - арбитраж ставок финансирования: short на площадке с высокой ставкой,
// long на площадке с низкой, равный notional на обеих ногах
type FundingArb struct {
	venues     []exchange.Adapter // в порядке перечисления Venue, это порядок тай-брейка
	configured []exchange.Adapter // порядок конфигурации; первая - fallback discovery
	cfg        FundingArbConfig
	exec   *Executor
	logger *zap.Logger
}

// NewFundingArb создаёт стратегию
func NewFundingArb(venues []exchange.Adapter, cfg FundingArbConfig, exec *Executor, logger *zap.Logger) *FundingArb {
	if cfg.TopSymbols <= 0 {
		cfg.TopSymbols = DefaultTopSymbols
	}
	sorted := slices.Clone(venues)
	slices.SortStableFunc(sorted, func(a, b exchange.Adapter) int {
		return int(a.Venue()) - int(b.Venue())
	})
	return &FundingArb{
		venues:     sorted,
		configured: slices.Clone(venues),
		cfg:        cfg,
		exec:       exec,
		logger:     logger.Named(string(models.StrategyFundingArb)),
	}
}

// Kind возвращает тип стратегии
func (f *FundingArb) Kind() models.StrategyKind {
	return models.StrategyFundingArb
}

// Interval - пауза между итерациями
func (f *FundingArb) Interval() time.Duration {
	return f.cfg.Interval
}

// Discover - пересечение top-N символов по объёму на всех площадках в порядке первой площадки;
// пустое пересечение → список первой площадки
func (f *FundingArb) Discover(ctx context.Context) ([]string, error) {
	if len(f.configured) == 0 {
		return nil, fmt.Errorf("no venues configured")
	}

	lists := make([][]string, len(f.configured))
	for i, v := range f.configured {
		symbols, err := v.GetTopSymbolsByVolume(ctx, f.cfg.TopSymbols)
		if err != nil {
			return nil, fmt.Errorf("top symbols on %s: %w", v.Venue(), err)
		}
		lists[i] = symbols
	}

	common := intersectOrdered(lists)
	if len(common) == 0 {
		f.logger.Warn("No common symbols across venues, falling back to first venue",
			zap.Stringer("venue", f.configured[0].Venue()))
		common = lists[0]
	}
	if len(common) > f.cfg.TopSymbols {
		common = common[:f.cfg.TopSymbols]
	}
	return common, nil
}

// intersectOrdered возвращает элементы первого списка, присутствующие во всех остальных
func intersectOrdered(lists [][]string) []string {
	if len(lists) == 0 {
		return nil
	}
	sets := make([]map[string]struct{}, len(lists)-1)
	for i, l := range lists[1:] {
		sets[i] = make(map[string]struct{}, len(l))
		for _, s := range l {
			sets[i][s] = struct{}{}
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, s := range lists[0] {
		if _, dup := seen[s]; dup {
			continue
		}
		inAll := true
		for _, set := range sets {
			if _, ok := set[s]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Evaluate опрашивает ставки и цены символа на всех площадках, проверяет сигнал и исполняет
func (f *FundingArb) Evaluate(ctx context.Context, symbol string) error {
	rates := make([]*models.FundingRate, 0, len(f.venues))
	prices := make(map[models.Venue]*models.MarketData, len(f.venues))
	byVenue := make(map[models.Venue]exchange.Adapter, len(f.venues))

	for _, v := range f.venues {
		fr, err := v.GetFundingRate(ctx, symbol)
		if err != nil {
			return fmt.Errorf("funding rate on %s: %w", v.Venue(), err)
		}
		md, err := v.GetMarketData(ctx, symbol)
		if err != nil {
			return fmt.Errorf("market data on %s: %w", v.Venue(), err)
		}
		f.exec.Store().UpsertFundingRate(fr)
		f.exec.Store().UpsertMarketData(md)

		rates = append(rates, fr)
		prices[v.Venue()] = md
		byVenue[v.Venue()] = v
	}

	sig, ok := DetectFundingSpread(rates, f.cfg.MinAnnualizedSpread)
	SpreadObserved.WithLabelValues(string(models.StrategyFundingArb)).Observe(sig.Annualized.Mul(decimal.NewFromInt(10000)).InexactFloat64())
	if !ok {
		return nil
	}

	shortPrice := prices[sig.Short.Venue].Price
	longPrice := prices[sig.Long.Venue].Price

	f.exec.ReportOpportunity(ctx, models.ArbitrageOpportunity{
		Strategy:        models.StrategyFundingArb,
		Symbol:          symbol,
		VenueA:          sig.Short.Venue,
		VenueB:          sig.Long.Venue,
		PriceA:          shortPrice,
		PriceB:          longPrice,
		SpreadBps:       sig.Annualized.Mul(decimal.NewFromInt(10000)).IntPart(),
		EstimatedProfit: sig.Spread.Mul(f.cfg.PositionNotional),
		DetectedAt:      time.Now().UTC(),
	})

	if f.exec.DryRun() {
		f.logger.Info("DRY RUN: would execute funding arbitrage", zap.String("symbol", symbol))
		return nil
	}

	shortSize, err := sizeForNotional(f.cfg.PositionNotional, shortPrice)
	if err != nil {
		return fmt.Errorf("short leg on %s: %w", sig.Short.Venue, err)
	}
	longSize, err := sizeForNotional(f.cfg.PositionNotional, longPrice)
	if err != nil {
		return fmt.Errorf("long leg on %s: %w", sig.Long.Venue, err)
	}

	f.exec.ExecuteLegs(ctx,
		Leg{Adapter: byVenue[sig.Short.Venue], Symbol: symbol, Side: models.SideShort, Size: shortSize},
		Leg{Adapter: byVenue[sig.Long.Venue], Symbol: symbol, Side: models.SideLong, Size: longSize},
	)
	return nil
}

// sizeForNotional переводит notional в размер по цене
func sizeForNotional(notional, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return notional.DivRound(price, 8), nil
}
