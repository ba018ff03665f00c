package bot

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/exchange"
	"arbd/internal/models"
	"arbd/internal/notify"
	"arbd/internal/state"
)

// Leg - одна нога исполнения: ордер на площадке
type Leg struct {
	Adapter exchange.Adapter
	Symbol  string
	Side    models.Side
	Size    decimal.Decimal
	Price   decimal.Decimal // 0 = рыночный ордер
}

// Executor - общий для стратегий путь от сигнала к сделкам.
//
// Ноги исполняются независимо: отказ риск-движка по одной ноге не откатывает уже размещённые.
// Каждая сделка проходит CheckTrade, затем RecordTrade.
type Executor struct {
	risk      *RiskEngine
	store     *state.Store
	publisher notify.Publisher
	dryRun    bool
	leverage  decimal.Decimal
	logger    *zap.Logger
}

// NewExecutor создаёт исполнитель. publisher = nil → события не публикуются.
func NewExecutor(risk *RiskEngine, store *state.Store, publisher notify.Publisher, dryRun bool, logger *zap.Logger) *Executor {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	leverage := risk.Limits().MaxLeverage
	if !leverage.IsPositive() {
		leverage = decimal.NewFromInt(1)
	}
	return &Executor{
		risk:      risk,
		store:     store,
		publisher: publisher,
		dryRun:    dryRun,
		leverage:  leverage,
		logger:    logger.Named("executor"),
	}
}

// DryRun - режим без размещения ордеров
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Risk возвращает риск-движок
func (e *Executor) Risk() *RiskEngine {
	return e.risk
}

// Store возвращает общее хранилище
func (e *Executor) Store() *state.Store {
	return e.store
}

// ReportOpportunity логирует возможность, считает её в метриках, кладёт в кольцо и публикует
func (e *Executor) ReportOpportunity(ctx context.Context, opp models.ArbitrageOpportunity) {
	OpportunitiesDetected.WithLabelValues(string(opp.Strategy), opp.Symbol).Inc()
	e.store.Opportunities.Record(opp)

	e.logger.Info("Arbitrage opportunity detected",
		zap.String("strategy", string(opp.Strategy)),
		zap.String("symbol", opp.Symbol),
		zap.Stringer("venue_a", opp.VenueA),
		zap.Stringer("venue_b", opp.VenueB),
		zap.Stringer("price_a", opp.PriceA),
		zap.Stringer("price_b", opp.PriceB),
		zap.Int64("spread_bps", opp.SpreadBps),
		zap.Stringer("estimated_profit", opp.EstimatedProfit),
		zap.Bool("dry_run", e.dryRun))

	e.publish(ctx, notify.NewEvent(notify.EventOpportunity, opp))
}

// ExecuteLegs размещает ноги по очереди и возвращает учтённые сделки.
// Ошибка площадки или отказ риска по ноге логируется; остальные ноги продолжаются.
func (e *Executor) ExecuteLegs(ctx context.Context, legs ...Leg) []*models.Trade {
	recorded := make([]*models.Trade, 0, len(legs))

	for _, leg := range legs {
		venue := leg.Adapter.Venue()
		start := time.Now()
		trade, err := leg.Adapter.PlaceOrder(ctx, leg.Symbol, leg.Side, leg.Size, leg.Price)
		RecordOrderLatency(venue.String(), string(leg.Side), time.Since(start))

		if err != nil {
			TradesTotal.WithLabelValues(venue.String(), "failed").Inc()
			e.logger.Error("Failed to place order",
				zap.Stringer("venue", venue),
				zap.String("symbol", leg.Symbol),
				zap.String("side", string(leg.Side)),
				zap.Error(err))
			continue
		}

		if e.Settle(ctx, trade) {
			recorded = append(recorded, trade)
		}
	}

	return recorded
}

// Settle проводит размещённую сделку через риск-движок: CheckTrade → RecordTrade → позиция в сторе.
// Возвращает true, если сделка учтена как исполненная.
func (e *Executor) Settle(ctx context.Context, trade *models.Trade) bool {
	e.store.UpsertTrade(trade)

	log := e.logger.With(
		zap.String("trade_id", trade.ID),
		zap.Stringer("venue", trade.Venue),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)),
		zap.Stringer("size", trade.Size),
		zap.Stringer("price", trade.Price))

	if err := e.risk.CheckTrade(trade); err != nil {
		TradesTotal.WithLabelValues(trade.Venue.String(), "rejected_risk").Inc()
		log.Warn("Risk check failed, abandoning leg", zap.Error(err))
		if errors.Is(err, ErrDailyLossThresholdExceeded) {
			e.publishRisk(ctx, "kill_switch_activated")
		}
		return false
	}

	e.risk.RecordTrade(trade)

	if trade.Status != models.TradeStatusFilled {
		TradesTotal.WithLabelValues(trade.Venue.String(), "not_filled").Inc()
		log.Warn("Order not filled", zap.String("status", string(trade.Status)))
		e.publish(ctx, notify.NewEvent(notify.EventTrade, trade))
		return false
	}

	e.store.UpsertPosition(e.mergePosition(trade))
	TradesTotal.WithLabelValues(trade.Venue.String(), "recorded").Inc()
	log.Info("Trade recorded")
	e.publish(ctx, notify.NewEvent(notify.EventTrade, trade))
	return true
}

// mergePosition: сделка в ту же сторону усредняет позицию (symbol, venue), иначе позиция заменяется
func (e *Executor) mergePosition(trade *models.Trade) *models.Position {
	fresh := models.PositionFromTrade(trade, e.leverage)

	existing, ok := e.store.Positions.Get(state.SymbolVenue{Symbol: trade.Symbol, Venue: trade.Venue})
	if !ok || existing.Side != trade.Side {
		return fresh
	}

	size := existing.Size.Add(trade.Size)
	if !size.IsPositive() {
		return fresh
	}
	entry := existing.Notional().Add(trade.Notional()).Div(size)

	return &models.Position{
		Symbol:     existing.Symbol,
		Venue:      existing.Venue,
		Side:       existing.Side,
		Size:       size,
		EntryPrice: entry,
		Leverage:   existing.Leverage,
		OpenedAt:   existing.OpenedAt,
	}
}

// ClosePosition освобождает позицию в риск-движке и удаляет её из стора
func (e *Executor) ClosePosition(venue models.Venue, symbol string, notional decimal.Decimal) {
	e.risk.RecordPositionClosed(venue, symbol, notional)
	e.store.Positions.Delete(state.SymbolVenue{Symbol: symbol, Venue: venue})
}

func (e *Executor) publishRisk(ctx context.Context, reason string) {
	snap := e.risk.Snapshot()
	e.publish(ctx, notify.NewEvent(notify.EventRisk, notify.RiskEvent{
		Reason:           reason,
		KillSwitchActive: snap.KillSwitchActive,
		DailyPnl:         snap.DailyPnl.String(),
	}))
}

func (e *Executor) publish(ctx context.Context, ev notify.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("Failed to publish event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
