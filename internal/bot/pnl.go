package bot

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/models"
	"arbd/internal/state"
	"arbd/pkg/utils"
)

// DefaultPnLInterval - период переоценки позиций
const DefaultPnLInterval = 5 * time.Second

// PnLTracker переоценивает открытые позиции стора по последним ценам и передаёт
// изменение нереализованного PNL в дневной PNL риск-движка.
//
// Хранит последнюю оценку каждой позиции. Закрытая позиция выбывает без дельты:
// её последняя оценка остаётся в дневном PNL.
type PnLTracker struct {
	store    *state.Store
	risk     *RiskEngine
	interval time.Duration
	logger   *zap.Logger

	marks map[state.SymbolVenue]decimal.Decimal
}

// NewPnLTracker создаёт трекер
func NewPnLTracker(store *state.Store, risk *RiskEngine, interval time.Duration, logger *zap.Logger) *PnLTracker {
	if interval <= 0 {
		interval = DefaultPnLInterval
	}
	return &PnLTracker{
		store:    store,
		risk:     risk,
		interval: interval,
		logger:   logger.Named("pnl"),
		marks:    make(map[state.SymbolVenue]decimal.Decimal),
	}
}

// Mark выполняет одну переоценку и возвращает переданную дельту.
// Не потокобезопасен: вызывается из одной горутины.
func (t *PnLTracker) Mark() decimal.Decimal {
	delta := decimal.Zero
	seen := make(map[state.SymbolVenue]struct{}, len(t.marks))

	for _, p := range t.store.Positions.Snapshot() {
		key := state.SymbolVenue{Symbol: p.Symbol, Venue: p.Venue}
		seen[key] = struct{}{}

		md, ok := t.store.MarketData.Get(key)
		if !ok {
			continue
		}
		pnl := utils.CalculatePNL(p.Side == models.SideLong, p.EntryPrice, md.Price, p.Size)
		delta = delta.Add(pnl.Sub(t.marks[key]))
		t.marks[key] = pnl
	}

	for key := range t.marks {
		if _, ok := seen[key]; !ok {
			delete(t.marks, key)
		}
	}

	if !delta.IsZero() {
		t.risk.UpdateDailyPnl(delta)
		t.logger.Debug("Positions marked to market",
			zap.Stringer("delta", delta),
			zap.Int("positions", len(t.marks)))
	}
	return delta
}

// Run переоценивает позиции каждый интервал до отмены контекста
func (t *PnLTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Mark()
		}
	}
}
