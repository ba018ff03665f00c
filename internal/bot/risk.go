package bot

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/config"
	"arbd/internal/models"
	"arbd/pkg/utils"
)

// Ошибки риск-движка. Все восстанавливаемые: стратегия логирует и пропускает сделку.
var (
	ErrKillSwitchActive           = errors.New("kill switch is active")
	ErrDailyLossThresholdExceeded = errors.New("daily loss threshold exceeded")
	ErrMaxPositionsExceeded       = errors.New("maximum positions exceeded for venue")
	ErrMaxNotionalExceeded        = errors.New("maximum notional exposure exceeded for asset")
)

// RiskLimits - лимиты риск-движка
type RiskLimits struct {
	MaxNotionalPerAsset          decimal.Decimal
	MaxOpenPositionsPerVenue     int
	MaxLeverage                  decimal.Decimal
	KillSwitchDailyLossThreshold decimal.Decimal // отрицательное значение
}

// LimitsFromConfig переводит конфигурацию в decimal лимиты
func LimitsFromConfig(c config.RiskConfig) RiskLimits {
	return RiskLimits{
		MaxNotionalPerAsset:          decimal.NewFromFloat(c.MaxNotionalPerAsset),
		MaxOpenPositionsPerVenue:     c.MaxOpenPositionsPerVenue,
		MaxLeverage:                  decimal.NewFromFloat(c.MaxLeverage),
		KillSwitchDailyLossThreshold: decimal.NewFromFloat(c.KillSwitchDailyLossThreshold),
	}
}

// RiskEngine - централизованный гейт сделок
//
// Состояние:
// - dailyPnl: дневной PNL
// - positionCounts: открытые позиции по площадке
// - notionalExposure: экспозиция по активу (size × price)
// - killSwitch: глобальный стоп, держится до ResetDailyPnl
//
// Каждое поле под собственным RWMutex: чтения статуса не блокируют друг друга и запись в соседние поля.
// CheckTrade и RecordTrade не атомарны как пара: конкурентные сделки могут вклиниться между проверкой
// и записью, лимиты соблюдаются по принципу read-then-write.
type RiskEngine struct {
	limits RiskLimits
	logger *zap.Logger

	dailyPnl   decimal.Decimal
	dailyPnlMu sync.RWMutex

	positionCounts   map[models.Venue]int
	positionCountsMu sync.RWMutex

	notionalExposure   map[string]decimal.Decimal
	notionalExposureMu sync.RWMutex

	killSwitch   bool
	killSwitchMu sync.RWMutex
}

// NewRiskEngine создаёт риск-движок с нулевым состоянием
func NewRiskEngine(limits RiskLimits, logger *zap.Logger) *RiskEngine {
	return &RiskEngine{
		limits:           limits,
		logger:           logger.Named("risk"),
		positionCounts:   make(map[models.Venue]int),
		notionalExposure: make(map[string]decimal.Decimal),
	}
}

// Limits возвращает лимиты
func (re *RiskEngine) Limits() RiskLimits {
	return re.limits
}

// CheckTrade проверяет сделку. Порядок проверок фиксирован:
// kill switch → дневной убыток (взводит kill switch) → число позиций площадки → экспозиция актива.
// Единственная мутация - взвод kill switch.
func (re *RiskEngine) CheckTrade(trade *models.Trade) error {
	if err := re.check(trade); err != nil {
		RiskRejections.WithLabelValues(trade.Venue.String(), rejectionReason(err)).Inc()
		return err
	}
	return nil
}

func (re *RiskEngine) check(trade *models.Trade) error {
	if re.IsKillSwitchActive() {
		return ErrKillSwitchActive
	}

	re.dailyPnlMu.RLock()
	pnl := re.dailyPnl
	re.dailyPnlMu.RUnlock()

	if pnl.LessThan(re.limits.KillSwitchDailyLossThreshold) {
		re.activateKillSwitch(pnl)
		return ErrDailyLossThresholdExceeded
	}

	re.positionCountsMu.RLock()
	count := re.positionCounts[trade.Venue]
	re.positionCountsMu.RUnlock()

	if count >= re.limits.MaxOpenPositionsPerVenue {
		return ErrMaxPositionsExceeded
	}

	re.notionalExposureMu.RLock()
	current := re.notionalExposure[assetKey(trade.Symbol)]
	re.notionalExposureMu.RUnlock()

	// граница включительно: current + notional == max проходит
	if current.Add(trade.Notional()).GreaterThan(re.limits.MaxNotionalPerAsset) {
		return ErrMaxNotionalExceeded
	}

	return nil
}

func (re *RiskEngine) activateKillSwitch(pnl decimal.Decimal) {
	re.killSwitchMu.Lock()
	already := re.killSwitch
	re.killSwitch = true
	re.killSwitchMu.Unlock()

	KillSwitchActive.Set(1)
	if !already {
		re.logger.Error("Kill switch activated",
			zap.Stringer("daily_pnl", pnl),
			zap.Stringer("threshold", re.limits.KillSwitchDailyLossThreshold))
	}
}

// RecordTrade учитывает исполненную сделку. Сделки не в статусе Filled игнорируются.
// Вызывается только после успешного CheckTrade; порядок обеспечивает вызывающий.
func (re *RiskEngine) RecordTrade(trade *models.Trade) {
	if trade.Status != models.TradeStatusFilled {
		return
	}

	re.positionCountsMu.Lock()
	re.positionCounts[trade.Venue]++
	count := re.positionCounts[trade.Venue]
	re.positionCountsMu.Unlock()

	re.notionalExposureMu.Lock()
	asset := assetKey(trade.Symbol)
	exposure := re.notionalExposure[asset].Add(trade.Notional())
	re.notionalExposure[asset] = exposure
	re.notionalExposureMu.Unlock()

	OpenPositions.WithLabelValues(trade.Venue.String()).Set(float64(count))
	NotionalExposure.WithLabelValues(asset).Set(exposure.InexactFloat64())
}

// RecordPositionClosed освобождает позицию площадки и экспозицию актива, не уходя ниже нуля
func (re *RiskEngine) RecordPositionClosed(venue models.Venue, symbol string, notional decimal.Decimal) {
	re.positionCountsMu.Lock()
	if re.positionCounts[venue] > 0 {
		re.positionCounts[venue]--
	}
	count := re.positionCounts[venue]
	re.positionCountsMu.Unlock()

	asset := assetKey(symbol)
	re.notionalExposureMu.Lock()
	exposure := re.notionalExposure[asset].Sub(notional)
	if exposure.IsNegative() {
		exposure = decimal.Zero
	}
	re.notionalExposure[asset] = exposure
	re.notionalExposureMu.Unlock()

	OpenPositions.WithLabelValues(venue.String()).Set(float64(count))
	NotionalExposure.WithLabelValues(asset).Set(exposure.InexactFloat64())
}

// UpdateDailyPnl добавляет дельту (со знаком) к дневному PNL
func (re *RiskEngine) UpdateDailyPnl(delta decimal.Decimal) {
	re.dailyPnlMu.Lock()
	re.dailyPnl = re.dailyPnl.Add(delta)
	pnl := re.dailyPnl
	re.dailyPnlMu.Unlock()

	DailyPnl.Set(pnl.InexactFloat64())
}

// IsKillSwitchActive - чистое чтение
func (re *RiskEngine) IsKillSwitchActive() bool {
	re.killSwitchMu.RLock()
	defer re.killSwitchMu.RUnlock()
	return re.killSwitch
}

// ResetDailyPnl обнуляет дневной PNL и снимает kill switch
func (re *RiskEngine) ResetDailyPnl() {
	re.dailyPnlMu.Lock()
	re.dailyPnl = decimal.Zero
	re.dailyPnlMu.Unlock()

	re.killSwitchMu.Lock()
	re.killSwitch = false
	re.killSwitchMu.Unlock()

	DailyPnl.Set(0)
	KillSwitchActive.Set(0)
	re.logger.Info("Daily PnL reset, kill switch cleared")
}

// ============================================================
// Снимок состояния для API статуса
// ============================================================

// VenueCount - число позиций площадки
type VenueCount struct {
	Venue models.Venue `json:"venue"`
	Count int          `json:"count"`
}

// SymbolExposure - экспозиция актива
type SymbolExposure struct {
	Symbol   string          `json:"symbol"`
	Notional decimal.Decimal `json:"notional"`
}

// RiskSnapshot - согласованная по полям (но не между полями) копия состояния
type RiskSnapshot struct {
	DailyPnl         decimal.Decimal  `json:"daily_pnl"`
	KillSwitchActive bool             `json:"kill_switch_active"`
	PositionCounts   []VenueCount     `json:"position_counts"`
	NotionalExposure []SymbolExposure `json:"notional_exposure"`
	Limits           RiskLimitsView   `json:"limits"`
}

// RiskLimitsView - лимиты в JSON
type RiskLimitsView struct {
	MaxNotionalPerAsset          decimal.Decimal `json:"max_notional_per_asset"`
	MaxOpenPositionsPerVenue     int             `json:"max_open_positions_per_venue"`
	MaxLeverage                  decimal.Decimal `json:"max_leverage"`
	KillSwitchDailyLossThreshold decimal.Decimal `json:"kill_switch_daily_loss_threshold"`
}

// Snapshot возвращает копию состояния, упорядоченную по площадке и символу
func (re *RiskEngine) Snapshot() RiskSnapshot {
	snap := RiskSnapshot{
		KillSwitchActive: re.IsKillSwitchActive(),
		Limits: RiskLimitsView{
			MaxNotionalPerAsset:          re.limits.MaxNotionalPerAsset,
			MaxOpenPositionsPerVenue:     re.limits.MaxOpenPositionsPerVenue,
			MaxLeverage:                  re.limits.MaxLeverage,
			KillSwitchDailyLossThreshold: re.limits.KillSwitchDailyLossThreshold,
		},
	}

	re.dailyPnlMu.RLock()
	snap.DailyPnl = re.dailyPnl
	re.dailyPnlMu.RUnlock()

	re.positionCountsMu.RLock()
	for v, c := range re.positionCounts {
		snap.PositionCounts = append(snap.PositionCounts, VenueCount{Venue: v, Count: c})
	}
	re.positionCountsMu.RUnlock()
	sort.Slice(snap.PositionCounts, func(i, j int) bool {
		return snap.PositionCounts[i].Venue < snap.PositionCounts[j].Venue
	})

	re.notionalExposureMu.RLock()
	for s, n := range re.notionalExposure {
		snap.NotionalExposure = append(snap.NotionalExposure, SymbolExposure{Symbol: s, Notional: n})
	}
	re.notionalExposureMu.RUnlock()
	sort.Slice(snap.NotionalExposure, func(i, j int) bool {
		return snap.NotionalExposure[i].Symbol < snap.NotionalExposure[j].Symbol
	})

	return snap
}

// PositionCount возвращает число открытых позиций площадки
func (re *RiskEngine) PositionCount(venue models.Venue) int {
	re.positionCountsMu.RLock()
	defer re.positionCountsMu.RUnlock()
	return re.positionCounts[venue]
}

// Exposure возвращает экспозицию актива; пара BASE-QUOTE учитывается по BASE
func (re *RiskEngine) Exposure(symbol string) decimal.Decimal {
	re.notionalExposureMu.RLock()
	defer re.notionalExposureMu.RUnlock()
	return re.notionalExposure[assetKey(symbol)]
}

// assetKey - ключ риск-бакета: базовый актив пары или сам символ
func assetKey(symbol string) string {
	if base, _, err := utils.SplitPair(symbol); err == nil {
		return base
	}
	return symbol
}

// ============================================================
// Ежедневный сброс
// ============================================================

// RunDailyReset вызывает ResetDailyPnl каждый день в полночь UTC + offset, до отмены контекста
func (re *RiskEngine) RunDailyReset(ctx context.Context, offset time.Duration) {
	re.runDailyReset(ctx, func(now time.Time) time.Time {
		return utils.NextDailyBoundary(now, offset)
	})
}

func (re *RiskEngine) runDailyReset(ctx context.Context, next func(now time.Time) time.Time) {
	for {
		at := next(time.Now())
		re.logger.Debug("Next daily reset scheduled", zap.Time("at", at), zap.String("in", utils.FormatDuration(time.Until(at))))

		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			re.ResetDailyPnl()
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrKillSwitchActive):
		return "kill_switch"
	case errors.Is(err, ErrDailyLossThresholdExceeded):
		return "daily_loss"
	case errors.Is(err, ErrMaxPositionsExceeded):
		return "max_positions"
	case errors.Is(err, ErrMaxNotionalExceeded):
		return "max_notional"
	default:
		return "other"
	}
}
