package bot

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

// ============ Риск ============

// RiskRejections - отказы риск-движка по причине
var RiskRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "risk",
		Name:      "rejections_total",
		Help:      "Trades rejected by the risk engine",
	},
	[]string{"venue", "reason"}, // kill_switch, daily_loss, max_positions, max_notional
)

// KillSwitchActive - 1 если kill switch взведён
var KillSwitchActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "risk",
		Name:      "kill_switch_active",
		Help:      "Kill switch state (1=active, 0=inactive)",
	},
)

// DailyPnl - текущий дневной PNL в USDT
var DailyPnl = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "risk",
		Name:      "daily_pnl_usdt",
		Help:      "Running daily PnL in USDT",
	},
)

// NotionalExposure - экспозиция по активу
var NotionalExposure = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "risk",
		Name:      "notional_exposure",
		Help:      "Accumulated notional exposure per asset",
	},
	[]string{"symbol"},
)

// OpenPositions - открытые позиции по площадке
var OpenPositions = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "risk",
		Name:      "open_positions",
		Help:      "Open position count per venue",
	},
	[]string{"venue"},
)

// ============ Стратегии ============

// OpportunitiesDetected - возможности, прошедшие порог
var OpportunitiesDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "strategy",
		Name:      "opportunities_total",
		Help:      "Opportunities that cleared the strategy threshold",
	},
	[]string{"strategy", "symbol"},
)

// SpreadObserved - наблюдаемый сигнал в bps (годовой спред funding × 10000 для funding_arb)
var SpreadObserved = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "strategy",
		Name:      "spread_observed_bps",
		Help:      "Observed detector signal in basis points",
		Buckets:   []float64{-50, 0, 5, 10, 20, 50, 100, 500, 1000, 5000, 20000},
	},
	[]string{"strategy"},
)

// EvaluationErrors - ошибки оценки цели (символа/маршрута)
var EvaluationErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "strategy",
		Name:      "evaluation_errors_total",
		Help:      "Per-target evaluation failures",
	},
	[]string{"strategy"},
)

// PollDuration - длительность одной итерации опроса
var PollDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "strategy",
		Name:      "poll_duration_seconds",
		Help:      "Duration of one polling iteration over all targets",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"strategy"},
)

// StrategyRunning - 1 пока цикл стратегии работает
var StrategyRunning = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "strategy",
		Name:      "running",
		Help:      "Strategy loop state (1=running, 0=stopped)",
	},
	[]string{"strategy"},
)

// ============ Исполнение ============

// TradesTotal - сделки по результату
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Placed legs by venue and result",
	},
	[]string{"venue", "result"}, // recorded, rejected_risk, not_filled, failed
)

// OrderExecutionLatency - время размещения ноги в миллисекундах
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "order_execution_latency_ms",
		Help:      "Time to place one leg on a venue in milliseconds",
		Buckets:   []float64{5, 10, 50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"venue", "side"},
)

// GoroutineCount - количество горутин
var GoroutineCount = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "runtime",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	},
)

// RecordOrderLatency записывает время размещения ноги
func RecordOrderLatency(venue, side string, d time.Duration) {
	OrderExecutionLatency.WithLabelValues(venue, side).Observe(float64(d.Microseconds()) / 1000)
}

// UpdateRuntimeMetrics обновляет runtime метрики
func UpdateRuntimeMetrics() {
	GoroutineCount.Set(float64(runtime.NumGoroutine()))
}
