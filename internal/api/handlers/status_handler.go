package handlers

import (
	"net/http"
	"time"

	"arbd/internal/bot"
	"arbd/internal/models"
)

// Значения поля status
const (
	StatusRunning = "running"
	StatusError   = "error" // взведён kill switch
)

// RiskReader - доступ к риск-движку только на чтение
type RiskReader interface {
	IsKillSwitchActive() bool
	Snapshot() bot.RiskSnapshot
}

// StatusResponse - ответ GET /api/status
type StatusResponse struct {
	Status           string                       `json:"status"`
	Strategies       map[models.StrategyKind]bool `json:"strategies"`
	KillSwitchActive bool                         `json:"kill_switch_active"`
	DryRun           bool                         `json:"dry_run"`
	Timestamp        string                       `json:"timestamp"`
}

// StatusHandler обрабатывает запросы состояния процесса и риск-движка.
//
// Endpoints:
// - GET /api/status - сводка: kill switch, dry run, включённые стратегии
// - GET /api/risk - счётчики и лимиты риск-движка
type StatusHandler struct {
	risk       RiskReader
	strategies map[models.StrategyKind]bool
	dryRun     bool

	now func() time.Time
}

// NewStatusHandler создает StatusHandler; strategies копируется
func NewStatusHandler(risk RiskReader, strategies map[models.StrategyKind]bool, dryRun bool) *StatusHandler {
	copied := make(map[models.StrategyKind]bool, len(strategies))
	for k, v := range strategies {
		copied[k] = v
	}
	return &StatusHandler{
		risk:       risk,
		strategies: copied,
		dryRun:     dryRun,
		now:        time.Now,
	}
}

// GetStatus возвращает сводку состояния.
//
// GET /api/status
//
// Response 200 OK:
//
//	{
//	  "status": "running",
//	  "strategies": {"funding_arb": true, "spot_spread": false, "round_trip": false},
//	  "kill_switch_active": false,
//	  "dry_run": true,
//	  "timestamp": "2025-12-01T12:00:00Z"
//	}
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.risk == nil {
		writeError(w, http.StatusInternalServerError, "not_initialized", "risk engine not initialized")
		return
	}

	active := h.risk.IsKillSwitchActive()
	status := StatusRunning
	if active {
		status = StatusError
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:           status,
		Strategies:       h.strategies,
		KillSwitchActive: active,
		DryRun:           h.dryRun,
		Timestamp:        h.now().UTC().Format(time.RFC3339),
	})
}

// GetRisk возвращает снимок риск-движка.
//
// GET /api/risk
//
// Response 200 OK:
//
//	{
//	  "daily_pnl": "-120.5",
//	  "kill_switch_active": false,
//	  "position_counts": [{"venue": "hyperliquid", "count": 1}],
//	  "notional_exposure": [{"symbol": "BTC", "notional": "1000"}],
//	  "limits": {...}
//	}
func (h *StatusHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	if h.risk == nil {
		writeError(w, http.StatusInternalServerError, "not_initialized", "risk engine not initialized")
		return
	}

	snap := h.risk.Snapshot()
	// Пустые массивы возвращаются как [], а не null
	if snap.PositionCounts == nil {
		snap.PositionCounts = []bot.VenueCount{}
	}
	if snap.NotionalExposure == nil {
		snap.NotionalExposure = []bot.SymbolExposure{}
	}
	writeJSON(w, http.StatusOK, snap)
}
