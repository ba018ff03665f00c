package handlers

import (
	"net/http"
	"sort"

	"arbd/internal/models"
	"arbd/internal/state"
)

// Лимиты выдачи списков
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// PositionsResponse - ответ GET /api/positions
type PositionsResponse struct {
	Positions []*models.Position `json:"positions"`
}

// OpportunitiesResponse - ответ GET /api/opportunities
type OpportunitiesResponse struct {
	Opportunities []models.ArbitrageOpportunity `json:"opportunities"`
}

// TradesResponse - ответ GET /api/trades
type TradesResponse struct {
	Trades []*models.Trade `json:"trades"`
}

// MarketResponse - ответ GET /api/market
type MarketResponse struct {
	MarketData []*models.MarketData `json:"market_data"`
}

// FundingResponse - ответ GET /api/funding
type FundingResponse struct {
	FundingRates []*models.FundingRate `json:"funding_rates"`
}

// StateHandler отдаёт снимки общего хранилища.
//
// Endpoints:
// - GET /api/positions - открытые позиции
// - GET /api/opportunities?limit=N - последние возможности, новые первыми
// - GET /api/trades?limit=N - последние сделки, новые первыми
// - GET /api/market - последние цены
// - GET /api/funding - последние ставки финансирования
//
// Списки по (symbol, venue) упорядочены по символу, затем по площадке.
type StateHandler struct {
	store *state.Store
}

// NewStateHandler создает StateHandler
func NewStateHandler(store *state.Store) *StateHandler {
	return &StateHandler{store: store}
}

func (h *StateHandler) ready(w http.ResponseWriter) bool {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "not_initialized", "state store not initialized")
		return false
	}
	return true
}

// GetPositions возвращает открытые позиции.
//
// GET /api/positions
//
// Response 200 OK:
//
//	{"positions": [{"symbol": "BTC", "venue": "bybit", "side": "long", "size": "0.02", ...}]}
func (h *StateHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	positions := h.store.Positions.Snapshot()
	sort.Slice(positions, func(i, j int) bool {
		return lessSymbolVenue(positions[i].Symbol, positions[i].Venue, positions[j].Symbol, positions[j].Venue)
	})
	writeJSON(w, http.StatusOK, PositionsResponse{Positions: positions})
}

// GetOpportunities возвращает последние возможности.
//
// GET /api/opportunities?limit=50
//
// Response 400 Bad Request:
//
//	{"error": "limit must be a positive integer", "code": "invalid_limit"}
func (h *StateHandler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	limit, ok := parseLimit(r, DefaultListLimit, MaxListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, OpportunitiesResponse{Opportunities: h.store.Opportunities.Recent(limit)})
}

// GetTrades возвращает последние сделки.
//
// GET /api/trades?limit=50
func (h *StateHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	limit, ok := parseLimit(r, DefaultListLimit, MaxListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return
	}

	trades := h.store.Trades.Snapshot()
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].ObservedAt.Equal(trades[j].ObservedAt) {
			return trades[i].ObservedAt.After(trades[j].ObservedAt)
		}
		return trades[i].ID < trades[j].ID
	})
	if len(trades) > limit {
		trades = trades[:limit]
	}
	writeJSON(w, http.StatusOK, TradesResponse{Trades: trades})
}

// GetMarket возвращает последние цены.
//
// GET /api/market
func (h *StateHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	data := h.store.MarketData.Snapshot()
	sort.Slice(data, func(i, j int) bool {
		return lessSymbolVenue(data[i].Symbol, data[i].Venue, data[j].Symbol, data[j].Venue)
	})
	writeJSON(w, http.StatusOK, MarketResponse{MarketData: data})
}

// GetFunding возвращает последние ставки финансирования.
//
// GET /api/funding
func (h *StateHandler) GetFunding(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	rates := h.store.FundingRates.Snapshot()
	sort.Slice(rates, func(i, j int) bool {
		return lessSymbolVenue(rates[i].Symbol, rates[i].Venue, rates[j].Symbol, rates[j].Venue)
	})
	writeJSON(w, http.StatusOK, FundingResponse{FundingRates: rates})
}

func lessSymbolVenue(s1 string, v1 models.Venue, s2 string, v2 models.Venue) bool {
	if s1 != s2 {
		return s1 < s2
	}
	return v1 < v2
}
