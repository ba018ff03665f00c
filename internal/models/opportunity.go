package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyKind - тип стратегии
type StrategyKind string

const (
	StrategyFundingArb StrategyKind = "funding_arb"
	StrategySpotSpread StrategyKind = "spot_spread"
	StrategyRoundTrip  StrategyKind = "round_trip"
)

// ArbitrageOpportunity - обнаруженная возможность арбитража
//
// Эфемерна: логируется, публикуется в уведомления и хранится
// только в ограниченном кольце последних возможностей.
type ArbitrageOpportunity struct {
	Strategy        StrategyKind    `json:"strategy"`
	Symbol          string          `json:"symbol"`
	VenueA          Venue           `json:"venue_a"` // нога short / sell
	VenueB          Venue           `json:"venue_b"` // нога long / buy
	PriceA          decimal.Decimal `json:"price_a"`
	PriceB          decimal.Decimal `json:"price_b"`
	SpreadBps       int64           `json:"spread_bps"`
	EstimatedProfit decimal.Decimal `json:"estimated_profit"`
	DetectedAt      time.Time       `json:"detected_at"`
}
