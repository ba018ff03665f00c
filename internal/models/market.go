package models

import (
	"time"

	"github.com/shopspring/decimal"

	"arbd/pkg/utils"
)

// MarketData - последняя наблюдаемая цена символа на площадке
// Одна запись на (symbol, venue), новое наблюдение перезаписывает старое
type MarketData struct {
	Symbol     string          `json:"symbol"`
	Venue      Venue           `json:"venue"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// FundingRate - ставка финансирования бессрочного контракта
type FundingRate struct {
	Symbol        string           `json:"symbol"`
	Venue         Venue            `json:"venue"`
	Rate          decimal.Decimal  `json:"rate"`                     // ставка за один период (8ч)
	PredictedRate *decimal.Decimal `json:"predicted_rate,omitempty"` // прогноз следующего периода, если площадка отдаёт
	ObservedAt    time.Time        `json:"observed_at"`
}

// Quote - котировка обмена на агрегаторе (round-trip стратегия)
type Quote struct {
	Venue       Venue     `json:"venue"`
	InputMint   string    `json:"input_mint"`
	OutputMint  string    `json:"output_mint"`
	InAmount    uint64    `json:"in_amount"`
	OutAmount   uint64    `json:"out_amount"`
	InDecimals  int32     `json:"in_decimals"`
	OutDecimals int32     `json:"out_decimals"`
	SlippageBps uint64    `json:"slippage_bps"`
	QuotedAt    time.Time `json:"quoted_at"`
}

// Pair - ключ маршрута "input/output" для стора и сделок
func (q *Quote) Pair() string {
	return q.InputMint + "/" + q.OutputMint
}

// InUnits - вход в целых токенах
func (q *Quote) InUnits() decimal.Decimal {
	return utils.FromUint64(q.InAmount).Shift(-q.InDecimals)
}

// OutUnits - выход в целых токенах
func (q *Quote) OutUnits() decimal.Decimal {
	return utils.FromUint64(q.OutAmount).Shift(-q.OutDecimals)
}

// Price возвращает цену выхода за единицу входа в целых токенах
func (q *Quote) Price() decimal.Decimal {
	if q.InAmount == 0 {
		return decimal.Zero
	}
	return q.OutUnits().Div(q.InUnits())
}
