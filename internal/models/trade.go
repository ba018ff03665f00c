package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side - направление позиции/ордера
type Side string

const (
	SideLong  Side = "long"  // покупка
	SideShort Side = "short" // продажа
)

// Opposite возвращает противоположное направление
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// ParseSide разбирает направление ("long"/"buy", "short"/"sell")
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "long", "buy":
		return SideLong, nil
	case "short", "sell":
		return SideShort, nil
	}
	return "", fmt.Errorf("unknown side: %q", s)
}

// TradeStatus - статус сделки, как его сообщила площадка
type TradeStatus string

const (
	TradeStatusPending  TradeStatus = "pending"
	TradeStatusFilled   TradeStatus = "filled"
	TradeStatusRejected TradeStatus = "rejected"
	TradeStatusFailed   TradeStatus = "failed"
)

// Terminal - статус окончательный (ордер больше не изменится)
func (s TradeStatus) Terminal() bool {
	return s == TradeStatusFilled || s == TradeStatusRejected || s == TradeStatusFailed
}

// Trade - результат размещения ордера на площадке
// Создаётся адаптером площадки и дальше не изменяется
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Venue      Venue           `json:"venue"`
	Side       Side            `json:"side"`
	Size       decimal.Decimal `json:"size"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
	Status     TradeStatus     `json:"status"`
}

// Notional - размер × цена
func (t *Trade) Notional() decimal.Decimal {
	return t.Size.Mul(t.Price)
}

// Position - открытая позиция на площадке
type Position struct {
	Symbol     string          `json:"symbol"`
	Venue      Venue           `json:"venue"`
	Side       Side            `json:"side"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Leverage   decimal.Decimal `json:"leverage"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// Notional - стоимость позиции по цене входа
func (p *Position) Notional() decimal.Decimal {
	return p.Size.Mul(p.EntryPrice)
}

// PositionFromTrade строит позицию из исполненной сделки
func PositionFromTrade(t *Trade, leverage decimal.Decimal) *Position {
	return &Position{
		Symbol:     t.Symbol,
		Venue:      t.Venue,
		Side:       t.Side,
		Size:       t.Size,
		EntryPrice: t.Price,
		Leverage:   leverage,
		OpenedAt:   t.ObservedAt,
	}
}
