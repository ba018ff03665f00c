// Package state - общее in-memory хранилище последних рыночных данных,
// ставок финансирования, позиций и сделок.
//
// Бизнес-логики нет: только last-write-wins по ключу.
package state

import (
	"sync"

	"arbd/internal/models"
)

// Collection - типизированная обёртка над sync.Map
//
// sync.Map даёт мелкозернистую блокировку: запись по одному ключу
// не блокирует чтение и запись по другим ключам.
type Collection[K comparable, V any] struct {
	m sync.Map
}

// Upsert заменяет значение по ключу (или вставляет новое)
func (c *Collection[K, V]) Upsert(key K, value V) {
	c.m.Store(key, value)
}

// Get возвращает последнее значение по ключу
func (c *Collection[K, V]) Get(key K) (V, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Delete удаляет ключ
func (c *Collection[K, V]) Delete(key K) {
	c.m.Delete(key)
}

// Snapshot возвращает копию всех значений на момент обхода
// Порядок не определён
func (c *Collection[K, V]) Snapshot() []V {
	out := make([]V, 0)
	c.m.Range(func(_, v any) bool {
		out = append(out, v.(V))
		return true
	})
	return out
}

// Len - количество ключей (O(n))
func (c *Collection[K, V]) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// SymbolVenue - составной ключ (символ, площадка)
type SymbolVenue struct {
	Symbol string
	Venue  models.Venue
}

// Store - общее состояние процесса
//
// Передаётся по указателю в каждую стратегию и в API статуса.
// Значения хранятся указателями: после Upsert их нельзя изменять.
type Store struct {
	MarketData   Collection[SymbolVenue, *models.MarketData]
	FundingRates Collection[SymbolVenue, *models.FundingRate]

	// Позиции ключуются по (symbol, venue): у арбитража две ноги
	// одного символа на разных площадках
	Positions Collection[SymbolVenue, *models.Position]

	// Сделки по ID, присвоенному адаптером
	Trades Collection[string, *models.Trade]

	Opportunities *OpportunityLog
}

// NewStore создаёт хранилище; opportunityCap - ёмкость кольца возможностей
func NewStore(opportunityCap int) *Store {
	return &Store{
		Opportunities: NewOpportunityLog(opportunityCap),
	}
}

// UpsertMarketData сохраняет цену
func (s *Store) UpsertMarketData(md *models.MarketData) {
	s.MarketData.Upsert(SymbolVenue{Symbol: md.Symbol, Venue: md.Venue}, md)
}

// UpsertFundingRate сохраняет ставку финансирования
func (s *Store) UpsertFundingRate(fr *models.FundingRate) {
	s.FundingRates.Upsert(SymbolVenue{Symbol: fr.Symbol, Venue: fr.Venue}, fr)
}

// UpsertPosition сохраняет позицию
func (s *Store) UpsertPosition(p *models.Position) {
	s.Positions.Upsert(SymbolVenue{Symbol: p.Symbol, Venue: p.Venue}, p)
}

// UpsertTrade сохраняет сделку
func (s *Store) UpsertTrade(t *models.Trade) {
	s.Trades.Upsert(t.ID, t)
}
