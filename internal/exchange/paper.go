package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arbd/internal/models"
	"arbd/pkg/utils"
)

// PaperMarket - начальное состояние рынка симулированной площадки
type PaperMarket struct {
	Symbol      string
	Price       decimal.Decimal
	FundingRate decimal.Decimal
	Volume      decimal.Decimal
}

// PaperRoute - маршрут обмена симулированного агрегатора
type PaperRoute struct {
	InputMint      string
	OutputMint     string
	Rate           decimal.Decimal // выход за единицу входа, в целых токенах
	InputDecimals  int32
	OutputDecimals int32
}

type routeKey struct {
	in, out string
}

// PaperOptions - параметры симуляции
type PaperOptions struct {
	Seed       int64
	Volatility float64 // относительный шаг случайного блуждания за чтение; 0 = статичные цены
	Markets    []PaperMarket
	Routes     []PaperRoute
}

// Paper - площадка в памяти: цены и ставки из конфигурации со случайным блужданием,
// ордера исполняются сразу по последней цене. Используется для локального запуска и тестов.
type Paper struct {
	venue      models.Venue
	volatility float64

	mu      sync.Mutex
	rng     *rand.Rand
	markets map[string]*PaperMarket
	routes  map[routeKey]PaperRoute
	orders  []*models.Trade

	rejectOrders bool
	failReads    error
	now          func() time.Time
}

// NewPaper создаёт симулированную площадку
func NewPaper(venue models.Venue, opts PaperOptions) *Paper {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Paper{
		venue:      venue,
		volatility: opts.Volatility,
		rng:        rand.New(rand.NewSource(seed)),
		markets:    make(map[string]*PaperMarket, len(opts.Markets)),
		routes:     make(map[routeKey]PaperRoute, len(opts.Routes)),
		now:        time.Now,
	}
	for _, m := range opts.Markets {
		m := m
		p.markets[m.Symbol] = &m
	}
	for _, r := range opts.Routes {
		p.routes[routeKey{r.InputMint, r.OutputMint}] = r
	}
	return p
}

// Venue возвращает площадку
func (p *Paper) Venue() models.Venue {
	return p.venue
}

// ============================================================
// Управление симуляцией
// ============================================================

// SetPrice задаёт цену символа (создаёт рынок при отсутствии)
func (p *Paper) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.market(symbol).Price = price
}

// SetFunding задаёт ставку финансирования символа
func (p *Paper) SetFunding(symbol string, rate decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.market(symbol).FundingRate = rate
}

// SetVolume задаёт объём символа для discovery
func (p *Paper) SetVolume(symbol string, volume decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.market(symbol).Volume = volume
}

// SetRoute задаёт маршрут обмена
func (p *Paper) SetRoute(r PaperRoute) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[routeKey{r.InputMint, r.OutputMint}] = r
}

// RejectOrders переключает ответ площадки на статус Rejected
func (p *Paper) RejectOrders(reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectOrders = reject
}

// FailReads заставляет все чтения возвращать ошибку (nil - снять)
func (p *Paper) FailReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failReads = err
}

// Orders возвращает копию размещённых ордеров
func (p *Paper) Orders() []*models.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Trade, len(p.orders))
	copy(out, p.orders)
	return out
}

// market вызывается под lock'ом
func (p *Paper) market(symbol string) *PaperMarket {
	m, ok := p.markets[symbol]
	if !ok {
		m = &PaperMarket{Symbol: symbol}
		p.markets[symbol] = m
	}
	return m
}

// lookup находит рынок и сдвигает цену на шаг блуждания. Вызывается под lock'ом.
func (p *Paper) lookup(op, symbol string) (*PaperMarket, error) {
	if p.failReads != nil {
		return nil, &VenueError{Venue: p.venue, Op: op, Original: p.failReads, Temporary: true}
	}
	m, ok := p.markets[symbol]
	if !ok {
		return nil, &VenueError{Venue: p.venue, Op: op, Code: "unknown_symbol", Message: fmt.Sprintf("unknown symbol %s", symbol)}
	}
	if p.volatility > 0 && m.Price.IsPositive() {
		step := decimal.NewFromFloat(1 + p.volatility*(p.rng.Float64()*2-1))
		m.Price = m.Price.Mul(step).Round(8)
	}
	return m, nil
}

// ============================================================
// Adapter
// ============================================================

// GetMarketData возвращает текущую цену
func (p *Paper) GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.lookup("get_market_data", symbol)
	if err != nil {
		return nil, err
	}
	return &models.MarketData{Symbol: symbol, Venue: p.venue, Price: m.Price, ObservedAt: p.now()}, nil
}

// GetFundingRate возвращает ставку финансирования
func (p *Paper) GetFundingRate(ctx context.Context, symbol string) (*models.FundingRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.lookup("get_funding_rate", symbol)
	if err != nil {
		return nil, err
	}
	return &models.FundingRate{Symbol: symbol, Venue: p.venue, Rate: m.FundingRate, ObservedAt: p.now()}, nil
}

// GetTopSymbolsByVolume - символы по убыванию объёма, при равенстве по алфавиту
func (p *Paper) GetTopSymbolsByVolume(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failReads != nil {
		return nil, &VenueError{Venue: p.venue, Op: "get_top_symbols", Original: p.failReads, Temporary: true}
	}

	list := make([]*PaperMarket, 0, len(p.markets))
	for _, m := range p.markets {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if c := list[i].Volume.Cmp(list[j].Volume); c != 0 {
			return c > 0
		}
		return list[i].Symbol < list[j].Symbol
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	symbols := make([]string, len(list))
	for i, m := range list {
		symbols[i] = m.Symbol
	}
	return symbols, nil
}

// PlaceOrder исполняет ордер по последней цене (price = 0 → рыночный)
func (p *Paper) PlaceOrder(ctx context.Context, symbol string, side models.Side, size, price decimal.Decimal) (*models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !size.IsPositive() {
		return nil, &VenueError{Venue: p.venue, Op: "place_order", Code: "invalid_size", Message: "size must be positive"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.markets[symbol]
	if !ok {
		return nil, &VenueError{Venue: p.venue, Op: "place_order", Code: "unknown_symbol", Message: fmt.Sprintf("unknown symbol %s", symbol)}
	}

	fill := m.Price
	if price.IsPositive() {
		fill = price
	}
	status := models.TradeStatusFilled
	if p.rejectOrders {
		status = models.TradeStatusRejected
	}

	trade := &models.Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Venue:      p.venue,
		Side:       side,
		Size:       size,
		Price:      fill,
		ObservedAt: p.now(),
		Status:     status,
	}
	p.orders = append(p.orders, trade)
	return trade, nil
}

// ============================================================
// Quoter / Swapper
// ============================================================

// GetQuote считает выход маршрута: amount / 10^in × rate × 10^out, с отбрасыванием остатка
func (p *Paper) GetQuote(ctx context.Context, inputMint, outputMint string, amount, slippageBps uint64) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failReads != nil {
		return nil, &VenueError{Venue: p.venue, Op: "get_quote", Original: p.failReads, Temporary: true}
	}
	r, ok := p.routes[routeKey{inputMint, outputMint}]
	if !ok {
		return nil, &VenueError{Venue: p.venue, Op: "get_quote", Code: "no_route", Message: fmt.Sprintf("no route %s -> %s", inputMint, outputMint)}
	}

	out := utils.FromUint64(amount).
		Shift(-r.InputDecimals).
		Mul(r.Rate).
		Shift(r.OutputDecimals).
		Floor()

	return &models.Quote{
		Venue:       p.venue,
		InputMint:   inputMint,
		OutputMint:  outputMint,
		InAmount:    amount,
		OutAmount:   utils.ToUint64(out),
		InDecimals:  r.InputDecimals,
		OutDecimals: r.OutputDecimals,
		SlippageBps: slippageBps,
		QuotedAt:    p.now(),
	}, nil
}

// ExecuteSwap исполняет обе котировки, по сделке на ногу
func (p *Paper) ExecuteSwap(ctx context.Context, forward, reverse *models.Quote) ([]*models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	status := models.TradeStatusFilled
	if p.rejectOrders {
		status = models.TradeStatusRejected
	}

	trades := make([]*models.Trade, 0, 2)
	for _, q := range []*models.Quote{forward, reverse} {
		t := &models.Trade{
			ID:         uuid.NewString(),
			Symbol:     q.Pair(),
			Venue:      p.venue,
			Side:       models.SideShort, // продаём input за output
			Size:       q.InUnits(),
			Price:      q.Price(),
			ObservedAt: p.now(),
			Status:     status,
		}
		p.orders = append(p.orders, t)
		trades = append(trades, t)
	}
	return trades, nil
}
