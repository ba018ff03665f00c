package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/exchange"
	"arbd/internal/models"
	"arbd/internal/notify"
	"arbd/internal/state"
)

// recordingPublisher запоминает опубликованные события
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(t notify.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type testEnv struct {
	risk  *RiskEngine
	store *state.Store
	pub   *recordingPublisher
	exec  *Executor
}

func newTestEnv(dryRun bool) *testEnv {
	risk := newTestRisk()
	store := state.NewStore(50)
	pub := &recordingPublisher{}
	return &testEnv{
		risk:  risk,
		store: store,
		pub:   pub,
		exec:  NewExecutor(risk, store, pub, dryRun, zap.NewNop()),
	}
}

// paperMarket - рынок paper-площадки со статичной ценой
func paperMarket(symbol, price, funding, volume string) exchange.PaperMarket {
	return exchange.PaperMarket{
		Symbol:      symbol,
		Price:       d(price),
		FundingRate: d(funding),
		Volume:      d(volume),
	}
}

func newPaper(venue models.Venue, markets ...exchange.PaperMarket) *exchange.Paper {
	return exchange.NewPaper(venue, exchange.PaperOptions{Seed: 1, Markets: markets})
}

// stubStrategy - стратегия с заданными целями, считает вызовы Evaluate
type stubStrategy struct {
	kind        models.StrategyKind
	interval    time.Duration
	targets     []string
	discoverErr error
	evalErr     error
	evaluated   atomic.Int32
}

func (s *stubStrategy) Kind() models.StrategyKind { return s.kind }

func (s *stubStrategy) Interval() time.Duration { return s.interval }

func (s *stubStrategy) Discover(context.Context) ([]string, error) {
	if s.discoverErr != nil {
		return nil, s.discoverErr
	}
	return s.targets, nil
}

func (s *stubStrategy) Evaluate(context.Context, string) error {
	s.evaluated.Add(1)
	return s.evalErr
}

// priceOnlyAdapter - площадка без котировок и обменов
type priceOnlyAdapter struct {
	venue models.Venue
}

func (a priceOnlyAdapter) Venue() models.Venue { return a.venue }

func (a priceOnlyAdapter) GetMarketData(context.Context, string) (*models.MarketData, error) {
	return nil, exchange.ErrNotSupported
}

func (a priceOnlyAdapter) GetFundingRate(context.Context, string) (*models.FundingRate, error) {
	return nil, exchange.ErrNotSupported
}

func (a priceOnlyAdapter) GetTopSymbolsByVolume(context.Context, int) ([]string, error) {
	return nil, exchange.ErrNotSupported
}

func (a priceOnlyAdapter) PlaceOrder(context.Context, string, models.Side, decimal.Decimal, decimal.Decimal) (*models.Trade, error) {
	return nil, exchange.ErrNotSupported
}

// waitFor опрашивает условие до таймаута
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
