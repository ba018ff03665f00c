package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbd/internal/exchange"
	"arbd/internal/models"
	"arbd/internal/state"
)

func rate(venue models.Venue, r string) *models.FundingRate {
	return &models.FundingRate{Symbol: "BTCUSDT", Venue: venue, Rate: d(r)}
}

// ============================================================
// Детектор
// ============================================================

func TestDetectFundingSpread(t *testing.T) {
	tests := []struct {
		name       string
		rates      []*models.FundingRate
		min        string
		wantOK     bool
		wantShort  models.Venue
		wantLong   models.Venue
		annualized string
	}{
		{
			name: "three venues",
			rates: []*models.FundingRate{
				rate(models.VenueHyperliquid, "0.0010"),
				rate(models.VenueBinance, "0.0005"),
				rate(models.VenueBybit, "-0.0008"),
			},
			min:        "0.05",
			wantOK:     true,
			wantShort:  models.VenueHyperliquid,
			wantLong:   models.VenueBybit,
			annualized: "1.971",
		},
		{
			name: "below threshold",
			rates: []*models.FundingRate{
				rate(models.VenueHyperliquid, "0.00010"),
				rate(models.VenueBinance, "0.00009"),
			},
			min:        "0.05",
			wantOK:     false,
			wantShort:  models.VenueHyperliquid,
			wantLong:   models.VenueBinance,
			annualized: "0.01095",
		},
		{
			name: "equal to threshold passes",
			rates: []*models.FundingRate{
				rate(models.VenueHyperliquid, "0.0002"),
				rate(models.VenueBinance, "0.0001"),
			},
			min:        "0.1095",
			wantOK:     true,
			wantShort:  models.VenueHyperliquid,
			wantLong:   models.VenueBinance,
			annualized: "0.1095",
		},
		{
			name: "ties go to first venue",
			rates: []*models.FundingRate{
				rate(models.VenueHyperliquid, "0.0003"),
				rate(models.VenueBinance, "0.0003"),
				rate(models.VenueBybit, "0.0001"),
				rate(models.VenueHyperEVM, "0.0001"),
			},
			min:        "0",
			wantOK:     true,
			wantShort:  models.VenueHyperliquid,
			wantLong:   models.VenueBybit,
			annualized: "0.219",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := DetectFundingSpread(tt.rates, d(tt.min))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if sig.Short.Venue != tt.wantShort {
				t.Errorf("short = %s, want %s", sig.Short.Venue, tt.wantShort)
			}
			if sig.Long.Venue != tt.wantLong {
				t.Errorf("long = %s, want %s", sig.Long.Venue, tt.wantLong)
			}
			if !sig.Annualized.Equal(d(tt.annualized)) {
				t.Errorf("annualized = %s, want %s", sig.Annualized, tt.annualized)
			}
		})
	}
}

func TestDetectFundingSpreadNeedsTwoRates(t *testing.T) {
	if _, ok := DetectFundingSpread([]*models.FundingRate{rate(models.VenueBinance, "0.01")}, decimal.Zero); ok {
		t.Error("single rate must not produce a signal")
	}
	if _, ok := DetectFundingSpread(nil, decimal.Zero); ok {
		t.Error("no rates must not produce a signal")
	}
}

// ============================================================
// Discovery
// ============================================================

func TestIntersectOrdered(t *testing.T) {
	got := intersectOrdered([][]string{
		{"BTC", "ETH", "SOL", "BTC"},
		{"SOL", "ETH", "BTC"},
		{"ETH", "BTC", "DOGE"},
	})
	want := []string{"BTC", "ETH"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func fundingVenues() (*exchange.Paper, *exchange.Paper, *exchange.Paper) {
	hl := newPaper(models.VenueHyperliquid,
		paperMarket("BTC", "50000", "0.0010", "300"),
		paperMarket("ETH", "3000", "0.0002", "200"),
		paperMarket("SOL", "150", "0.0001", "100"),
	)
	binance := newPaper(models.VenueBinance,
		paperMarket("ETH", "3001", "0.0002", "900"),
		paperMarket("BTC", "50010", "0.0005", "800"),
		paperMarket("DOGE", "0.1", "0.0001", "700"),
	)
	bybit := newPaper(models.VenueBybit,
		paperMarket("BTC", "49990", "-0.0008", "500"),
		paperMarket("ETH", "2999", "0.0002", "400"),
		paperMarket("XRP", "0.5", "0.0001", "300"),
	)
	return hl, binance, bybit
}

func newFundingArb(env *testEnv, venues ...exchange.Adapter) *FundingArb {
	return NewFundingArb(venues, FundingArbConfig{
		MinAnnualizedSpread: d("0.05"),
		Interval:            time.Millisecond,
		TopSymbols:          10,
		PositionNotional:    d("1000"),
	}, env.exec, nopLogger())
}

func TestFundingDiscoverIntersection(t *testing.T) {
	hl, binance, bybit := fundingVenues()
	f := newFundingArb(newTestEnv(true), hl, binance, bybit)

	got, err := f.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 2 || got[0] != "BTC" || got[1] != "ETH" {
		t.Errorf("got %v, want [BTC ETH] in first venue order", got)
	}
}

func TestFundingDiscoverFallback(t *testing.T) {
	hl := newPaper(models.VenueHyperliquid, paperMarket("BTC", "1", "0", "2"), paperMarket("ETH", "1", "0", "1"))
	binance := newPaper(models.VenueBinance, paperMarket("DOGE", "1", "0", "1"))
	f := newFundingArb(newTestEnv(true), hl, binance)

	got, err := f.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 2 || got[0] != "BTC" || got[1] != "ETH" {
		t.Errorf("empty intersection must fall back to first venue list, got %v", got)
	}
}

func TestFundingDiscoverFailure(t *testing.T) {
	hl, binance, bybit := fundingVenues()
	binance.FailReads(errors.New("connection reset"))
	f := newFundingArb(newTestEnv(true), hl, binance, bybit)

	if _, err := f.Discover(context.Background()); err == nil {
		t.Fatal("expected discovery error")
	}
}

// ============================================================
// Evaluate
// ============================================================

func TestFundingEvaluateDryRun(t *testing.T) {
	env := newTestEnv(true)
	hl, binance, bybit := fundingVenues()
	f := newFundingArb(env, hl, binance, bybit)

	if err := f.Evaluate(context.Background(), "BTC"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	for _, v := range []models.Venue{models.VenueHyperliquid, models.VenueBinance, models.VenueBybit} {
		key := state.SymbolVenue{Symbol: "BTC", Venue: v}
		if _, ok := env.store.FundingRates.Get(key); !ok {
			t.Errorf("funding rate for %s must be stored", v)
		}
		if _, ok := env.store.MarketData.Get(key); !ok {
			t.Errorf("market data for %s must be stored", v)
		}
	}

	opps := env.store.Opportunities.Recent(1)
	if len(opps) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(opps))
	}
	opp := opps[0]
	if opp.VenueA != models.VenueHyperliquid || opp.VenueB != models.VenueBybit {
		t.Errorf("short/long = %s/%s, want hyperliquid/bybit", opp.VenueA, opp.VenueB)
	}
	if opp.SpreadBps != 19710 {
		t.Errorf("spread_bps = %d, want 19710", opp.SpreadBps)
	}

	if len(hl.Orders())+len(binance.Orders())+len(bybit.Orders()) != 0 {
		t.Error("dry run must not place orders")
	}
	if env.store.Trades.Len() != 0 || env.store.Positions.Len() != 0 {
		t.Error("dry run must not create trades or positions")
	}
	snap := env.risk.Snapshot()
	if len(snap.PositionCounts) != 0 || len(snap.NotionalExposure) != 0 {
		t.Errorf("dry run must not touch risk counters, got %+v", snap)
	}
}

func TestFundingEvaluateTieFollowsVenueOrder(t *testing.T) {
	env := newTestEnv(true)
	bybit := newPaper(models.VenueBybit, paperMarket("BTC", "50000", "0.0010", "1"))
	binance := newPaper(models.VenueBinance, paperMarket("BTC", "50000", "0.0010", "1"))
	hl := newPaper(models.VenueHyperliquid, paperMarket("BTC", "50000", "-0.0008", "1"))
	// конфигурация перечисляет площадки не в порядке перечисления
	f := newFundingArb(env, bybit, binance, hl)

	if err := f.Evaluate(context.Background(), "BTC"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	opps := env.store.Opportunities.Recent(1)
	if len(opps) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(opps))
	}
	if opps[0].VenueA != models.VenueBinance || opps[0].VenueB != models.VenueHyperliquid {
		t.Errorf("short/long = %s/%s, want binance/hyperliquid", opps[0].VenueA, opps[0].VenueB)
	}
}

func TestFundingDiscoverFallbackUsesConfiguredOrder(t *testing.T) {
	bybit := newPaper(models.VenueBybit, paperMarket("XRP", "1", "0", "1"))
	hl := newPaper(models.VenueHyperliquid, paperMarket("BTC", "1", "0", "1"))
	f := newFundingArb(newTestEnv(true), bybit, hl)

	got, err := f.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 1 || got[0] != "XRP" {
		t.Errorf("fallback must use first configured venue, got %v", got)
	}
}

func TestFundingEvaluateLive(t *testing.T) {
	env := newTestEnv(false)
	hl, binance, bybit := fundingVenues()
	f := newFundingArb(env, hl, binance, bybit)

	if err := f.Evaluate(context.Background(), "BTC"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	short, ok := env.store.Positions.Get(state.SymbolVenue{Symbol: "BTC", Venue: models.VenueHyperliquid})
	if !ok || short.Side != models.SideShort {
		t.Fatalf("expected short position on hyperliquid, got %+v", short)
	}
	long, ok := env.store.Positions.Get(state.SymbolVenue{Symbol: "BTC", Venue: models.VenueBybit})
	if !ok || long.Side != models.SideLong {
		t.Fatalf("expected long position on bybit, got %+v", long)
	}
	if !short.Size.Equal(d("0.02")) {
		t.Errorf("short size = %s, want 0.02", short.Size)
	}
	if len(binance.Orders()) != 0 {
		t.Error("middle venue must not trade")
	}
	if got := env.risk.Exposure("BTC"); got.LessThan(d("1999")) || got.GreaterThan(d("2001")) {
		t.Errorf("exposure = %s, want about 2000", got)
	}
}

func TestFundingEvaluateNoSignal(t *testing.T) {
	env := newTestEnv(false)
	hl, binance, bybit := fundingVenues()
	f := newFundingArb(env, hl, binance, bybit)

	// ETH: одинаковые ставки на всех площадках
	if err := f.Evaluate(context.Background(), "ETH"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if env.store.Opportunities.Len() != 0 {
		t.Error("flat funding must not produce an opportunity")
	}
	if env.store.FundingRates.Len() != 3 {
		t.Errorf("rates must be stored even without a signal, got %d", env.store.FundingRates.Len())
	}
}

func TestFundingEvaluateVenueError(t *testing.T) {
	env := newTestEnv(true)
	hl, binance, bybit := fundingVenues()
	f := newFundingArb(env, hl, binance, bybit)

	if err := f.Evaluate(context.Background(), "SOL"); err == nil {
		t.Fatal("symbol missing on a venue must fail evaluation")
	}
}

func TestSizeForNotional(t *testing.T) {
	size, err := sizeForNotional(d("1000"), d("3000"))
	if err != nil {
		t.Fatal(err)
	}
	if !size.Equal(d("0.33333333")) {
		t.Errorf("size = %s, want 0.33333333", size)
	}
	if _, err := sizeForNotional(d("1000"), decimal.Zero); err == nil {
		t.Error("zero price must fail")
	}
}
