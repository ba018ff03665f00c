package bot

import (
	"context"
	"testing"

	"arbd/internal/models"
	"arbd/internal/notify"
	"arbd/internal/state"
)

func TestExecuteLegsRecordsFilledTrade(t *testing.T) {
	env := newTestEnv(false)
	binance := newPaper(models.VenueBinance, paperMarket("BTCUSDT", "50000", "0", "1"))

	recorded := env.exec.ExecuteLegs(context.Background(),
		Leg{Adapter: binance, Symbol: "BTCUSDT", Side: models.SideLong, Size: d("0.1")})

	if len(recorded) != 1 {
		t.Fatalf("expected 1 recorded trade, got %d", len(recorded))
	}
	trade := recorded[0]
	if _, ok := env.store.Trades.Get(trade.ID); !ok {
		t.Error("trade must be stored")
	}

	pos, ok := env.store.Positions.Get(state.SymbolVenue{Symbol: "BTCUSDT", Venue: models.VenueBinance})
	if !ok {
		t.Fatal("position must be stored")
	}
	if !pos.Size.Equal(d("0.1")) || !pos.EntryPrice.Equal(d("50000")) || pos.Side != models.SideLong {
		t.Errorf("unexpected position %+v", pos)
	}
	if !pos.Leverage.Equal(d("3")) {
		t.Errorf("leverage = %s, want 3", pos.Leverage)
	}

	if got := env.risk.PositionCount(models.VenueBinance); got != 1 {
		t.Errorf("position count = %d, want 1", got)
	}
	if got := env.risk.Exposure("BTCUSDT"); !got.Equal(d("5000")) {
		t.Errorf("exposure = %s, want 5000", got)
	}
	if env.pub.count(notify.EventTrade) != 1 {
		t.Errorf("expected one trade event")
	}
}

func TestExecuteLegsRejectedOrderNotRecorded(t *testing.T) {
	env := newTestEnv(false)
	binance := newPaper(models.VenueBinance, paperMarket("BTCUSDT", "50000", "0", "1"))
	binance.RejectOrders(true)

	recorded := env.exec.ExecuteLegs(context.Background(),
		Leg{Adapter: binance, Symbol: "BTCUSDT", Side: models.SideLong, Size: d("0.1")})

	if len(recorded) != 0 {
		t.Fatalf("rejected order must not be recorded")
	}
	if env.store.Trades.Len() != 1 {
		t.Errorf("rejected trade must still be stored, got %d trades", env.store.Trades.Len())
	}
	if env.store.Positions.Len() != 0 {
		t.Errorf("rejected trade must not open a position")
	}
	if env.risk.PositionCount(models.VenueBinance) != 0 || !env.risk.Exposure("BTCUSDT").IsZero() {
		t.Errorf("risk counters must stay at zero")
	}
}

func TestExecuteLegsMaxPositionsRejection(t *testing.T) {
	env := newTestEnv(false)
	for i := 0; i < 5; i++ {
		env.risk.RecordTrade(filledTrade(models.VenueBinance, "SOLUSDT", "1", "10"))
	}
	binance := newPaper(models.VenueBinance, paperMarket("BTCUSDT", "50000", "0", "1"))

	recorded := env.exec.ExecuteLegs(context.Background(),
		Leg{Adapter: binance, Symbol: "BTCUSDT", Side: models.SideLong, Size: d("0.01")})

	if len(recorded) != 0 {
		t.Fatal("trade over position limit must not be recorded")
	}
	if got := env.risk.PositionCount(models.VenueBinance); got != 5 {
		t.Errorf("position count = %d, want 5", got)
	}
	if !env.risk.Exposure("BTCUSDT").IsZero() {
		t.Errorf("exposure must not change")
	}
	if env.store.Trades.Len() != 1 {
		t.Errorf("placed trade must be stored")
	}
	if env.store.Positions.Len() != 0 {
		t.Errorf("rejected trade must not open a position")
	}
}

func TestExecuteLegsIndependent(t *testing.T) {
	env := newTestEnv(false)
	for i := 0; i < 5; i++ {
		env.risk.RecordTrade(filledTrade(models.VenueBinance, "SOLUSDT", "1", "10"))
	}
	binance := newPaper(models.VenueBinance, paperMarket("BTCUSDT", "50000", "0", "1"))
	bybit := newPaper(models.VenueBybit, paperMarket("BTCUSDT", "50010", "0", "1"))

	recorded := env.exec.ExecuteLegs(context.Background(),
		Leg{Adapter: binance, Symbol: "BTCUSDT", Side: models.SideShort, Size: d("0.02")},
		Leg{Adapter: bybit, Symbol: "BTCUSDT", Side: models.SideLong, Size: d("0.02")},
	)

	if len(recorded) != 1 || recorded[0].Venue != models.VenueBybit {
		t.Fatalf("expected only the bybit leg recorded, got %v", recorded)
	}
	// отказ первой ноги не отменяет размещённый ордер и не останавливает вторую
	if len(binance.Orders()) != 1 || len(bybit.Orders()) != 1 {
		t.Errorf("both legs must be placed")
	}
	if _, ok := env.store.Positions.Get(state.SymbolVenue{Symbol: "BTCUSDT", Venue: models.VenueBinance}); ok {
		t.Error("rejected leg must not open a position")
	}
	if _, ok := env.store.Positions.Get(state.SymbolVenue{Symbol: "BTCUSDT", Venue: models.VenueBybit}); !ok {
		t.Error("accepted leg must open a position")
	}
}

func TestExecuteLegsVenueErrorContinues(t *testing.T) {
	env := newTestEnv(false)
	binance := newPaper(models.VenueBinance, paperMarket("BTCUSDT", "50000", "0", "1"))
	bybit := newPaper(models.VenueBybit, paperMarket("BTCUSDT", "50010", "0", "1"))

	recorded := env.exec.ExecuteLegs(context.Background(),
		Leg{Adapter: binance, Symbol: "DOGEUSDT", Side: models.SideShort, Size: d("100")},
		Leg{Adapter: bybit, Symbol: "BTCUSDT", Side: models.SideLong, Size: d("0.02")},
	)

	if len(recorded) != 1 {
		t.Fatalf("expected 1 recorded trade, got %d", len(recorded))
	}
	if env.store.Trades.Len() != 1 {
		t.Errorf("failed placement produces no trade, got %d stored", env.store.Trades.Len())
	}
}

func TestSettleMergesSameSide(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.exec.Settle(ctx, filledTrade(models.VenueBinance, "ETHUSDT", "1", "3000"))
	second := filledTrade(models.VenueBinance, "ETHUSDT", "3", "3100")
	second.ID = "second"
	env.exec.Settle(ctx, second)

	pos, ok := env.store.Positions.Get(state.SymbolVenue{Symbol: "ETHUSDT", Venue: models.VenueBinance})
	if !ok {
		t.Fatal("position must exist")
	}
	if !pos.Size.Equal(d("4")) {
		t.Errorf("size = %s, want 4", pos.Size)
	}
	if !pos.EntryPrice.Equal(d("3075")) {
		t.Errorf("entry = %s, want 3075", pos.EntryPrice)
	}
	if got := env.risk.PositionCount(models.VenueBinance); got != 2 {
		t.Errorf("each recorded trade counts, got %d", got)
	}
}

func TestSettleOppositeSideReplaces(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	env.exec.Settle(ctx, filledTrade(models.VenueBinance, "ETHUSDT", "1", "3000"))
	short := filledTrade(models.VenueBinance, "ETHUSDT", "2", "3100")
	short.ID = "short"
	short.Side = models.SideShort
	env.exec.Settle(ctx, short)

	pos, _ := env.store.Positions.Get(state.SymbolVenue{Symbol: "ETHUSDT", Venue: models.VenueBinance})
	if pos.Side != models.SideShort || !pos.Size.Equal(d("2")) {
		t.Errorf("opposite trade must replace position, got %+v", pos)
	}
}

func TestSettlePublishesKillSwitch(t *testing.T) {
	env := newTestEnv(false)
	env.risk.UpdateDailyPnl(d("-600"))

	if env.exec.Settle(context.Background(), filledTrade(models.VenueBinance, "BTCUSDT", "0.01", "50000")) {
		t.Fatal("trade must be rejected")
	}
	if env.pub.count(notify.EventRisk) != 1 {
		t.Errorf("expected a risk event on kill switch activation")
	}
	if !env.risk.IsKillSwitchActive() {
		t.Errorf("kill switch must be active")
	}
}

func TestClosePosition(t *testing.T) {
	env := newTestEnv(false)
	trade := filledTrade(models.VenueBinance, "BTCUSDT", "0.1", "50000")
	env.exec.Settle(context.Background(), trade)

	env.exec.ClosePosition(models.VenueBinance, "BTCUSDT", trade.Notional())

	if env.store.Positions.Len() != 0 {
		t.Error("position must be removed from store")
	}
	if env.risk.PositionCount(models.VenueBinance) != 0 || !env.risk.Exposure("BTCUSDT").IsZero() {
		t.Error("risk counters must be released")
	}
}

func TestReportOpportunity(t *testing.T) {
	env := newTestEnv(true)
	env.exec.ReportOpportunity(context.Background(), models.ArbitrageOpportunity{
		Strategy:  models.StrategySpotSpread,
		Symbol:    "ETH-USDC",
		SpreadBps: 33,
	})

	if env.store.Opportunities.Len() != 1 {
		t.Errorf("opportunity must be kept in the log")
	}
	if env.pub.count(notify.EventOpportunity) != 1 {
		t.Errorf("opportunity must be published")
	}
}

func TestNewExecutorDefaultLeverage(t *testing.T) {
	limits := testLimits()
	limits.MaxLeverage = d("0")
	exec := NewExecutor(NewRiskEngine(limits, nopLogger()), state.NewStore(1), nil, false, nopLogger())
	if !exec.leverage.Equal(d("1")) {
		t.Errorf("leverage = %s, want 1", exec.leverage)
	}
}
