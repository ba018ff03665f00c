package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"arbd/internal/models"
)

func TestLoopPollsTargets(t *testing.T) {
	s := &stubStrategy{kind: models.StrategySpotSpread, interval: time.Millisecond, targets: []string{"A", "B"}}
	loop := NewLoop(s, newTestRisk(), nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	if !waitFor(time.Second, func() bool { return s.evaluated.Load() >= 4 }) {
		t.Fatal("loop did not poll targets")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancelled loop must return nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestLoopEvaluateErrorsDoNotStop(t *testing.T) {
	s := &stubStrategy{
		kind:     models.StrategyFundingArb,
		interval: time.Millisecond,
		targets:  []string{"BTC"},
		evalErr:  errors.New("venue timeout"),
	}
	loop := NewLoop(s, newTestRisk(), nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	if !waitFor(time.Second, func() bool { return s.evaluated.Load() >= 3 }) {
		t.Fatal("evaluation errors must not stop the loop")
	}
}

func TestLoopDiscoveryFailure(t *testing.T) {
	s := &stubStrategy{kind: models.StrategyFundingArb, discoverErr: errors.New("venue down")}
	loop := NewLoop(s, newTestRisk(), nopLogger())

	err := loop.Run(context.Background())
	if err == nil {
		t.Fatal("discovery failure must be returned")
	}
	if !errors.Is(err, s.discoverErr) {
		t.Errorf("error must wrap discovery cause, got %v", err)
	}
	if s.evaluated.Load() != 0 {
		t.Error("failed discovery must not poll")
	}
}

func TestLoopKillSwitchBackoff(t *testing.T) {
	risk := newTestRisk()
	risk.UpdateDailyPnl(d("-1000"))
	_ = risk.CheckTrade(filledTrade(models.VenueBinance, "BTC", "1", "1"))

	s := &stubStrategy{kind: models.StrategyFundingArb, interval: time.Millisecond, targets: []string{"BTC"}}
	loop := NewLoop(s, risk, nopLogger())
	loop.backoff = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if n := s.evaluated.Load(); n != 0 {
		t.Fatalf("kill switch must skip polling, got %d evaluations", n)
	}

	risk.ResetDailyPnl()
	if !waitFor(time.Second, func() bool { return s.evaluated.Load() > 0 }) {
		t.Fatal("loop must resume after kill switch reset")
	}
}

func TestRunnerIsolatesStrategies(t *testing.T) {
	failing := &stubStrategy{kind: models.StrategyFundingArb, discoverErr: errors.New("no venues")}
	working := &stubStrategy{kind: models.StrategyRoundTrip, interval: time.Millisecond, targets: []string{"SOL/USDC"}}

	risk := newTestRisk()
	r := NewRunner(nopLogger())
	r.Add(NewLoop(failing, risk, nopLogger()))
	r.Add(NewLoop(working, risk, nopLogger()))

	taskStopped := make(chan struct{})
	r.AddTask("probe", func(ctx context.Context) {
		<-ctx.Done()
		close(taskStopped)
	})

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	if !waitFor(time.Second, func() bool { return working.evaluated.Load() >= 3 }) {
		t.Fatal("a failed strategy must not stop the others")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runner returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	select {
	case <-taskStopped:
	default:
		t.Error("background task must stop with the runner")
	}
}

func TestRunnerEmpty(t *testing.T) {
	if err := NewRunner(nopLogger()).Run(context.Background()); err == nil {
		t.Error("runner without strategies must fail")
	}
}

func TestSleepCtx(t *testing.T) {
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Error("sleep must complete")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, time.Hour) {
		t.Error("cancelled sleep must return false")
	}
}
