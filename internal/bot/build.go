package bot

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbd/internal/config"
	"arbd/internal/exchange"
	"arbd/internal/models"
)

// BuildLoops создаёт циклы включённых стратегий по конфигурации.
// Площадки стратегий должны присутствовать в adapters.
func BuildLoops(cfg *config.Config, adapters map[models.Venue]exchange.Adapter, exec *Executor, risk *RiskEngine, logger *zap.Logger) ([]*Loop, error) {
	s := cfg.Strategies
	var loops []*Loop

	if s.FundingArb.Enabled {
		venues := make([]exchange.Adapter, 0, len(s.FundingArb.Venues))
		for _, name := range s.FundingArb.Venues {
			a, err := lookupAdapter(adapters, name)
			if err != nil {
				return nil, fmt.Errorf("funding_arb: %w", err)
			}
			venues = append(venues, a)
		}
		strategy := NewFundingArb(venues, FundingArbConfig{
			MinAnnualizedSpread: decimal.NewFromFloat(s.FundingArb.MinAnnualizedSpread),
			Interval:            s.FundingArb.CheckInterval,
			TopSymbols:          s.FundingArb.TopSymbols,
			PositionNotional:    decimal.NewFromFloat(s.FundingArb.PositionSize),
		}, exec, logger)
		loops = append(loops, NewLoop(strategy, risk, logger))
	}

	if s.SpotSpread.Enabled {
		spot, err := lookupAdapter(adapters, s.SpotSpread.Venue)
		if err != nil {
			return nil, fmt.Errorf("spot_spread: %w", err)
		}
		reference, err := lookupAdapter(adapters, s.SpotSpread.ReferenceVenue)
		if err != nil {
			return nil, fmt.Errorf("spot_spread: %w", err)
		}
		strategy := NewSpotSpread(spot, reference, SpotSpreadConfig{
			Pairs:        s.SpotSpread.Pairs,
			MinSpreadBps: s.SpotSpread.MinSpreadBps,
			Interval:     s.SpotSpread.CheckInterval,
			Size:         decimal.NewFromFloat(s.SpotSpread.PositionSize),
		}, exec, logger)
		loops = append(loops, NewLoop(strategy, risk, logger))
	}

	if s.RoundTrip.Enabled {
		venue, err := lookupAdapter(adapters, s.RoundTrip.Venue)
		if err != nil {
			return nil, fmt.Errorf("round_trip: %w", err)
		}
		routes := make([]SwapRoute, 0, len(s.RoundTrip.Routes))
		for _, r := range s.RoundTrip.Routes {
			routes = append(routes, SwapRoute{InputMint: r.InputMint, OutputMint: r.OutputMint})
		}
		strategy := NewRoundTrip(venue, RoundTripConfig{
			Routes:         routes,
			Amount:         s.RoundTrip.Amount,
			MinProfitBps:   s.RoundTrip.MinProfitBps,
			MaxSlippageBps: s.RoundTrip.MaxSlippageBps,
			Interval:       s.RoundTrip.CheckInterval,
		}, exec, logger)
		loops = append(loops, NewLoop(strategy, risk, logger))
	}

	if len(loops) == 0 {
		return nil, config.ErrNoStrategyEnabled
	}
	return loops, nil
}

func lookupAdapter(adapters map[models.Venue]exchange.Adapter, name string) (exchange.Adapter, error) {
	venue, err := models.ParseVenue(name)
	if err != nil {
		return nil, err
	}
	a, ok := adapters[venue]
	if !ok {
		return nil, fmt.Errorf("venue %s has no adapter", venue)
	}
	return a, nil
}
