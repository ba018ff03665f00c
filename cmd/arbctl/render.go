package main

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"arbd/internal/api/handlers"
	"arbd/internal/bot"
	"arbd/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderStatus(w io.Writer, s *handlers.StatusResponse) {
	t := newTable(w, "DAEMON STATUS")

	status := s.Status
	if s.KillSwitchActive {
		status = text.FgRed.Sprint(status)
	} else {
		status = text.FgGreen.Sprint(status)
	}

	t.AppendRows([]table.Row{
		{"Status", status},
		{"Kill Switch", onOff(s.KillSwitchActive)},
		{"Dry Run", onOff(s.DryRun)},
		{"Timestamp", s.Timestamp},
	})
	t.AppendSeparator()

	kinds := make([]string, 0, len(s.Strategies))
	for k := range s.Strategies {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		t.AppendRow(table.Row{k, onOff(s.Strategies[models.StrategyKind(k)])})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, Align: text.AlignLeft},
	})
	t.Render()
}

func renderRisk(w io.Writer, r *bot.RiskSnapshot) {
	t := newTable(w, "RISK")
	t.AppendRows([]table.Row{
		{"Daily PnL", r.DailyPnl.StringFixed(2)},
		{"Kill Switch", onOff(r.KillSwitchActive)},
		{"Loss Threshold", r.Limits.KillSwitchDailyLossThreshold.StringFixed(2)},
		{"Max Notional / Asset", r.Limits.MaxNotionalPerAsset.StringFixed(2)},
		{"Max Positions / Venue", r.Limits.MaxOpenPositionsPerVenue},
		{"Max Leverage", r.Limits.MaxLeverage.String()},
	})

	if len(r.PositionCounts) > 0 {
		t.AppendSeparator()
		for _, c := range r.PositionCounts {
			t.AppendRow(table.Row{"Positions " + c.Venue.String(), c.Count})
		}
	}
	if len(r.NotionalExposure) > 0 {
		t.AppendSeparator()
		for _, e := range r.NotionalExposure {
			t.AppendRow(table.Row{"Exposure " + e.Symbol, e.Notional.StringFixed(2)})
		}
	}
	t.Render()
}

func renderPositions(w io.Writer, p *handlers.PositionsResponse) {
	t := newTable(w, "POSITIONS")
	t.AppendHeader(table.Row{"Symbol", "Venue", "Side", "Size", "Entry", "Leverage", "Opened"})
	for _, pos := range p.Positions {
		t.AppendRow(table.Row{
			pos.Symbol,
			pos.Venue.String(),
			string(pos.Side),
			pos.Size.String(),
			pos.EntryPrice.String(),
			pos.Leverage.String(),
			pos.OpenedAt.Format(timeLayout),
		})
	}
	if len(p.Positions) == 0 {
		t.AppendRow(table.Row{"no open positions"})
	}
	t.Render()
}

func renderOpportunities(w io.Writer, o *handlers.OpportunitiesResponse) {
	t := newTable(w, "RECENT OPPORTUNITIES")
	t.AppendHeader(table.Row{"Detected", "Strategy", "Symbol", "Venue A", "Venue B", "Spread bps", "Est. Profit"})
	for _, opp := range o.Opportunities {
		t.AppendRow(table.Row{
			opp.DetectedAt.Format(timeLayout),
			string(opp.Strategy),
			opp.Symbol,
			opp.VenueA.String(),
			opp.VenueB.String(),
			opp.SpreadBps,
			opp.EstimatedProfit.StringFixed(4),
		})
	}
	if len(o.Opportunities) == 0 {
		t.AppendRow(table.Row{"no opportunities yet"})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
