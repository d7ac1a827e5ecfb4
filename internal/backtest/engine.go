// Package backtest replays the trend pipeline bar by bar against a
// strategy's entry and exit rules.
package backtest

import (
	"context"
	"fmt"

	"macmarket/internal/domain"
	"macmarket/internal/readiness"
	"macmarket/internal/signal"

	"github.com/creasty/defaults"
)

type Config struct {
	InitialCash   float64 `json:"initial_cash" default:"10000"`
	Quantity      float64 `json:"quantity" default:"1"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct"`
	MaxHoldBars   int     `json:"max_hold_bars"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

func (c Config) Validate() error {
	if c.InitialCash < 0 {
		return &domain.ParameterError{Name: "initial_cash", Value: c.InitialCash, Reason: "must not be negative"}
	}
	if c.Quantity <= 0 {
		return &domain.ParameterError{Name: "quantity", Value: c.Quantity, Reason: "must be positive"}
	}
	if c.StopLossPct < 0 || c.StopLossPct >= 100 {
		return &domain.ParameterError{Name: "stop_loss_pct", Value: c.StopLossPct, Reason: "must be within [0,100)"}
	}
	if c.TakeProfitPct < 0 {
		return &domain.ParameterError{Name: "take_profit_pct", Value: c.TakeProfitPct, Reason: "must not be negative"}
	}
	if c.MaxHoldBars < 0 {
		return &domain.ParameterError{Name: "max_hold_bars", Value: c.MaxHoldBars, Reason: "must not be negative"}
	}
	return nil
}

// Snapshot is what a strategy sees at one bar. Every field is derived from
// bars at or before Index. Determined stays false until the first trigger,
// while State still carries the configured default.
type Snapshot struct {
	Index      int
	Bar        domain.Bar
	Warm       bool
	Determined bool
	State      domain.TrendState
	Changed    bool
	Upw        bool
	Dnw        bool
	LTState    domain.TrendState
	Readiness  domain.Readiness
}

type SnapshotSource interface {
	Snapshots(series domain.BarSeries) ([]Snapshot, error)
}

// PipelineSource derives snapshots from the signal engine and readiness scorer.
type PipelineSource struct {
	engine *signal.Engine
	scorer *readiness.Scorer
}

func NewPipelineSource(engine *signal.Engine, scorer *readiness.Scorer) *PipelineSource {
	return &PipelineSource{engine: engine, scorer: scorer}
}

func (p *PipelineSource) Snapshots(series domain.BarSeries) ([]Snapshot, error) {
	analysis, err := p.engine.Analyze(series)
	if err != nil {
		return nil, err
	}
	ind := p.scorer.Indicators(analysis.Bars)

	out := make([]Snapshot, len(analysis.Bars))
	for i, bar := range analysis.Bars {
		st := analysis.HACO.States[i]
		out[i] = Snapshot{
			Index:      i,
			Bar:        bar,
			Warm:       analysis.Warm(i),
			Determined: analysis.HACO.Determined(i),
			State:      st.State,
			Changed:    st.Changed,
			Upw:        analysis.HACO.Flags[i].Upw,
			Dnw:        analysis.HACO.Flags[i].Dnw,
			LTState:    analysis.LTStateAt(i),
			Readiness:  p.scorer.ScoreAt(ind, analysis, i),
		}
	}
	return out, nil
}

type Engine struct {
	source SnapshotSource
}

func NewEngine(source SnapshotSource) *Engine {
	return &Engine{source: source}
}

func (e *Engine) Run(ctx context.Context, series domain.BarSeries, strategy Strategy, cfg Config) (*domain.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, &domain.ParameterError{Name: "strategy", Value: nil, Reason: "is required"}
	}
	if e.source == nil {
		return nil, fmt.Errorf("backtest engine is not fully initialized")
	}
	snapshots, err := e.source.Snapshots(series)
	if err != nil {
		return nil, err
	}
	return Replay(ctx, snapshots, strategy, cfg)
}

// Replay walks the snapshots in order. On each bar but the last a flat
// book may open at the close, then an open position (not opened on this
// bar) may close at the close. Anything still open is closed on the last
// bar.
func Replay(ctx context.Context, snapshots []Snapshot, strategy Strategy, cfg Config) (*domain.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cash := cfg.InitialCash
	var pos *domain.Position
	trades := make([]domain.Trade, 0)
	curve := make([]domain.EquityPoint, 0, len(snapshots))

	for i, s := range snapshots {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		price := s.Bar.Close
		openedNow := false

		last := i == len(snapshots)-1

		if pos == nil && !last && strategy.Enter(s) {
			pos = &domain.Position{
				EntryTime:  s.Bar.Time,
				EntryPrice: price,
				Quantity:   cfg.Quantity,
				Side:       domain.SideLong,
				EntryIndex: s.Index,
			}
			cash -= price * cfg.Quantity
			openedNow = true
		}

		if pos != nil && !openedNow {
			if reason, ok := exitReason(s, *pos, strategy, cfg); ok {
				cash += price * pos.Quantity
				trades = append(trades, closeTrade(pos, s, reason))
				pos = nil
			}
		}

		if pos != nil && last {
			cash += price * pos.Quantity
			trades = append(trades, closeTrade(pos, s, domain.ExitEndOfSeries))
			pos = nil
		}

		equity := cash
		if pos != nil {
			equity += pos.Quantity * price
		}
		curve = append(curve, domain.EquityPoint{Time: s.Bar.Time, Equity: equity})
	}

	return &domain.BacktestResult{
		Trades:      trades,
		Stats:       computeStats(trades, curve, cfg.InitialCash),
		EquityCurve: curve,
	}, nil
}

func exitReason(s Snapshot, pos domain.Position, strategy Strategy, cfg Config) (string, bool) {
	var change float64
	if pos.EntryPrice != 0 {
		change = (s.Bar.Close - pos.EntryPrice) / pos.EntryPrice * 100
	}
	switch {
	case cfg.StopLossPct > 0 && change <= -cfg.StopLossPct:
		return domain.ExitStopLoss, true
	case cfg.TakeProfitPct > 0 && change >= cfg.TakeProfitPct:
		return domain.ExitTakeProfit, true
	case cfg.MaxHoldBars > 0 && s.Index-pos.EntryIndex >= cfg.MaxHoldBars:
		return domain.ExitMaxHold, true
	case strategy.Exit(s, pos):
		return domain.ExitSignal, true
	}
	return "", false
}

func closeTrade(pos *domain.Position, s Snapshot, reason string) domain.Trade {
	exitTime, exitPrice := s.Bar.Time, s.Bar.Close
	pos.ExitTime, pos.ExitPrice = &exitTime, &exitPrice

	var ret float64
	if pos.EntryPrice != 0 {
		ret = (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100
	}
	return domain.Trade{
		EntryDate:  pos.EntryTime,
		ExitDate:   exitTime,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		PnL:        (exitPrice - pos.EntryPrice) * pos.Quantity,
		ReturnPct:  ret,
		ExitReason: reason,
	}
}
