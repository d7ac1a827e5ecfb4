// Package scan runs the trend pipeline over many symbols and reports one
// row per requested symbol.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"macmarket/internal/domain"
	"macmarket/internal/readiness"
	"macmarket/internal/signal"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultLookback = 500
	DefaultWorkers  = 4
)

// BarProvider fetches the most recent bars for a symbol.
type BarProvider interface {
	GetBars(ctx context.Context, symbol, timeframe string, limit int) (domain.BarSeries, error)
}

type Request struct {
	Symbols   []string
	Timeframe string
	Params    signal.Params
	Lookback  int
}

func (r Request) Validate() error {
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if r.Lookback <= 0 {
		return &domain.ParameterError{Name: "lookback", Value: r.Lookback, Reason: "must be positive"}
	}
	if strings.TrimSpace(r.Timeframe) == "" {
		return &domain.ParameterError{Name: "timeframe", Value: r.Timeframe, Reason: "is required"}
	}
	return nil
}

// ParseSymbols splits a comma-delimited list, keeping order and duplicates.
func ParseSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Orchestrator struct {
	provider BarProvider
	engine   *signal.Engine
	scorer   *readiness.Scorer
	workers  int
}

func NewOrchestrator(provider BarProvider, engine *signal.Engine, scorer *readiness.Scorer, workers int) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{provider: provider, engine: engine, scorer: scorer, workers: workers}
}

// Scan returns rows in request order. Only invalid parameters fail the
// whole call; every per-symbol failure lands in that symbol's row.
func (o *Orchestrator) Scan(ctx context.Context, req Request) ([]domain.ScanRow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if o.provider == nil || o.engine == nil {
		return nil, fmt.Errorf("scan orchestrator is not fully initialized")
	}
	engine, err := o.engine.WithShort(req.Params)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ScanRow, len(req.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, symbol := range req.Symbols {
		g.Go(func() error {
			rows[i] = o.scanSymbol(gctx, engine, symbol, req)
			return nil
		})
	}
	_ = g.Wait()
	return rows, nil
}

func (o *Orchestrator) scanSymbol(ctx context.Context, engine *signal.Engine, symbol string, req Request) domain.ScanRow {
	if err := ctx.Err(); err != nil {
		return domain.ScanRow{Symbol: symbol, Error: domain.NewProviderError(symbol, err).Error()}
	}
	series, err := o.provider.GetBars(ctx, symbol, req.Timeframe, req.Lookback)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderFailure) {
			err = domain.NewProviderError(symbol, err)
		}
		return domain.ScanRow{Symbol: symbol, Error: err.Error()}
	}
	analysis, err := engine.Analyze(series)
	if err != nil {
		return domain.ScanRow{Symbol: symbol, Error: err.Error()}
	}
	return Row(symbol, analysis, o.scorer, req.Params.AlertLookback)
}

// Row summarises the last bar of an analysis.
func Row(symbol string, a *signal.Analysis, scorer *readiness.Scorer, alertLookback int) domain.ScanRow {
	i := a.LastIndex()
	upw, dnw := a.HACO.FiredWithin(i, alertLookback)
	row := domain.ScanRow{
		Symbol:  symbol,
		Upw:     upw,
		Dnw:     dnw,
		State:   a.HACO.States[i].State,
		Changed: a.HACO.States[i].Changed,
		Reason:  a.HACO.Reason(i),
		LTState: a.LTStateAt(i),
	}
	if scorer != nil {
		row.Readiness = scorer.ScoreLatest(a).Score
	}
	return row
}
