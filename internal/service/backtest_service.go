package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"macmarket/internal/backtest"
	"macmarket/internal/domain"
	"macmarket/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type BacktestRunRepository interface {
	SaveRun(ctx context.Context, run domain.BacktestRun) error
	ListRuns(ctx context.Context, symbol string, limit int) ([]domain.BacktestRun, error)
}

type BacktestParams struct {
	Strategy      string   `json:"strategy"`
	InitialCash   float64  `json:"initial_cash"`
	Quantity      float64  `json:"quantity"`
	MinReadiness  *float64 `json:"min_readiness,omitempty"`
	StopLossPct   float64  `json:"stop_loss_pct"`
	TakeProfitPct float64  `json:"take_profit_pct"`
	MaxHoldBars   int      `json:"max_hold_bars"`
	LengthUp      int      `json:"lengthUp"`
	LengthDown    int      `json:"lengthDown"`
}

type BacktestRequest struct {
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Lookback  int            `json:"lookback"`
	Bars      []domain.Bar   `json:"bars,omitempty"`
	Params    BacktestParams `json:"params"`
}

type BacktestResponse struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Strategy  string `json:"strategy"`
	domain.BacktestResult
}

type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type BacktestService struct {
	tracer       trace.Tracer
	signals      *SignalService
	runs         BacktestRunRepository
	metrics      *metrics.Recorder
	minReadiness float64
}

func NewBacktestService(
	tracer trace.Tracer,
	signals *SignalService,
	runs BacktestRunRepository,
	rec *metrics.Recorder,
	minReadiness float64,
) *BacktestService {
	return &BacktestService{
		tracer:       tracer,
		signals:      signals,
		runs:         runs,
		metrics:      rec,
		minReadiness: minReadiness,
	}
}

// Strategies lists the built-in strategies.
func (s *BacktestService) Strategies() []StrategyInfo {
	reg := backtest.DefaultRegistry(s.minReadiness)
	out := make([]StrategyInfo, 0)
	for _, name := range reg.List() {
		st, _ := reg.Get(name)
		out = append(out, StrategyInfo{Name: name, Description: st.Description()})
	}
	return out
}

func (p BacktestParams) config() backtest.Config {
	cfg := backtest.DefaultConfig()
	if p.InitialCash != 0 {
		cfg.InitialCash = p.InitialCash
	}
	if p.Quantity != 0 {
		cfg.Quantity = p.Quantity
	}
	cfg.StopLossPct = p.StopLossPct
	cfg.TakeProfitPct = p.TakeProfitPct
	cfg.MaxHoldBars = p.MaxHoldBars
	return cfg
}

// Run replays a strategy over the request's inline bars, or over the
// latest lookback bars from the provider, and records the run summary.
func (s *BacktestService) Run(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "backtest-service.run")
	defer span.End()

	if s.signals == nil || !s.signals.ready() {
		return nil, fmt.Errorf("backtest service is not fully initialized")
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Params.Strategy == "" {
		req.Params.Strategy = "haco"
	}
	span.SetAttributes(
		attribute.String("symbol", req.Symbol),
		attribute.String("strategy", req.Params.Strategy),
	)

	minReadiness := s.minReadiness
	if req.Params.MinReadiness != nil {
		minReadiness = *req.Params.MinReadiness
		if minReadiness < 0 || minReadiness > 100 {
			return nil, &domain.ParameterError{Name: "min_readiness", Value: minReadiness, Reason: "must be within [0,100]"}
		}
	}
	strategy, err := backtest.DefaultRegistry(minReadiness).Lookup(req.Params.Strategy)
	if err != nil {
		return nil, err
	}
	cfg := req.Params.config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params := s.signals.DefaultParams()
	if req.Params.LengthUp != 0 {
		params.LengthUp = req.Params.LengthUp
	}
	if req.Params.LengthDown != 0 {
		params.LengthDown = req.Params.LengthDown
	}
	engine, err := s.signals.engine.WithShort(params)
	if err != nil {
		return nil, err
	}

	series, err := s.series(ctx, req)
	if err != nil {
		s.metrics.BacktestRun(strategy.Name(), err)
		return nil, err
	}

	start := time.Now()
	result, err := backtest.NewEngine(backtest.NewPipelineSource(engine, s.signals.scorer)).Run(ctx, series, strategy, cfg)
	s.metrics.Since("backtest.run", start)
	s.metrics.BacktestRun(strategy.Name(), err)
	if err != nil {
		return nil, err
	}

	resp := &BacktestResponse{
		ID:             uuid.NewString(),
		Symbol:         series.Symbol,
		Timeframe:      series.Timeframe,
		Strategy:       strategy.Name(),
		BacktestResult: *result,
	}
	if s.runs != nil {
		run := domain.BacktestRun{
			ID:        resp.ID,
			Symbol:    resp.Symbol,
			Timeframe: resp.Timeframe,
			Strategy:  resp.Strategy,
			Bars:      series.Len(),
			Stats:     result.Stats,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.runs.SaveRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("id", run.ID).Msg("failed to save backtest run")
		}
	}
	log.Info().
		Str("symbol", resp.Symbol).
		Str("strategy", resp.Strategy).
		Int("trades", result.Stats.TradeCount).
		Float64("total_pnl", result.Stats.TotalPnL).
		Msg("backtest complete")
	return resp, nil
}

func (s *BacktestService) series(ctx context.Context, req BacktestRequest) (domain.BarSeries, error) {
	if len(req.Bars) > 0 {
		series := domain.BarSeries{Symbol: req.Symbol, Timeframe: req.Timeframe, Bars: req.Bars}
		if series.Symbol == "" {
			series.Symbol = "INLINE"
		}
		return series, series.Validate()
	}
	if req.Symbol == "" {
		return domain.BarSeries{}, &domain.ParameterError{Name: "symbol", Value: req.Symbol, Reason: "is required without inline bars"}
	}
	if req.Timeframe == "" {
		req.Timeframe = "1d"
	}
	if err := validateTimeframe(req.Timeframe); err != nil {
		return domain.BarSeries{}, err
	}
	if req.Lookback == 0 {
		req.Lookback = s.signals.DefaultLookback()
	}
	if req.Lookback < 0 {
		return domain.BarSeries{}, &domain.ParameterError{Name: "lookback", Value: req.Lookback, Reason: "must be positive"}
	}
	return s.signals.bars.GetBars(ctx, req.Symbol, req.Timeframe, req.Lookback)
}

// List returns persisted run summaries, newest first.
func (s *BacktestService) List(ctx context.Context, symbol string, limit int) ([]domain.BacktestRun, error) {
	ctx, span := s.tracer.Start(ctx, "backtest-service.list")
	defer span.End()

	if s.runs == nil {
		return nil, fmt.Errorf("backtest service is not fully initialized")
	}
	return s.runs.ListRuns(ctx, strings.ToUpper(strings.TrimSpace(symbol)), limit)
}
