package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"macmarket/internal/domain"
	"macmarket/internal/indicator"
	"macmarket/internal/metrics"
	"macmarket/internal/readiness"
	"macmarket/internal/scan"
	"macmarket/internal/signal"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ModeCatalog resolves dashboard mode profiles.
type ModeCatalog interface {
	Get(key string) (domain.ModeProfile, error)
	Keys() []string
}

type HACORequest struct {
	Symbol    string
	Timeframe string
	Params    signal.Params
	Lookback  int
}

type HACOPoint struct {
	Time     time.Time         `json:"time"`
	Open     float64           `json:"o"`
	High     float64           `json:"h"`
	Low      float64           `json:"l"`
	Close    float64           `json:"c"`
	HAOpen   float64           `json:"haOpen"`
	HAHigh   float64           `json:"haHigh"`
	HALow    float64           `json:"haLow"`
	HAClose  float64           `json:"haClose"`
	FastUp   float64           `json:"fastUp"`
	SlowUp   float64           `json:"slowUp"`
	FastDown float64           `json:"fastDown"`
	SlowDown float64           `json:"slowDown"`
	Upw      bool              `json:"upw"`
	Dnw      bool              `json:"dnw"`
	State    domain.TrendState `json:"state"`
	Changed  bool              `json:"changed"`
	Value    int               `json:"value"`
	Reason   string            `json:"reason"`
}

type HACOLast struct {
	Upw     bool              `json:"upw"`
	Dnw     bool              `json:"dnw"`
	State   domain.TrendState `json:"state"`
	Changed bool              `json:"changed"`
	Reason  string            `json:"reason"`
	LTState domain.TrendState `json:"lt_state"`
}

type HACOSeries struct {
	Symbol    string           `json:"symbol"`
	Timeframe string           `json:"timeframe"`
	Series    []HACOPoint      `json:"series"`
	Last      HACOLast         `json:"last"`
	Anomalies []domain.Anomaly `json:"anomalies"`
}

type Candle struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"o"`
	High  float64   `json:"h"`
	Low   float64   `json:"l"`
	Close float64   `json:"c"`
}

type DashboardIndicators struct {
	SMA20 []domain.SeriesPoint `json:"sma20"`
	SMA50 []domain.SeriesPoint `json:"sma50"`
	Trend []domain.SeriesPoint `json:"trend"`
}

type Entry struct {
	Time      time.Time           `json:"time"`
	Price     float64             `json:"price"`
	Side      domain.PositionSide `json:"side"`
	Rationale string              `json:"rationale"`
}

type Exit struct {
	Type  string   `json:"type"`
	Price float64  `json:"price,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

type Dashboard struct {
	Symbol         string               `json:"symbol"`
	Timeframe      string               `json:"timeframe"`
	Candles        []Candle             `json:"candles"`
	HACO           []domain.SeriesPoint `json:"haco"`
	HACOLT         []domain.SeriesPoint `json:"hacolt"`
	Indicators     DashboardIndicators  `json:"indicators"`
	Readiness      domain.Readiness     `json:"readiness"`
	Panels         []domain.Panel       `json:"panels"`
	Mode           string               `json:"mode"`
	AvailableModes []string             `json:"available_modes"`
	Watchlist      []string             `json:"watchlist"`
	AdvancedTabs   []domain.AdvancedTab `json:"advanced_tabs"`
	Mindset        domain.Mindset       `json:"mindset"`
	Playbook       []string             `json:"playbook"`
	Entries        []Entry              `json:"entries"`
	Exits          []Exit               `json:"exits"`
}

type SignalService struct {
	tracer   trace.Tracer
	bars     scan.BarProvider
	engine   *signal.Engine
	scorer   *readiness.Scorer
	scanner  *scan.Orchestrator
	modes    ModeCatalog
	metrics  *metrics.Recorder
	lookback int
}

func NewSignalService(
	tracer trace.Tracer,
	bars scan.BarProvider,
	engine *signal.Engine,
	scorer *readiness.Scorer,
	modes ModeCatalog,
	rec *metrics.Recorder,
	workers int,
) *SignalService {
	return &SignalService{
		tracer:   tracer,
		bars:     bars,
		engine:   engine,
		scorer:   scorer,
		scanner:  scan.NewOrchestrator(bars, engine, scorer, workers),
		modes:    modes,
		metrics:  rec,
		lookback: scan.DefaultLookback,
	}
}

func (s *SignalService) ready() bool {
	return s != nil && s.bars != nil && s.engine != nil && s.scorer != nil
}

// DefaultParams are the configured short-term parameters.
func (s *SignalService) DefaultParams() signal.Params {
	if s == nil || s.engine == nil {
		return signal.DefaultParams()
	}
	return s.engine.ShortParams()
}

func (s *SignalService) WithLookback(n int) *SignalService {
	if n > 0 {
		s.lookback = n
	}
	return s
}

func (s *SignalService) DefaultLookback() int { return s.lookback }

func validateTimeframe(tf string) error {
	if !domain.IsSupportedTimeframe(tf) {
		return &domain.ParameterError{Name: "timeframe", Value: tf, Reason: fmt.Sprintf("expected one of %v", domain.SupportedTimeframes)}
	}
	return nil
}

// Analyze fetches bars and runs both pipelines with the given short-term
// params.
func (s *SignalService) Analyze(ctx context.Context, req HACORequest) (*signal.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.analyze")
	defer span.End()

	if !s.ready() {
		return nil, fmt.Errorf("signal service is not fully initialized")
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	span.SetAttributes(attribute.String("symbol", req.Symbol), attribute.String("timeframe", req.Timeframe))

	if req.Symbol == "" {
		return nil, &domain.ParameterError{Name: "symbol", Value: req.Symbol, Reason: "is required"}
	}
	if err := validateTimeframe(req.Timeframe); err != nil {
		return nil, err
	}
	if req.Lookback == 0 {
		req.Lookback = s.lookback
	}
	if req.Lookback < 0 {
		return nil, &domain.ParameterError{Name: "lookback", Value: req.Lookback, Reason: "must be positive"}
	}
	engine, err := s.engine.WithShort(req.Params)
	if err != nil {
		return nil, err
	}

	series, err := s.bars.GetBars(ctx, req.Symbol, req.Timeframe, req.Lookback)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	analysis, err := engine.Analyze(series)
	s.metrics.Since("signal.analyze", start)
	if err != nil {
		return nil, err
	}
	for _, a := range analysis.HACO.Anomalies {
		s.metrics.Anomaly(a.Kind)
		log.Warn().
			Str("symbol", req.Symbol).
			Str("timeframe", req.Timeframe).
			Time("bar", a.Time).
			Str("resolved", a.Resolved.String()).
			Msg("upw and dnw fired on the same bar")
	}
	return analysis, nil
}

// HACO returns the per-bar HACO series for one symbol.
func (s *SignalService) HACO(ctx context.Context, req HACORequest) (*HACOSeries, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.haco")
	defer span.End()

	analysis, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return NewHACOSeries(analysis, req.Params.AlertLookback), nil
}

// NewHACOSeries flattens an analysis into its wire form.
func NewHACOSeries(a *signal.Analysis, alertLookback int) *HACOSeries {
	t := a.HACO
	out := &HACOSeries{
		Symbol:    a.Symbol,
		Timeframe: a.Timeframe,
		Series:    make([]HACOPoint, len(a.Bars)),
		Anomalies: t.Anomalies,
	}
	if out.Anomalies == nil {
		out.Anomalies = []domain.Anomaly{}
	}
	for i, b := range a.Bars {
		c, band, f, st := t.Composite[i], t.Bands[i], t.Flags[i], t.States[i]
		out.Series[i] = HACOPoint{
			Time:     b.Time,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			HAOpen:   c.HAOpen,
			HAHigh:   c.HAHigh,
			HALow:    c.HALow,
			HAClose:  c.HAClose,
			FastUp:   band.FastUp,
			SlowUp:   band.SlowUp,
			FastDown: band.FastDown,
			SlowDown: band.SlowDown,
			Upw:      f.Upw,
			Dnw:      f.Dnw,
			State:    st.State,
			Changed:  st.Changed,
			Value:    t.EncodedAt(i).Value(),
			Reason:   t.Reason(i),
		}
	}
	i := a.LastIndex()
	upw, dnw := t.FiredWithin(i, alertLookback)
	out.Last = HACOLast{
		Upw:     upw,
		Dnw:     dnw,
		State:   t.States[i].State,
		Changed: t.States[i].Changed,
		Reason:  t.Reason(i),
		LTState: a.LTStateAt(i),
	}
	return out
}

// Scan runs the HACO pipeline over many symbols. Per-symbol failures are
// reported in their rows.
func (s *SignalService) Scan(ctx context.Context, req scan.Request) ([]domain.ScanRow, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.scan")
	defer span.End()

	if !s.ready() {
		return nil, fmt.Errorf("signal service is not fully initialized")
	}
	if len(req.Symbols) == 0 {
		return nil, &domain.ParameterError{Name: "symbols", Value: "", Reason: "at least one symbol is required"}
	}
	if err := validateTimeframe(req.Timeframe); err != nil {
		return nil, err
	}
	if req.Lookback == 0 {
		req.Lookback = s.lookback
	}
	span.SetAttributes(attribute.Int("symbols", len(req.Symbols)))

	start := time.Now()
	rows, err := s.scanner.Scan(ctx, req)
	s.metrics.Since("signal.scan", start)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, row := range rows {
		s.metrics.ScanRow(row.Failed())
		if row.Failed() {
			failed++
		}
	}
	log.Info().Int("symbols", len(rows)).Int("failed", failed).Str("timeframe", req.Timeframe).Msg("scan complete")
	return rows, nil
}

// Readiness scores the last bar of an analysis.
func (s *SignalService) Readiness(a *signal.Analysis) domain.Readiness {
	return s.scorer.ScoreLatest(a)
}

// Modes lists the configured mode keys.
func (s *SignalService) Modes() []string {
	if s == nil || s.modes == nil {
		return nil
	}
	return s.modes.Keys()
}

func (s *SignalService) Mode(key string) (domain.ModeProfile, error) {
	if s == nil || s.modes == nil {
		return domain.ModeProfile{}, fmt.Errorf("signal service is not fully initialized")
	}
	return s.modes.Get(key)
}

// Dashboard assembles the per-symbol dashboard for a mode profile.
func (s *SignalService) Dashboard(ctx context.Context, symbol, mode string) (*Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.dashboard")
	defer span.End()

	if !s.ready() || s.modes == nil {
		return nil, fmt.Errorf("signal service is not fully initialized")
	}
	profile, err := s.modes.Get(mode)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("mode", profile.Key))

	analysis, err := s.Analyze(ctx, HACORequest{
		Symbol:    symbol,
		Timeframe: profile.Timeframe,
		Params:    s.engine.ShortParams(),
		Lookback:  profile.Lookback,
	})
	if err != nil {
		return nil, err
	}

	ind := s.scorer.Indicators(analysis.Bars)
	last := analysis.LastIndex()
	r := s.scorer.ScoreAt(ind, analysis, last)

	d := &Dashboard{
		Symbol:         analysis.Symbol,
		Timeframe:      analysis.Timeframe,
		Candles:        make([]Candle, len(analysis.Bars)),
		HACO:           analysis.HACO.Encoded(),
		HACOLT:         analysis.LTEncoded(),
		Readiness:      r,
		Panels:         r.Components,
		Mode:           profile.Key,
		AvailableModes: s.modes.Keys(),
		Watchlist:      profile.Watchlist,
		AdvancedTabs:   profile.Tabs,
		Mindset:        profile.Mindset,
		Playbook:       profile.Playbook,
		Entries:        []Entry{},
	}
	for i, b := range analysis.Bars {
		d.Candles[i] = Candle{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
	}
	d.Indicators = DashboardIndicators{
		SMA20: points(analysis.Bars, indicator.SMA(ind.Close, 20)),
		SMA50: points(analysis.Bars, indicator.SMA(ind.Close, 50)),
		Trend: d.HACOLT,
	}

	bar := analysis.Bars[last]
	if r.Score >= profile.EntryMinReadiness {
		d.Entries = append(d.Entries, Entry{
			Time:      bar.Time,
			Price:     bar.Close,
			Side:      domain.SideLong,
			Rationale: fmt.Sprintf("Readiness %.0f/100 with trend & momentum alignment", r.Score),
		})
	}
	lt := float64(analysis.LTStateAt(last).Value())
	d.Exits = []Exit{
		{Type: "atr_stop", Price: bar.Close - profile.ATRStopMult*ind.ATR[last]},
		{Type: "hacolt_state", Value: &lt},
	}
	return d, nil
}

// points pairs bar times with values, skipping the NaN warmup.
func points(bars []domain.Bar, values []float64) []domain.SeriesPoint {
	out := make([]domain.SeriesPoint, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		out = append(out, domain.SeriesPoint{Time: bars[i].Time, Value: v})
	}
	return out
}
