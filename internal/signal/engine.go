package signal

import (
	"errors"
	"fmt"

	"macmarket/internal/domain"

	"github.com/creasty/defaults"
)

// Params configures one trend pipeline run.
type Params struct {
	LengthUp      int               `json:"lengthUp" default:"34"`
	LengthDown    int               `json:"lengthDown" default:"34"`
	AlertLookback int               `json:"alertLookback" default:"1"`
	InitialState  domain.TrendState `json:"initialState"`
}

// longTermParams holds the HACOLT defaults. It shares Params' layout so
// it converts directly.
type longTermParams struct {
	LengthUp      int               `json:"lengthUp" default:"55"`
	LengthDown    int               `json:"lengthDown" default:"55"`
	AlertLookback int               `json:"alertLookback" default:"1"`
	InitialState  domain.TrendState `json:"initialState"`
}

func DefaultParams() Params {
	var p Params
	setDefaults(&p)
	return p
}

func DefaultLongTermParams() Params {
	var p longTermParams
	setDefaults(&p)
	return Params(p)
}

// setDefaults panics when the default tags cannot be applied; that is a
// programming error, never a runtime condition.
func setDefaults(ptr any) {
	if err := defaults.Set(ptr); err != nil {
		panic(fmt.Sprintf("signal: apply default params: %v", err))
	}
}

func (p Params) Validate() error {
	if p.LengthUp <= 0 {
		return &domain.ParameterError{Name: "lengthUp", Value: p.LengthUp, Reason: "must be positive"}
	}
	if p.LengthDown <= 0 {
		return &domain.ParameterError{Name: "lengthDown", Value: p.LengthDown, Reason: "must be positive"}
	}
	if p.AlertLookback <= 0 {
		return &domain.ParameterError{Name: "alertLookback", Value: p.AlertLookback, Reason: "must be positive"}
	}
	return nil
}

// MinBars is the shortest series the pipeline accepts.
func (p Params) MinBars() int {
	return max(p.LengthUp, p.LengthDown) + 2
}

// Trend is the full per-bar output of one pipeline run.
type Trend struct {
	Params    Params                `json:"params"`
	Composite []domain.CompositeBar `json:"composite"`
	Bands     []domain.ZeroLagBand  `json:"bands"`
	Flags     []domain.TriggerFlags `json:"flags"`
	States    []domain.StatePoint   `json:"states"`
	Anomalies []domain.Anomaly      `json:"anomalies,omitempty"`

	lastTrigger []int
}

// Run executes the pure pipeline: composite bars, bands, triggers, state.
func Run(bars []domain.Bar, p Params) (*Trend, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(bars) < p.MinBars() {
		return nil, &domain.InsufficientDataError{Have: len(bars), Need: p.MinBars()}
	}

	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	composite := HeikinAshi(bars)
	bands := ComputeBands(composite, closes, p.LengthUp, p.LengthDown)
	flags := DetectTriggers(composite, bands)
	states, anomalies := FoldStates(flags, p.InitialState)

	last := make([]int, len(flags))
	seen := -1
	for i, f := range flags {
		if f.Upw || f.Dnw {
			seen = i
		}
		last[i] = seen
	}

	return &Trend{
		Params:      p,
		Composite:   composite,
		Bands:       bands,
		Flags:       flags,
		States:      states,
		Anomalies:   anomalies,
		lastTrigger: last,
	}, nil
}

func (t *Trend) Len() int { return len(t.States) }

func (t *Trend) LastIndex() int { return len(t.States) - 1 }

// Determined reports whether any trigger fired at or before bar i.
func (t *Trend) Determined(i int) bool {
	return i >= 0 && i < len(t.lastTrigger) && t.lastTrigger[i] >= 0
}

// EncodedAt is the tri-state value: UNKNOWN until the first trigger.
func (t *Trend) EncodedAt(i int) domain.TrendState {
	if !t.Determined(i) {
		return domain.StateUnknown
	}
	return t.States[i].State
}

func (t *Trend) Encoded() []domain.SeriesPoint {
	out := make([]domain.SeriesPoint, len(t.States))
	for i, s := range t.States {
		out[i] = domain.SeriesPoint{Time: s.Time, Value: float64(t.EncodedAt(i).Value())}
	}
	return out
}

// FiredWithin reports triggers inside the last lookback bars ending at i.
func (t *Trend) FiredWithin(i, lookback int) (upw, dnw bool) {
	if lookback <= 0 {
		lookback = 1
	}
	for j := i; j >= 0 && j > i-lookback; j-- {
		upw = upw || t.Flags[j].Upw
		dnw = dnw || t.Flags[j].Dnw
	}
	return upw, dnw
}

func (t *Trend) anomalyAt(i int) bool {
	for _, a := range t.Anomalies {
		if a.Index == i {
			return true
		}
	}
	return false
}

// Reason explains the state at bar i in one line.
func (t *Trend) Reason(i int) string {
	if i < 0 || i >= len(t.States) {
		return ""
	}
	st := t.States[i].State
	switch {
	case t.anomalyAt(i):
		return fmt.Sprintf("both triggers fired; reversed to %s", st)
	case t.Flags[i].Upw:
		return "upw: fast band crossed above slow band"
	case t.Flags[i].Dnw:
		return "dnw: fast band crossed below slow band"
	case !t.Determined(i):
		return fmt.Sprintf("no trigger yet; initial state %s", st)
	}
	since := t.States[t.lastTrigger[i]].Time
	return fmt.Sprintf("holding %s since %s", st, since.UTC().Format("2006-01-02 15:04"))
}

// Engine runs the short-term pipeline and its long-term filter with
// independent parameters.
type Engine struct {
	short Params
	long  Params
}

func NewEngine(short, long Params) (*Engine, error) {
	if err := short.Validate(); err != nil {
		return nil, err
	}
	if err := long.Validate(); err != nil {
		return nil, fmt.Errorf("long-term: %w", err)
	}
	return &Engine{short: short, long: long}, nil
}

func (e *Engine) ShortParams() Params { return e.short }

func (e *Engine) LongParams() Params { return e.long }

// WithShort returns a copy of the engine using different short-term params.
func (e *Engine) WithShort(p Params) (*Engine, error) {
	return NewEngine(p, e.long)
}

type Analysis struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Bars      []domain.Bar `json:"bars"`
	HACO      *Trend       `json:"haco"`
	HACOLT    *Trend       `json:"hacolt,omitempty"`
}

// Analyze runs both pipelines. A series long enough for the short-term run
// but not the long-term one yields a nil HACOLT.
func (e *Engine) Analyze(series domain.BarSeries) (*Analysis, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	haco, err := Run(series.Bars, e.short)
	if err != nil {
		return nil, err
	}
	hacolt, err := Run(series.Bars, e.long)
	if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
		return nil, fmt.Errorf("long-term: %w", err)
	}
	return &Analysis{
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		Bars:      series.Bars,
		HACO:      haco,
		HACOLT:    hacolt,
	}, nil
}

func (a *Analysis) LastIndex() int { return len(a.Bars) - 1 }

// Warm reports whether bars[0..i] alone would satisfy the short-term
// minimum length.
func (a *Analysis) Warm(i int) bool {
	return i+1 >= a.HACO.Params.MinBars()
}

// LTStateAt is the long-term state at bar i. It is UNKNOWN while bars[0..i]
// are too few for the long-term run or before its first trigger, so the
// value never depends on bars after i.
func (a *Analysis) LTStateAt(i int) domain.TrendState {
	if a.HACOLT == nil || i+1 < a.HACOLT.Params.MinBars() {
		return domain.StateUnknown
	}
	return a.HACOLT.EncodedAt(i)
}

// LTEncoded is the long-term tri-state series.
func (a *Analysis) LTEncoded() []domain.SeriesPoint {
	out := make([]domain.SeriesPoint, len(a.Bars))
	for i, b := range a.Bars {
		out[i] = domain.SeriesPoint{Time: b.Time, Value: float64(a.LTStateAt(i).Value())}
	}
	return out
}
