package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var SupportedTimeframes = []string{"15m", "1h", "4h", "1d", "1w"}

func IsSupportedTimeframe(tf string) bool {
	for _, s := range SupportedTimeframes {
		if s == tf {
			return true
		}
	}
	return false
}

type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// BarSeries is the ordered price history of one symbol at one timeframe.
// Consumers treat it as read-only.
type BarSeries struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Bars      []Bar  `json:"bars"`
}

func (s BarSeries) Len() int { return len(s.Bars) }

func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i := range s.Bars {
		out[i] = s.Bars[i].Close
	}
	return out
}

func (s BarSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Slice returns the first n bars sharing the underlying array.
func (s BarSeries) Slice(n int) BarSeries {
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	return BarSeries{Symbol: s.Symbol, Timeframe: s.Timeframe, Bars: s.Bars[:n]}
}

// Validate reports a malformed series: non-ascending or duplicate
// timestamps, or non-finite values.
func (s BarSeries) Validate() error {
	for i, b := range s.Bars {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NewProviderError(s.Symbol, fmt.Errorf("%w: non-finite value at bar %d", ErrMalformedSeries, i))
			}
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return NewProviderError(s.Symbol, fmt.Errorf("%w: timestamps not strictly ascending at bar %d", ErrMalformedSeries, i))
		}
	}
	return nil
}

type CompositeBar struct {
	Time    time.Time `json:"time"`
	HAOpen  float64   `json:"haOpen"`
	HAHigh  float64   `json:"haHigh"`
	HALow   float64   `json:"haLow"`
	HAClose float64   `json:"haClose"`
}

type ZeroLagBand struct {
	FastUp   float64 `json:"fastUp"`
	SlowUp   float64 `json:"slowUp"`
	FastDown float64 `json:"fastDown"`
	SlowDown float64 `json:"slowDown"`
}

type TriggerFlags struct {
	Time time.Time `json:"time"`
	Upw  bool      `json:"upw"`
	Dnw  bool      `json:"dnw"`
}

// TrendState is the persistent regime produced by the state machine.
// StateUnknown only appears before a series has a determined regime.
type TrendState uint8

const (
	StateUnknown TrendState = iota
	StateUp
	StateDown
)

func (s TrendState) String() string {
	switch s {
	case StateUp:
		return "UP"
	case StateDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// Value is the tri-state chart encoding: 100 up, 0 down, 50 undetermined.
func (s TrendState) Value() int {
	switch s {
	case StateUp:
		return 100
	case StateDown:
		return 0
	default:
		return 50
	}
}

func (s TrendState) Opposite() TrendState {
	switch s {
	case StateUp:
		return StateDown
	case StateDown:
		return StateUp
	default:
		return StateUnknown
	}
}

func (s TrendState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TrendState) UnmarshalText(b []byte) error {
	st, err := ParseTrendState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func ParseTrendState(raw string) (TrendState, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "UP":
		return StateUp, nil
	case "DOWN":
		return StateDown, nil
	case "", "UNKNOWN":
		return StateUnknown, nil
	}
	return StateUnknown, &ParameterError{Name: "state", Value: raw, Reason: "must be UP or DOWN"}
}

type StatePoint struct {
	Time    time.Time  `json:"time"`
	State   TrendState `json:"state"`
	Changed bool       `json:"changed"`
}

type SeriesPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

const AnomalySimultaneousTrigger = "simultaneous_trigger"

type Anomaly struct {
	Index    int        `json:"index"`
	Time     time.Time  `json:"time"`
	Kind     string     `json:"kind"`
	Resolved TrendState `json:"resolved"`
}

type PillarKind string

const (
	PillarTrend      PillarKind = "trend"
	PillarMomentum   PillarKind = "momentum"
	PillarVolatility PillarKind = "volatility"
	PillarVolume     PillarKind = "volume"
	PanelStops       PillarKind = "stops"
)

var Pillars = []PillarKind{PillarTrend, PillarMomentum, PillarVolatility, PillarVolume}

func IsPillar(k PillarKind) bool {
	for _, p := range Pillars {
		if p == k {
			return true
		}
	}
	return false
}

type PanelStatus string

const (
	StatusPass PanelStatus = "PASS"
	StatusFail PanelStatus = "FAIL"
	StatusInfo PanelStatus = "INFO"
)

type Panel struct {
	ID     PillarKind  `json:"id"`
	Title  string      `json:"title"`
	Score  float64     `json:"score"`
	Status PanelStatus `json:"status"`
	Reason string      `json:"reason"`
}

type Readiness struct {
	Score      float64 `json:"score"`
	Ready      bool    `json:"ready"`
	Components []Panel `json:"components"`
}

func (r Readiness) Panel(id PillarKind) (Panel, bool) {
	for _, p := range r.Components {
		if p.ID == id {
			return p, true
		}
	}
	return Panel{}, false
}

type PositionSide string

const SideLong PositionSide = "long"

type Position struct {
	EntryTime  time.Time    `json:"entryTime"`
	EntryPrice float64      `json:"entryPrice"`
	Quantity   float64      `json:"quantity"`
	Side       PositionSide `json:"side"`
	EntryIndex int          `json:"-"`
	ExitTime   *time.Time   `json:"exitTime,omitempty"`
	ExitPrice  *float64     `json:"exitPrice,omitempty"`
}

func (p Position) Open() bool { return p.ExitTime == nil }

const (
	ExitSignal      = "signal"
	ExitStopLoss    = "stop_loss"
	ExitTakeProfit  = "take_profit"
	ExitMaxHold     = "max_hold"
	ExitEndOfSeries = "end_of_series"
)

type Trade struct {
	EntryDate  time.Time `json:"entryDate"`
	ExitDate   time.Time `json:"exitDate"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	ReturnPct  float64   `json:"returnPct"`
	ExitReason string    `json:"exitReason"`
}

type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

type BacktestStats struct {
	WinRate        float64 `json:"winRate"`
	AvgReturn      float64 `json:"avgReturn"`
	TotalPnL       float64 `json:"totalPnl"`
	TotalReturnPct float64 `json:"totalReturnPct"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	Sharpe         float64 `json:"sharpe"`
	TradeCount     int     `json:"tradeCount"`
}

type BacktestResult struct {
	Trades      []Trade       `json:"trades"`
	Stats       BacktestStats `json:"stats"`
	EquityCurve []EquityPoint `json:"equityCurve"`
}

// BacktestRun is the persisted summary of one backtest invocation.
type BacktestRun struct {
	ID        string        `json:"id"`
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	Strategy  string        `json:"strategy"`
	Bars      int           `json:"bars"`
	Stats     BacktestStats `json:"stats"`
	CreatedAt time.Time     `json:"created_at"`
}
