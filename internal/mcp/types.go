package mcp

import (
	"fmt"
	"strings"

	"macmarket/internal/domain"
	"macmarket/internal/service"
	"macmarket/internal/signal"
)

const (
	defaultPointLimit = 50
	maxPointLimit     = 500
	maxScanSymbols    = 50
)

type hacoGetInput struct {
	Symbol        string `json:"symbol" jsonschema:"ticker symbol (e.g. AAPL, BTC-USD)"`
	Timeframe     string `json:"timeframe,omitempty" jsonschema:"bar timeframe: 15m, 1h, 4h, 1d, 1w (default 1d)"`
	LengthUp      int    `json:"lengthUp,omitempty" jsonschema:"up-band length (default 34)"`
	LengthDown    int    `json:"lengthDown,omitempty" jsonschema:"down-band length (default 34)"`
	AlertLookback int    `json:"alertLookback,omitempty" jsonschema:"bars counted for the latest upw/dnw (default 1)"`
	Lookback      int    `json:"lookback,omitempty" jsonschema:"bars requested (default 500)"`
	Points        int    `json:"points,omitempty" jsonschema:"trailing points returned, max 500 (default 50)"`
}

type hacoPoint struct {
	TimeUnix int64   `json:"time_unix"`
	Close    float64 `json:"close"`
	HAClose  float64 `json:"haClose"`
	FastUp   float64 `json:"fastUp"`
	SlowUp   float64 `json:"slowUp"`
	FastDown float64 `json:"fastDown"`
	SlowDown float64 `json:"slowDown"`
	Upw      bool    `json:"upw"`
	Dnw      bool    `json:"dnw"`
	State    string  `json:"state"`
	Changed  bool    `json:"changed"`
	Value    int     `json:"value"`
}

type hacoGetOutput struct {
	Symbol    string      `json:"symbol"`
	Timeframe string      `json:"timeframe"`
	State     string      `json:"state"`
	Changed   bool        `json:"changed"`
	Upw       bool        `json:"upw"`
	Dnw       bool        `json:"dnw"`
	Reason    string      `json:"reason"`
	LTState   string      `json:"lt_state"`
	Anomalies int         `json:"anomalies"`
	Points    []hacoPoint `json:"points"`
}

type hacoScanInput struct {
	Symbols       []string `json:"symbols" jsonschema:"ticker symbols to scan"`
	Timeframe     string   `json:"timeframe,omitempty" jsonschema:"bar timeframe (default 1d)"`
	LengthUp      int      `json:"lengthUp,omitempty" jsonschema:"up-band length (default 34)"`
	LengthDown    int      `json:"lengthDown,omitempty" jsonschema:"down-band length (default 34)"`
	AlertLookback int      `json:"alertLookback,omitempty" jsonschema:"bars counted for upw/dnw (default 1)"`
}

type scanRow struct {
	Symbol    string  `json:"symbol"`
	Upw       bool    `json:"upw"`
	Dnw       bool    `json:"dnw"`
	State     string  `json:"state,omitempty"`
	Changed   bool    `json:"changed"`
	Reason    string  `json:"reason,omitempty"`
	LTState   string  `json:"lt_state,omitempty"`
	Readiness float64 `json:"readiness"`
	Error     string  `json:"error,omitempty"`
}

type hacoScanOutput struct {
	Rows []scanRow `json:"rows"`
}

type backtestRunInput struct {
	Symbol        string   `json:"symbol" jsonschema:"ticker symbol"`
	Timeframe     string   `json:"timeframe,omitempty" jsonschema:"bar timeframe (default 1d)"`
	Lookback      int      `json:"lookback,omitempty" jsonschema:"bars replayed (default 500)"`
	Strategy      string   `json:"strategy,omitempty" jsonschema:"strategy name, see macmarket://strategies (default haco)"`
	InitialCash   float64  `json:"initial_cash,omitempty" jsonschema:"starting cash (default 10000)"`
	Quantity      float64  `json:"quantity,omitempty" jsonschema:"units per trade (default 1)"`
	MinReadiness  *float64 `json:"min_readiness,omitempty" jsonschema:"readiness gate for haco_ready, 0-100"`
	StopLossPct   float64  `json:"stop_loss_pct,omitempty" jsonschema:"stop-loss percent below entry, 0 disables"`
	TakeProfitPct float64  `json:"take_profit_pct,omitempty" jsonschema:"take-profit percent above entry, 0 disables"`
	MaxHoldBars   int      `json:"max_hold_bars,omitempty" jsonschema:"bars before a forced exit, 0 disables"`
}

type backtestRunOutput struct {
	ID          string               `json:"id"`
	Symbol      string               `json:"symbol"`
	Timeframe   string               `json:"timeframe"`
	Strategy    string               `json:"strategy"`
	Stats       domain.BacktestStats `json:"stats"`
	FinalEquity float64              `json:"final_equity"`
	Trades      []tradeOutput        `json:"trades"`
}

type tradeOutput struct {
	EntryUnix  int64   `json:"entry_unix"`
	ExitUnix   int64   `json:"exit_unix"`
	EntryPrice float64 `json:"entryPrice"`
	ExitPrice  float64 `json:"exitPrice"`
	Quantity   float64 `json:"quantity"`
	PnL        float64 `json:"pnl"`
	ReturnPct  float64 `json:"returnPct"`
	ExitReason string  `json:"exitReason"`
}

type alertTestInput struct {
	Symbol              string   `json:"symbol" jsonschema:"ticker symbol"`
	Mode                string   `json:"mode,omitempty" jsonschema:"mode profile: day, swing, position, crypto"`
	Timeframe           string   `json:"tf,omitempty" jsonschema:"timeframe override"`
	RequireTrendPass    bool     `json:"require_trend_pass,omitempty" jsonschema:"require the trend pillar to pass"`
	RequireMomentumPass bool     `json:"require_momentum_pass,omitempty" jsonschema:"require the momentum pillar to pass"`
	MinTotalScore       *float64 `json:"min_total_score,omitempty" jsonschema:"minimum readiness score, 0-100"`
}

type alertTestOutput struct {
	Symbol    string  `json:"symbol"`
	Triggered bool    `json:"triggered"`
	Message   string  `json:"message"`
	State     string  `json:"state"`
	Changed   bool    `json:"changed"`
	Readiness float64 `json:"readiness"`
	Ready     bool    `json:"ready"`
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	return symbol, nil
}

func normalizeTimeframe(tf string) (string, error) {
	tf = strings.TrimSpace(tf)
	if tf == "" {
		return "1d", nil
	}
	if !domain.IsSupportedTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return tf, nil
}

func normalizePointLimit(n int) int {
	if n <= 0 {
		return defaultPointLimit
	}
	if n > maxPointLimit {
		return maxPointLimit
	}
	return n
}

func normalizeScanSymbols(symbols []string) ([]string, error) {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if len(out) > maxScanSymbols {
		return nil, fmt.Errorf("at most %d symbols per scan", maxScanSymbols)
	}
	return out, nil
}

// mergeParams overlays non-zero lengths on the defaults.
func mergeParams(base signal.Params, lengthUp, lengthDown, alertLookback int) signal.Params {
	if lengthUp != 0 {
		base.LengthUp = lengthUp
	}
	if lengthDown != 0 {
		base.LengthDown = lengthDown
	}
	if alertLookback != 0 {
		base.AlertLookback = alertLookback
	}
	return base
}

func toHACOOutput(s *service.HACOSeries, points int) hacoGetOutput {
	out := hacoGetOutput{
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		State:     s.Last.State.String(),
		Changed:   s.Last.Changed,
		Upw:       s.Last.Upw,
		Dnw:       s.Last.Dnw,
		Reason:    s.Last.Reason,
		LTState:   s.Last.LTState.String(),
		Anomalies: len(s.Anomalies),
	}
	tail := s.Series
	if len(tail) > points {
		tail = tail[len(tail)-points:]
	}
	out.Points = make([]hacoPoint, len(tail))
	for i, p := range tail {
		out.Points[i] = hacoPoint{
			TimeUnix: p.Time.Unix(),
			Close:    p.Close,
			HAClose:  p.HAClose,
			FastUp:   p.FastUp,
			SlowUp:   p.SlowUp,
			FastDown: p.FastDown,
			SlowDown: p.SlowDown,
			Upw:      p.Upw,
			Dnw:      p.Dnw,
			State:    p.State.String(),
			Changed:  p.Changed,
			Value:    p.Value,
		}
	}
	return out
}

func toBacktestOutput(resp *service.BacktestResponse) backtestRunOutput {
	out := backtestRunOutput{
		ID:        resp.ID,
		Symbol:    resp.Symbol,
		Timeframe: resp.Timeframe,
		Strategy:  resp.Strategy,
		Stats:     resp.Stats,
		Trades:    make([]tradeOutput, len(resp.Trades)),
	}
	for i, tr := range resp.Trades {
		out.Trades[i] = tradeOutput{
			EntryUnix:  tr.EntryDate.Unix(),
			ExitUnix:   tr.ExitDate.Unix(),
			EntryPrice: tr.EntryPrice,
			ExitPrice:  tr.ExitPrice,
			Quantity:   tr.Quantity,
			PnL:        tr.PnL,
			ReturnPct:  tr.ReturnPct,
			ExitReason: tr.ExitReason,
		}
	}
	if n := len(resp.EquityCurve); n > 0 {
		out.FinalEquity = resp.EquityCurve[n-1].Equity
	}
	return out
}

func toScanRows(rows []domain.ScanRow) []scanRow {
	out := make([]scanRow, len(rows))
	for i, r := range rows {
		if r.Failed() {
			out[i] = scanRow{Symbol: r.Symbol, Error: r.Error}
			continue
		}
		out[i] = scanRow{
			Symbol:    r.Symbol,
			Upw:       r.Upw,
			Dnw:       r.Dnw,
			State:     r.State.String(),
			Changed:   r.Changed,
			Reason:    r.Reason,
			LTState:   r.LTState.String(),
			Readiness: r.Readiness,
		}
	}
	return out
}
