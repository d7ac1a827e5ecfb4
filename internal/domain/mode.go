package domain

import "time"

type Mindset struct {
	Tagline       string   `json:"tagline" yaml:"tagline"`
	HoldingPeriod string   `json:"holding_period" yaml:"holding_period"`
	Focus         []string `json:"focus" yaml:"focus"`
}

type AdvancedTab struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Indicators  []string `json:"indicators" yaml:"indicators"`
}

// ModeProfile tunes the dashboard for a trading horizon.
type ModeProfile struct {
	Key               string        `json:"key" yaml:"key"`
	Label             string        `json:"label" yaml:"label"`
	Timeframe         string        `json:"timeframe" yaml:"timeframe" default:"1d"`
	Lookback          int           `json:"lookback" yaml:"lookback" default:"500"`
	ATRStopMult       float64       `json:"atr_stop_mult" yaml:"atr_stop_mult" default:"2"`
	EntryMinReadiness float64       `json:"entry_min_readiness" yaml:"entry_min_readiness" default:"60"`
	Mindset           Mindset       `json:"mindset" yaml:"mindset"`
	Playbook          []string      `json:"playbook" yaml:"playbook"`
	Watchlist         []string      `json:"watchlist" yaml:"watchlist"`
	Tabs              []AdvancedTab `json:"advanced_tabs" yaml:"advanced_tabs"`
}

type AlertRules struct {
	RequireTrendPass    bool     `json:"require_trend_pass"`
	RequireMomentumPass bool     `json:"require_momentum_pass"`
	MinTotalScore       *float64 `json:"min_total_score,omitempty"`
	OnStateChange       bool     `json:"on_state_change"`
}

type AlertRule struct {
	ID        int64      `json:"id"`
	Symbol    string     `json:"symbol"`
	Mode      string     `json:"mode"`
	Timeframe string     `json:"timeframe"`
	ChatID    int64      `json:"chat_id"`
	Rules     AlertRules `json:"rules"`
	CreatedAt time.Time  `json:"created_at"`
}

// AlertCursor records what an alert consumer has already seen.
type AlertCursor struct {
	LastState   TrendState `json:"last_state"`
	LastBarTime time.Time  `json:"last_bar_time"`
}
