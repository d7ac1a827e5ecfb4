// Package alert evaluates alert rules against the latest bar of an analysis.
// Deduplication state lives in a cursor the caller loads and stores.
package alert

import (
	"fmt"
	"strings"
	"time"

	"macmarket/internal/domain"
	"macmarket/internal/signal"
)

type Result struct {
	Symbol    string             `json:"symbol"`
	Triggered bool               `json:"triggered"`
	Notify    bool               `json:"notify"`
	Message   string             `json:"message"`
	Summary   string             `json:"summary"`
	State     domain.TrendState  `json:"state"`
	Changed   bool               `json:"changed"`
	BarTime   time.Time          `json:"bar_time"`
	Close     float64            `json:"close"`
	Readiness domain.Readiness   `json:"readiness"`
	Cursor    domain.AlertCursor `json:"cursor"`
}

// Evaluate checks rules against the last bar. A nil cursor means nothing
// has been seen yet. The returned cursor always reflects the latest bar
// and should be stored by the caller whether or not a notification went
// out.
func Evaluate(a *signal.Analysis, r domain.Readiness, rules domain.AlertRules, cursor *domain.AlertCursor) (Result, error) {
	if a == nil || a.HACO == nil || len(a.Bars) == 0 {
		return Result{}, &domain.InsufficientDataError{Have: 0, Need: 1}
	}
	i := a.LastIndex()
	bar := a.Bars[i]
	st := a.HACO.States[i]

	res := Result{
		Symbol:    a.Symbol,
		Triggered: Matches(r, rules),
		State:     st.State,
		Changed:   st.Changed,
		BarTime:   bar.Time,
		Close:     bar.Close,
		Readiness: r,
		Cursor:    domain.AlertCursor{LastState: st.State, LastBarTime: bar.Time},
		Summary:   Summary(r),
	}

	fresh := cursor == nil || bar.Time.After(cursor.LastBarTime)
	flipped := cursor == nil || cursor.LastState != st.State
	res.Notify = res.Triggered && fresh && (!rules.OnStateChange || flipped)
	res.Message = message(a, res)
	return res, nil
}

// Matches reports whether every enabled rule holds. No enabled rules
// always matches.
func Matches(r domain.Readiness, rules domain.AlertRules) bool {
	if rules.RequireTrendPass && !passed(r, domain.PillarTrend) {
		return false
	}
	if rules.RequireMomentumPass && !passed(r, domain.PillarMomentum) {
		return false
	}
	if rules.MinTotalScore != nil && r.Score < *rules.MinTotalScore {
		return false
	}
	return true
}

func passed(r domain.Readiness, id domain.PillarKind) bool {
	p, ok := r.Panel(id)
	return ok && p.Status == domain.StatusPass
}

// Summary renders one line per panel.
func Summary(r domain.Readiness) string {
	titles := []struct {
		id    domain.PillarKind
		label string
	}{
		{domain.PillarTrend, "Trend"},
		{domain.PillarMomentum, "Momentum"},
		{domain.PillarVolatility, "Volatility"},
		{domain.PillarVolume, "Volume"},
	}
	lines := make([]string, 0, len(titles)+1)
	for _, t := range titles {
		p, ok := r.Panel(t.id)
		if !ok {
			lines = append(lines, t.label+": n/a")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", t.label, p.Status, p.Reason))
	}
	if p, ok := r.Panel(domain.PanelStops); ok {
		lines = append(lines, "Stops: "+p.Reason)
	}
	return strings.Join(lines, "\n")
}

func message(a *signal.Analysis, res Result) string {
	verdict := "no alert"
	if res.Triggered {
		verdict = "alert"
	}
	head := fmt.Sprintf("%s %s (HACO %s) %s: readiness %.0f/100, close %.2f at %s",
		a.Symbol, res.State, a.Timeframe, verdict, res.Readiness.Score, res.Close,
		res.BarTime.UTC().Format("2006-01-02 15:04 UTC"))
	if res.Changed {
		head += ", state changed on this bar"
	}
	return head + "\n" + res.Summary
}
