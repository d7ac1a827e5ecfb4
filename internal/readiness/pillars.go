package readiness

import (
	"fmt"
	"math"

	"macmarket/internal/domain"
)

// Input is everything the pillars need for one bar.
type Input struct {
	State     domain.TrendState
	LTState   domain.TrendState
	Close     float64
	EMAFast   float64
	EMASlow   float64
	RSI       float64
	PrevRSI   float64
	ADX       float64
	ATR       float64
	OBVSlope  float64
	AvgVolume float64
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// settle keeps score and status consistent: passing pillars score at
// least floor, failing ones stay below it.
func settle(p domain.Panel, floor float64) domain.Panel {
	p.Score = clamp(p.Score, 0, 100)
	switch p.Status {
	case domain.StatusPass:
		p.Score = math.Max(p.Score, floor)
	case domain.StatusFail:
		p.Score = clamp(math.Min(p.Score, floor-1), 0, 100)
	}
	return p
}

func TrendPillar(in Input, cfg Config) domain.Panel {
	earned, possible := 0.0, 70.0
	if in.State == domain.StateUp {
		earned += 40
	}
	if in.Close > in.EMAFast {
		earned += 15
	}
	if in.EMAFast > in.EMASlow {
		earned += 15
	}
	if cfg.UseLongBias {
		possible += 30
		switch in.LTState {
		case domain.StateUp:
			earned += 30
		case domain.StateUnknown:
			earned += 15
		}
	}
	raw := 100 * earned / possible

	status := domain.StatusFail
	if in.State == domain.StateUp && raw >= cfg.TrendPassScore {
		status = domain.StatusPass
	}
	reason := fmt.Sprintf("HACO %s, close %.2f vs EMA%d %.2f, EMA%d %.2f", in.State, in.Close, cfg.EMAFast, in.EMAFast, cfg.EMASlow, in.EMASlow)
	if cfg.UseLongBias {
		reason += fmt.Sprintf(", HACOLT %s", in.LTState)
	}
	return settle(domain.Panel{
		ID:     domain.PillarTrend,
		Title:  "Trend",
		Score:  raw,
		Status: status,
		Reason: reason,
	}, cfg.PassFloor)
}

func MomentumPillar(in Input, cfg Config) domain.Panel {
	if math.IsNaN(in.RSI) {
		return settle(domain.Panel{
			ID:     domain.PillarMomentum,
			Title:  "Momentum",
			Status: domain.StatusFail,
			Reason: fmt.Sprintf("RSI%d warming up", cfg.RSIPeriod),
		}, cfg.PassFloor)
	}

	raw := (in.RSI - 40) / 30 * 100
	rising := math.IsNaN(in.PrevRSI) || in.RSI >= in.PrevRSI
	status := domain.StatusFail
	if in.RSI >= cfg.RSIThreshold && rising {
		status = domain.StatusPass
	}
	direction := "rising"
	if !rising {
		direction = "falling"
	}
	return settle(domain.Panel{
		ID:     domain.PillarMomentum,
		Title:  "Momentum",
		Score:  raw,
		Status: status,
		Reason: fmt.Sprintf("RSI%d %.1f %s (threshold %.0f)", cfg.RSIPeriod, in.RSI, direction, cfg.RSIThreshold),
	}, cfg.PassFloor)
}

func VolatilityPillar(in Input, cfg Config) domain.Panel {
	var raw float64
	switch {
	case in.ADX < 20:
		raw = 0
	case in.ADX < 25:
		raw = 50
	case in.ADX < 40:
		raw = 80
	default:
		raw = 100
	}
	status := domain.StatusFail
	if in.ADX >= cfg.ADXMin {
		status = domain.StatusPass
	}
	return settle(domain.Panel{
		ID:     domain.PillarVolatility,
		Title:  "Trend strength",
		Score:  raw,
		Status: status,
		Reason: fmt.Sprintf("ADX%d %.1f (min %.0f)", cfg.ADXPeriod, in.ADX, cfg.ADXMin),
	}, cfg.PassFloor)
}

func VolumePillar(in Input, cfg Config) domain.Panel {
	var rel float64
	if in.AvgVolume > 0 {
		rel = clamp(in.OBVSlope/in.AvgVolume, -1, 1)
	}
	var raw float64
	switch {
	case in.OBVSlope > 0:
		raw = 60 + 40*rel
	case in.OBVSlope < 0:
		raw = 40 + 40*rel
	default:
		raw = 40
	}
	status := domain.StatusFail
	if in.OBVSlope > cfg.VolumeMinSlope {
		status = domain.StatusPass
	}
	return settle(domain.Panel{
		ID:     domain.PillarVolume,
		Title:  "Volume",
		Score:  raw,
		Status: status,
		Reason: fmt.Sprintf("OBV slope %.0f/bar over %d bars", in.OBVSlope, cfg.OBVWindow),
	}, cfg.PassFloor)
}

// StopsPanel is informational and never part of the aggregate.
func StopsPanel(in Input, cfg Config) domain.Panel {
	stop := in.Close - cfg.ATRStopMult*in.ATR
	return domain.Panel{
		ID:     domain.PanelStops,
		Title:  "Stops",
		Score:  float64(in.LTState.Value()),
		Status: domain.StatusInfo,
		Reason: fmt.Sprintf("ATR stop %.2f (%.1fx ATR%d %.2f), HACOLT %s", stop, cfg.ATRStopMult, cfg.ATRPeriod, in.ATR, in.LTState),
	}
}

// Combine is the weighted average of the pillar panels, clamped to [0,100].
func Combine(panels []domain.Panel, weights map[domain.PillarKind]float64) float64 {
	var total, sum float64
	for _, p := range panels {
		if !domain.IsPillar(p.ID) {
			continue
		}
		w := weights[p.ID]
		if w <= 0 {
			continue
		}
		total += w * p.Score
		sum += w
	}
	if sum == 0 {
		return 0
	}
	return clamp(total/sum, 0, 100)
}
