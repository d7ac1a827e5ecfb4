package readiness

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"macmarket/internal/domain"

	"github.com/creasty/defaults"
)

// Config holds every threshold and weight the scorer uses.
type Config struct {
	Weights        map[domain.PillarKind]float64 `json:"weights"`
	ReadyThreshold float64                       `json:"ready_threshold" default:"75"`
	PassFloor      float64                       `json:"pass_floor" default:"75"`

	EMAFast        int     `json:"ema_fast" default:"50"`
	EMASlow        int     `json:"ema_slow" default:"200"`
	TrendPassScore float64 `json:"trend_pass_score" default:"60"`
	UseLongBias    bool    `json:"use_long_bias"`

	RSIPeriod    int     `json:"rsi_period" default:"14"`
	RSIThreshold float64 `json:"rsi_threshold" default:"55"`

	ADXPeriod int     `json:"adx_period" default:"14"`
	ADXMin    float64 `json:"adx_min" default:"25"`

	OBVWindow      int     `json:"obv_window" default:"10"`
	VolumeMinSlope float64 `json:"volume_min_slope"`

	ATRPeriod   int     `json:"atr_period" default:"14"`
	ATRStopMult float64 `json:"atr_stop_mult" default:"2"`
}

func DefaultConfig() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("readiness: apply default config: %v", err))
	}
	c.UseLongBias = true
	c.Weights = EqualWeights()
	return c
}

func EqualWeights() map[domain.PillarKind]float64 {
	w := make(map[domain.PillarKind]float64, len(domain.Pillars))
	for _, p := range domain.Pillars {
		w[p] = 1
	}
	return w
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"ready_threshold":  c.ReadyThreshold,
		"pass_floor":       c.PassFloor,
		"trend_pass_score": c.TrendPassScore,
		"rsi_threshold":    c.RSIThreshold,
		"adx_min":          c.ADXMin,
		"volume_min_slope": c.VolumeMinSlope,
		"atr_stop_mult":    c.ATRStopMult,
	} {
		if !finite(v) {
			return &domain.ParameterError{Name: name, Value: v, Reason: "must be a finite number"}
		}
	}
	if c.ReadyThreshold < 0 || c.ReadyThreshold > 100 {
		return &domain.ParameterError{Name: "ready_threshold", Value: c.ReadyThreshold, Reason: "must be within [0,100]"}
	}
	if c.PassFloor <= 0 || c.PassFloor > 100 {
		return &domain.ParameterError{Name: "pass_floor", Value: c.PassFloor, Reason: "must be within (0,100]"}
	}
	if c.TrendPassScore < 0 || c.TrendPassScore > 100 {
		return &domain.ParameterError{Name: "trend_pass_score", Value: c.TrendPassScore, Reason: "must be within [0,100]"}
	}
	for name, v := range map[string]int{
		"ema_fast":   c.EMAFast,
		"ema_slow":   c.EMASlow,
		"rsi_period": c.RSIPeriod,
		"adx_period": c.ADXPeriod,
		"obv_window": c.OBVWindow,
		"atr_period": c.ATRPeriod,
	} {
		if v <= 0 {
			return &domain.ParameterError{Name: name, Value: v, Reason: "must be positive"}
		}
	}
	if c.ATRStopMult <= 0 {
		return &domain.ParameterError{Name: "atr_stop_mult", Value: c.ATRStopMult, Reason: "must be positive"}
	}

	var sum float64
	for kind, w := range c.Weights {
		if !domain.IsPillar(kind) {
			return &domain.ParameterError{Name: "weights", Value: kind, Reason: "unknown pillar"}
		}
		if !finite(w) {
			return &domain.ParameterError{Name: "weights." + string(kind), Value: w, Reason: "must be a finite number"}
		}
		if w < 0 {
			return &domain.ParameterError{Name: "weights." + string(kind), Value: w, Reason: "must not be negative"}
		}
		sum += w
	}
	if sum <= 0 || !finite(sum) {
		return &domain.ParameterError{Name: "weights", Value: c.Weights, Reason: "must sum to a positive value"}
	}
	return nil
}

// ParseWeights reads "trend:2,momentum:1" style weight lists. Pillars not
// listed get weight 0.
func ParseWeights(raw string) (map[domain.PillarKind]float64, error) {
	out := make(map[domain.PillarKind]float64, len(domain.Pillars))
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("weight %q: expected pillar:value", part)
		}
		kind := domain.PillarKind(strings.ToLower(strings.TrimSpace(name)))
		if !domain.IsPillar(kind) {
			return nil, fmt.Errorf("weight %q: unknown pillar", part)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", part, err)
		}
		if !finite(w) {
			return nil, fmt.Errorf("weight %q: must be a finite number", part)
		}
		out[kind] = w
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no weights in %q", raw)
	}
	return out, nil
}
