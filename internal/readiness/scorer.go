// Package readiness scores how ready a symbol is for a long entry from
// four independent pillars: trend, momentum, volatility and volume.
package readiness

import (
	"macmarket/internal/domain"
	"macmarket/internal/indicator"
	"macmarket/internal/signal"
)

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) (*Scorer, error) {
	if cfg.Weights == nil {
		cfg.Weights = EqualWeights()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

func (s *Scorer) Config() Config { return s.cfg }

// Score evaluates one bar's input.
func (s *Scorer) Score(in Input) domain.Readiness {
	panels := []domain.Panel{
		TrendPillar(in, s.cfg),
		MomentumPillar(in, s.cfg),
		VolatilityPillar(in, s.cfg),
		VolumePillar(in, s.cfg),
	}
	score := Combine(panels, s.cfg.Weights)
	panels = append(panels, StopsPanel(in, s.cfg))
	return domain.Readiness{
		Score:      score,
		Ready:      score >= s.cfg.ReadyThreshold,
		Components: panels,
	}
}

// Indicators are the full-length causal series behind the pillars.
type Indicators struct {
	Close   []float64
	Volume  []float64
	EMAFast []float64
	EMASlow []float64
	RSI     []float64
	ADX     []float64
	ATR     []float64
	OBV     []float64
}

func (s *Scorer) Indicators(bars []domain.Bar) *Indicators {
	n := len(bars)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		high[i], low[i], closes[i], volume[i] = b.High, b.Low, b.Close, b.Volume
	}
	return &Indicators{
		Close:   closes,
		Volume:  volume,
		EMAFast: indicator.EMA(closes, s.cfg.EMAFast),
		EMASlow: indicator.EMA(closes, s.cfg.EMASlow),
		RSI:     indicator.RSI(closes, s.cfg.RSIPeriod),
		ADX:     indicator.ADX(high, low, closes, s.cfg.ADXPeriod),
		ATR:     indicator.ATR(high, low, closes, s.cfg.ATRPeriod),
		OBV:     indicator.OBV(closes, volume),
	}
}

// InputAt assembles the pillar input for bar i from values at or before i.
func (s *Scorer) InputAt(ind *Indicators, a *signal.Analysis, i int) Input {
	in := Input{
		State:     a.HACO.States[i].State,
		LTState:   a.LTStateAt(i),
		Close:     ind.Close[i],
		EMAFast:   ind.EMAFast[i],
		EMASlow:   ind.EMASlow[i],
		RSI:       ind.RSI[i],
		PrevRSI:   ind.RSI[i],
		ADX:       ind.ADX[i],
		ATR:       ind.ATR[i],
		OBVSlope:  indicator.SlopeAt(ind.OBV, i, s.cfg.OBVWindow),
		AvgVolume: indicator.MeanAt(ind.Volume, i, s.cfg.OBVWindow),
	}
	if i > 0 {
		in.PrevRSI = ind.RSI[i-1]
	}
	return in
}

func (s *Scorer) ScoreAt(ind *Indicators, a *signal.Analysis, i int) domain.Readiness {
	return s.Score(s.InputAt(ind, a, i))
}

// ScoreLatest scores the last bar of an analysis.
func (s *Scorer) ScoreLatest(a *signal.Analysis) domain.Readiness {
	return s.ScoreAt(s.Indicators(a.Bars), a, a.LastIndex())
}
