package signal

import (
	"math"

	"macmarket/internal/domain"
)

// HeikinAshi smooths raw bars into composite candles. haOpen is seeded
// from the first bar's open/close midpoint.
func HeikinAshi(bars []domain.Bar) []domain.CompositeBar {
	out := make([]domain.CompositeBar, len(bars))
	for i, b := range bars {
		haClose := (b.Open + b.High + b.Low + b.Close) / 4
		var haOpen float64
		if i == 0 {
			haOpen = (b.Open + b.Close) / 2
		} else {
			haOpen = (out[i-1].HAOpen + out[i-1].HAClose) / 2
		}
		out[i] = domain.CompositeBar{
			Time:    b.Time,
			HAOpen:  haOpen,
			HAHigh:  math.Max(b.High, math.Max(haOpen, haClose)),
			HALow:   math.Min(b.Low, math.Min(haOpen, haClose)),
			HAClose: haClose,
		}
	}
	return out
}
