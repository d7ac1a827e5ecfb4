package signal

import (
	"macmarket/internal/domain"
	"macmarket/internal/indicator"
)

// ComputeBands derives the fast (zero-lag TEMA of the composite close) and
// slow (zero-lag TEMA of the raw close) bands for both trigger directions.
// With flat bars the two inputs coincide and the bands never cross.
func ComputeBands(composite []domain.CompositeBar, closes []float64, lengthUp, lengthDown int) []domain.ZeroLagBand {
	haCloses := make([]float64, len(composite))
	for i := range composite {
		haCloses[i] = composite[i].HAClose
	}

	fastUp := indicator.ZeroLag(haCloses, lengthUp)
	slowUp := indicator.ZeroLag(closes, lengthUp)
	fastDown, slowDown := fastUp, slowUp
	if lengthDown != lengthUp {
		fastDown = indicator.ZeroLag(haCloses, lengthDown)
		slowDown = indicator.ZeroLag(closes, lengthDown)
	}

	out := make([]domain.ZeroLagBand, len(composite))
	for i := range out {
		out[i] = domain.ZeroLagBand{
			FastUp:   fastUp[i],
			SlowUp:   slowUp[i],
			FastDown: fastDown[i],
			SlowDown: slowDown[i],
		}
	}
	return out
}

// DetectTriggers flags the bars where a fast band crosses its slow band.
// Bar 0 has no predecessor and never fires.
func DetectTriggers(composite []domain.CompositeBar, bands []domain.ZeroLagBand) []domain.TriggerFlags {
	out := make([]domain.TriggerFlags, len(bands))
	for i := range bands {
		out[i].Time = composite[i].Time
		if i == 0 {
			continue
		}
		prev, curr := bands[i-1], bands[i]
		out[i].Upw = prev.FastUp <= prev.SlowUp && curr.FastUp > curr.SlowUp
		out[i].Dnw = prev.FastDown >= prev.SlowDown && curr.FastDown < curr.SlowDown
	}
	return out
}
