// Package indicator holds causal series math: the value at index i only
// depends on inputs at indices <= i, and every output has the input length.
package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EMA is seeded with the first value.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// TEMA is the triple EMA: 3*e1 - 3*e2 + e3, each stage smoothing the last.
func TEMA(values []float64, period int) []float64 {
	e1 := EMA(values, period)
	e2 := EMA(e1, period)
	e3 := EMA(e2, period)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = 3*e1[i] - 3*e2[i] + e3[i]
	}
	return out
}

// ZeroLag applies the zero-lag step to two TEMA stages:
// t1 + (t1 - t2) with t1 = TEMA(x) and t2 = TEMA(t1).
func ZeroLag(values []float64, period int) []float64 {
	first := TEMA(values, period)
	second := TEMA(first, period)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = first[i] + (first[i] - second[i])
	}
	return out
}

// SMA is NaN until a full window is available.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// RSI uses Wilder smoothing and is NaN for the first period bars.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(closes) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// rma is Wilder's running moving average seeded with the first value.
func rma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	out[0] = values[0]
	p := float64(period)
	for i := 1; i < len(values); i++ {
		out[i] = (out[i-1]*(p-1) + values[i]) / p
	}
	return out
}

func ATR(high, low, close []float64, period int) []float64 {
	return rma(TrueRange(high, low, close), period)
}

// ADX is Wilder's average directional index.
func ADX(high, low, close []float64, period int) []float64 {
	n := len(close)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	tr := rma(TrueRange(high, low, close), period)
	smPlus := rma(plusDM, period)
	smMinus := rma(minusDM, period)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if tr[i] == 0 {
			continue
		}
		plusDI := 100 * smPlus[i] / tr[i]
		minusDI := 100 * smMinus[i] / tr[i]
		if sum := plusDI + minusDI; sum > 0 {
			dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
		}
	}
	return rma(dx, period)
}

// OBV is on-balance volume starting at zero.
func OBV(close, volume []float64) []float64 {
	out := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func trailing(values []float64, i, window int) []float64 {
	if i < 0 || i >= len(values) || window <= 0 {
		return nil
	}
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	return values[start : i+1]
}

// SlopeAt is the least-squares slope per bar of the window ending at i.
func SlopeAt(values []float64, i, window int) float64 {
	ys := trailing(values, i, window)
	if len(ys) < 2 {
		return 0
	}
	xs := make([]float64, len(ys))
	for j := range xs {
		xs[j] = float64(j)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

// MeanAt is the mean of the window ending at i.
func MeanAt(values []float64, i, window int) float64 {
	ys := trailing(values, i, window)
	if len(ys) == 0 {
		return 0
	}
	return stat.Mean(ys, nil)
}
