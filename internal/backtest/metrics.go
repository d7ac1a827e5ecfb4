package backtest

import (
	"math"

	"macmarket/internal/domain"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

func computeStats(trades []domain.Trade, curve []domain.EquityPoint, initialCash float64) domain.BacktestStats {
	stats := domain.BacktestStats{TradeCount: len(trades)}

	if len(trades) > 0 {
		wins := 0
		returns := make([]float64, len(trades))
		for i, t := range trades {
			stats.TotalPnL += t.PnL
			returns[i] = t.ReturnPct
			if t.PnL > 0 {
				wins++
			}
		}
		stats.WinRate = float64(wins) / float64(len(trades)) * 100
		stats.AvgReturn = stat.Mean(returns, nil)
	}

	if len(curve) > 0 && initialCash > 0 {
		final := curve[len(curve)-1].Equity
		stats.TotalReturnPct = (final - initialCash) / initialCash * 100
	}
	stats.MaxDrawdownPct = maxDrawdownPct(curve)
	stats.Sharpe = sharpe(curve)
	return stats
}

func maxDrawdownPct(curve []domain.EquityPoint) float64 {
	var peak, worst float64
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe is the annualised ratio of per-bar equity returns.
func sharpe(curve []domain.EquityPoint) float64 {
	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return math.Sqrt(tradingDaysPerYear) * mean / std
}
