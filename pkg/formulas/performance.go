package formulas

import "math"

// MaxDrawdown calculates the largest peak-to-trough decline in a value
// series, as a positive percentage (25.0 = 25% below the prior peak).
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// AnnualizedReturn converts a total growth over a number of calendar days to
// a yearly compound rate, in percent.
func AnnualizedReturn(initial, final float64, days int) float64 {
	if initial <= 0 || days <= 0 {
		return 0
	}
	years := float64(days) / 365.0
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

// DownsideVolatility is the annualized population standard deviation of the
// negative entries of a daily return series. Falls back to the full-series
// volatility when there are no negative returns.
func DownsideVolatility(dailyReturns []float64) float64 {
	var negative []float64
	for _, r := range dailyReturns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	if len(negative) == 0 {
		return AnnualizedVolatility(dailyReturns)
	}
	return AnnualizedVolatility(negative)
}
