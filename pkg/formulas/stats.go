package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// WeightedMean calculates the weighted mean of values; weights are
// renormalized over the provided terms. Returns 0 for empty input.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}
	return stat.Mean(values, weights)
}

// MeanNonZero averages only the non-zero entries, the convention used by the
// factor composites where zero means "input unavailable". Returns 0 when no
// entry is non-zero.
func MeanNonZero(data []float64) float64 {
	var sum float64
	var n int
	for _, v := range data {
		if v != 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// StdDev calculates the sample standard deviation.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// PopStdDev calculates the population standard deviation (divisor n).
func PopStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := stat.Mean(data, nil)
	var sum float64
	for _, v := range data {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(data)))
}

// Returns converts a price series to simple periodic returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i].
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return out
}

// AnnualizedVolatility scales the population standard deviation of daily
// returns by sqrt(252 trading days).
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return PopStdDev(dailyReturns) * math.Sqrt(252)
}

// Herfindahl computes the Herfindahl-Hirschman concentration index of a set
// of absolute allocations: the sum of squared shares of the total. 1/n for a
// perfectly even book, approaching 1.0 for a single concentrated position.
func Herfindahl(allocations []float64) float64 {
	var total float64
	for _, a := range allocations {
		total += math.Abs(a)
	}
	if total == 0 {
		return 0
	}
	var hhi float64
	for _, a := range allocations {
		share := math.Abs(a) / total
		hhi += share * share
	}
	return hhi
}
