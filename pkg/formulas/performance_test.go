package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxDrawdown(t *testing.T) {
	assert.Zero(t, MaxDrawdown(nil))
	assert.Zero(t, MaxDrawdown([]float64{100, 110, 120}))

	// Peak 120, trough 90: 25% drawdown despite the later recovery.
	got := MaxDrawdown([]float64{100, 120, 90, 130})
	assert.InDelta(t, 25.0, got, 1e-9)
}

func TestAnnualizedReturn(t *testing.T) {
	assert.Zero(t, AnnualizedReturn(0, 110, 365))
	assert.Zero(t, AnnualizedReturn(100, 110, 0))

	// 10% over exactly one year is 10% annualized.
	assert.InDelta(t, 10.0, AnnualizedReturn(100, 110, 365), 1e-9)

	// 10% over half a year compounds to ~21% annualized.
	expected := (math.Pow(1.10, 2) - 1) * 100
	assert.InDelta(t, expected, AnnualizedReturn(100, 110, 182), 0.15)
}

func TestDownsideVolatility(t *testing.T) {
	// Only the negative entries drive the result.
	daily := []float64{0.02, -0.01, 0.03, -0.01}
	assert.InDelta(t, 0.0, DownsideVolatility(daily), 1e-9)

	mixed := []float64{0.02, -0.01, -0.03}
	negOnly := AnnualizedVolatility([]float64{-0.01, -0.03})
	assert.InDelta(t, negOnly, DownsideVolatility(mixed), 1e-9)

	// All-positive series falls back to full-series volatility.
	positive := []float64{0.01, 0.02}
	assert.InDelta(t, AnnualizedVolatility(positive), DownsideVolatility(positive), 1e-9)
}
