package risk

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqclab/strategy-engine/internal/modules/optimizer"
)

func testManager() *Manager {
	return NewManager(DefaultConstraints(), zerolog.Nop())
}

// balancedPortfolio is dollar-neutral with four equal positions and a low
// expected volatility, so it clears every default constraint.
func balancedPortfolio() *optimizer.Recommendation {
	longs := []optimizer.Position{
		{Symbol: "A.US", Side: optimizer.SideLong, Weight: 5, Allocation: 250_000},
		{Symbol: "B.US", Side: optimizer.SideLong, Weight: 5, Allocation: 250_000},
	}
	shorts := []optimizer.Position{
		{Symbol: "C.US", Side: optimizer.SideShort, Weight: 5, Allocation: 250_000},
		{Symbol: "D.US", Side: optimizer.SideShort, Weight: 5, Allocation: 250_000},
	}
	return &optimizer.Recommendation{
		LongPositions:      longs,
		ShortPositions:     shorts,
		TotalLongExposure:  500_000,
		TotalShortExposure: 500_000,
		NetExposure:        0,
		GrossExposure:      1_000_000,
		ExpectedVolatility: 5.0,
	}
}

func TestAssessHealthyPortfolio(t *testing.T) {
	m := testManager()

	assessment := m.Assess(balancedPortfolio(), 18.0)

	assert.True(t, assessment.IsAcceptable)
	assert.Empty(t, assessment.Violations)
	assert.Equal(t, LevelModerate, assessment.OverallRiskLevel) // VaR95 = 8.2 > 7
	assert.Contains(t, assessment.Recommendations[0], "healthy")
}

func TestAssessMetricFormulas(t *testing.T) {
	m := testManager()

	p := balancedPortfolio()
	p.ExpectedVolatility = 4.0

	metrics := m.Assess(p, 0).Metrics

	assert.InDelta(t, 1.645*4.0, metrics.VaR95, 1e-9)
	assert.InDelta(t, 2.326*4.0, metrics.VaR99, 1e-9)
	assert.InDelta(t, 2.063*4.0, metrics.CVaR95, 1e-9)
	assert.InDelta(t, 2.665*4.0, metrics.CVaR99, 1e-9)
	assert.InDelta(t, 12.0, metrics.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.0, metrics.PortfolioBeta, 1e-9)
	// Four equal allocations: Herfindahl = 4 * 0.25^2 = 0.25.
	assert.InDelta(t, 0.25, metrics.ConcentrationScore, 1e-9)
}

func TestAssessDirectionalBookBreachesNetLimit(t *testing.T) {
	m := testManager()

	p := balancedPortfolio()
	p.TotalShortExposure = 200_000
	p.NetExposure = p.TotalLongExposure - p.TotalShortExposure
	p.GrossExposure = p.TotalLongExposure + p.TotalShortExposure

	assessment := m.Assess(p, 0)

	names := violationNames(assessment.Violations)
	assert.Contains(t, names, "max_net_exposure")
	assert.Contains(t, names, "max_beta") // |net|/gross = 300k/700k > 0.30
	// Moderate severities alone do not make the portfolio unacceptable.
	assert.True(t, assessment.IsAcceptable)
}

func TestAssessOversizedPositionIsUnacceptable(t *testing.T) {
	m := testManager()

	p := balancedPortfolio()
	p.LongPositions[0].Weight = 18 // limit is 10%

	assessment := m.Assess(p, 0)

	assert.False(t, assessment.IsAcceptable)
	assert.Contains(t, violationNames(assessment.Violations), "max_position_size")
	assert.GreaterOrEqual(t, assessment.OverallRiskLevel, LevelHigh)
}

func TestAssessHighVolatilityEscalates(t *testing.T) {
	m := testManager()

	p := balancedPortfolio()
	p.ExpectedVolatility = 22.0

	assessment := m.Assess(p, 0)

	assert.False(t, assessment.IsAcceptable)
	assert.Equal(t, LevelCritical, assessment.OverallRiskLevel)
	names := violationNames(assessment.Violations)
	assert.Contains(t, names, "max_portfolio_volatility")
	assert.Contains(t, names, "max_var_95")
}

func TestAdjustLeavesCompliantPortfolioAlone(t *testing.T) {
	m := testManager()

	p := balancedPortfolio()
	assessment := m.Assess(p, 0)
	require.True(t, assessment.IsAcceptable)

	adjusted := m.Adjust(p, assessment, DefaultAdjustmentFactor)
	assert.Same(t, p, adjusted)
}

func TestAdjustFactorOneIsIdentity(t *testing.T) {
	m := testManager()

	p := balancedPortfolio()
	p.ExpectedVolatility = 22.0
	p.LongPositions[0].Shares = 1000
	assessment := m.Assess(p, 0)
	require.False(t, assessment.IsAcceptable)

	adjusted := m.Adjust(p, assessment, 1.0)

	assert.InDelta(t, p.TotalLongExposure, adjusted.TotalLongExposure, 1e-9)
	assert.InDelta(t, p.TotalShortExposure, adjusted.TotalShortExposure, 1e-9)
	assert.InDelta(t, p.GrossExposure, adjusted.GrossExposure, 1e-9)
	assert.InDelta(t, p.NetExposure, adjusted.NetExposure, 1e-9)
	assert.InDelta(t, p.ExpectedVolatility, adjusted.ExpectedVolatility, 1e-9)
	assert.Equal(t, p.LongPositions, adjusted.LongPositions)
	assert.Equal(t, p.ShortPositions, adjusted.ShortPositions)
}

func TestAdjustScalesEverything(t *testing.T) {
	m := testManager()

	p := balancedPortfolio()
	p.ExpectedVolatility = 22.0
	p.LongPositions[0].Shares = 1000
	assessment := m.Assess(p, 0)
	require.False(t, assessment.IsAcceptable)

	adjusted := m.Adjust(p, assessment, 0.8)

	assert.InDelta(t, 400_000, adjusted.TotalLongExposure, 1e-6)
	assert.InDelta(t, 400_000, adjusted.TotalShortExposure, 1e-6)
	assert.InDelta(t, 800_000, adjusted.GrossExposure, 1e-6)
	assert.InDelta(t, 22.0*0.8, adjusted.ExpectedVolatility, 1e-9)
	assert.Equal(t, int64(800), adjusted.LongPositions[0].Shares)
	assert.InDelta(t, 200_000, adjusted.LongPositions[0].Allocation, 1e-6)

	// The input portfolio is untouched.
	assert.InDelta(t, 500_000, p.TotalLongExposure, 1e-6)
	assert.Equal(t, int64(1000), p.LongPositions[0].Shares)
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelLow < LevelModerate)
	assert.True(t, LevelModerate < LevelHigh)
	assert.True(t, LevelHigh < LevelCritical)
	assert.Equal(t, "CRITICAL", LevelCritical.String())
}

func violationNames(violations []Violation) []string {
	names := make([]string, 0, len(violations))
	for _, v := range violations {
		names = append(names, v.ConstraintName)
	}
	return names
}
