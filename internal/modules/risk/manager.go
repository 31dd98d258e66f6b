package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/internal/modules/optimizer"
	"github.com/iqclab/strategy-engine/pkg/formulas"
)

// Normal-distribution quantile multipliers for the parametric VaR/CVaR
// approximations. A covariance-based model is a non-goal; everything scales
// off the portfolio's expected volatility.
const (
	var95Multiplier  = 1.645
	var99Multiplier  = 2.326
	cvar95Multiplier = 2.063
	cvar99Multiplier = 2.665
	mddSigmaMultiple = 3.0
)

// DefaultAdjustmentFactor shrinks a non-compliant portfolio by 20%.
const DefaultAdjustmentFactor = 0.8

// Manager derives risk metrics from a recommendation and verifies them
// against a constraint set.
type Manager struct {
	constraints Constraints
	log         zerolog.Logger
}

// NewManager creates a risk manager with the given limits.
func NewManager(constraints Constraints, log zerolog.Logger) *Manager {
	return &Manager{
		constraints: constraints,
		log:         log.With().Str("component", "risk").Logger(),
	}
}

// Constraints returns the limit set the manager checks against.
func (m *Manager) Constraints() Constraints {
	return m.constraints
}

// Assess computes the portfolio's risk metrics, checks each constraint, and
// produces the acceptability verdict. marketVolatility is the ambient market
// volatility in percent; it is carried for context and logging only, since
// the parametric metrics derive from the portfolio's own expected volatility.
func (m *Manager) Assess(portfolio *optimizer.Recommendation, marketVolatility float64) Assessment {
	metrics := m.calculateMetrics(portfolio)
	violations := m.checkConstraints(portfolio, metrics)

	overall := metrics.RiskLevel
	for _, v := range violations {
		if v.Severity > overall {
			overall = v.Severity
		}
	}

	acceptable := true
	for _, v := range violations {
		if v.Severity >= LevelHigh {
			acceptable = false
			break
		}
	}

	m.log.Debug().
		Stringer("risk_level", overall).
		Int("violations", len(violations)).
		Bool("acceptable", acceptable).
		Float64("market_volatility", marketVolatility).
		Msg("Risk assessed")

	return Assessment{
		Metrics:          metrics,
		Constraints:      m.constraints,
		Violations:       violations,
		IsAcceptable:     acceptable,
		OverallRiskLevel: overall,
		Recommendations:  buildRecommendations(violations, metrics),
	}
}

func (m *Manager) calculateMetrics(portfolio *optimizer.Recommendation) Metrics {
	sigma := portfolio.ExpectedVolatility

	beta := 0.0
	if portfolio.GrossExposure > 0 {
		beta = math.Abs(portfolio.NetExposure) / portfolio.GrossExposure
	}

	allocations := make([]float64, 0, len(portfolio.LongPositions)+len(portfolio.ShortPositions))
	for _, p := range portfolio.Positions() {
		allocations = append(allocations, p.Allocation)
	}

	var95 := var95Multiplier * sigma
	mdd := mddSigmaMultiple * sigma

	return Metrics{
		VaR95:                var95,
		VaR99:                var99Multiplier * sigma,
		CVaR95:               cvar95Multiplier * sigma,
		CVaR99:               cvar99Multiplier * sigma,
		MaxDrawdown:          mdd,
		PortfolioVolatility:  sigma,
		AnnualizedVolatility: sigma * math.Sqrt(252),
		PortfolioBeta:        beta,
		ConcentrationScore:   formulas.Herfindahl(allocations),
		RiskLevel:            classifyLevel(sigma, var95, mdd),
	}
}

// classifyLevel grades the metric triple against fixed thresholds.
func classifyLevel(volatility, var95, maxDrawdown float64) Level {
	switch {
	case volatility > 20.0 || var95 > 12.0 || maxDrawdown > 25.0:
		return LevelCritical
	case volatility > 15.0 || var95 > 10.0 || maxDrawdown > 20.0:
		return LevelHigh
	case volatility > 10.0 || var95 > 7.0 || maxDrawdown > 15.0:
		return LevelModerate
	default:
		return LevelLow
	}
}

func (m *Manager) checkConstraints(portfolio *optimizer.Recommendation, metrics Metrics) []Violation {
	var violations []Violation
	c := m.constraints

	for _, pos := range portfolio.Positions() {
		if pos.Weight > c.MaxPositionSize*100 {
			violations = append(violations, Violation{
				ConstraintName: "max_position_size",
				CurrentValue:   pos.Weight,
				LimitValue:     c.MaxPositionSize * 100,
				Severity:       LevelHigh,
				Recommendation: fmt.Sprintf("reduce %s below %.0f%% of the sleeve", pos.Symbol, c.MaxPositionSize*100),
			})
		}
	}

	deployed := portfolio.TotalLongExposure + portfolio.TotalShortExposure
	if deployed > 0 {
		grossRatio := portfolio.GrossExposure / deployed * 2.0
		if grossRatio > c.MaxGrossExposure {
			violations = append(violations, Violation{
				ConstraintName: "max_gross_exposure",
				CurrentValue:   grossRatio,
				LimitValue:     c.MaxGrossExposure,
				Severity:       LevelHigh,
				Recommendation: fmt.Sprintf("cut gross exposure below %.0f%%", c.MaxGrossExposure*100),
			})
		}

		netFraction := math.Abs(portfolio.NetExposure) / deployed
		if netFraction > c.MaxNetExposure {
			violations = append(violations, Violation{
				ConstraintName: "max_net_exposure",
				CurrentValue:   netFraction * 100,
				LimitValue:     c.MaxNetExposure * 100,
				Severity:       LevelModerate,
				Recommendation: "rebalance the long/short sleeves toward market neutrality",
			})
		}
	}

	if metrics.PortfolioVolatility > c.MaxPortfolioVolatility {
		violations = append(violations, Violation{
			ConstraintName: "max_portfolio_volatility",
			CurrentValue:   metrics.PortfolioVolatility,
			LimitValue:     c.MaxPortfolioVolatility,
			Severity:       LevelHigh,
			Recommendation: "increase low-volatility weight or cut leverage",
		})
	}

	if metrics.VaR95 > c.MaxVaR95 {
		violations = append(violations, Violation{
			ConstraintName: "max_var_95",
			CurrentValue:   metrics.VaR95,
			LimitValue:     c.MaxVaR95,
			Severity:       LevelHigh,
			Recommendation: "reduce position sizes or add hedges",
		})
	}

	if math.Abs(metrics.PortfolioBeta) > c.MaxBeta {
		violations = append(violations, Violation{
			ConstraintName: "max_beta",
			CurrentValue:   metrics.PortfolioBeta,
			LimitValue:     c.MaxBeta,
			Severity:       LevelModerate,
			Recommendation: "rebalance the long/short sleeves toward market neutrality",
		})
	}

	if metrics.ConcentrationScore > c.MaxConcentration {
		violations = append(violations, Violation{
			ConstraintName: "max_concentration",
			CurrentValue:   metrics.ConcentrationScore,
			LimitValue:     c.MaxConcentration,
			Severity:       LevelModerate,
			Recommendation: "spread the book across more names",
		})
	}

	return violations
}

func buildRecommendations(violations []Violation, metrics Metrics) []string {
	var out []string
	for _, v := range violations {
		out = append(out, fmt.Sprintf("%s: %s", v.ConstraintName, v.Recommendation))
	}

	if metrics.RiskLevel >= LevelHigh {
		out = append(out, "overall risk is elevated; shrink positions or add hedges")
	}
	if metrics.ConcentrationScore > 0.3 {
		out = append(out, "portfolio concentration is high; diversify across more names")
	}
	if math.Abs(metrics.PortfolioBeta) > 0.2 {
		out = append(out, "beta is drifting from neutral; rebalance the sleeves")
	}

	if len(out) == 0 {
		out = append(out, "risk posture is healthy")
	}
	return out
}

// Adjust uniformly scales every position and the aggregate exposures by the
// given factor. It shrinks only; no re-optimization happens here. A
// compliant portfolio is returned unchanged, and factor 1.0 is the identity.
func (m *Manager) Adjust(portfolio *optimizer.Recommendation, assessment Assessment, factor float64) *optimizer.Recommendation {
	if assessment.IsAcceptable {
		return portfolio
	}
	if factor <= 0 {
		factor = DefaultAdjustmentFactor
	}

	m.log.Info().Float64("factor", factor).Msg("Scaling portfolio to meet risk limits")

	adjusted := *portfolio
	adjusted.LongPositions = scalePositions(portfolio.LongPositions, factor)
	adjusted.ShortPositions = scalePositions(portfolio.ShortPositions, factor)
	adjusted.TotalLongExposure *= factor
	adjusted.TotalShortExposure *= factor
	adjusted.NetExposure *= factor
	adjusted.GrossExposure *= factor
	adjusted.ExpectedVolatility *= factor

	return &adjusted
}

func scalePositions(positions []optimizer.Position, factor float64) []optimizer.Position {
	out := make([]optimizer.Position, len(positions))
	for i, p := range positions {
		p.Allocation *= factor
		p.Shares = int64(float64(p.Shares) * factor)
		p.Weight *= factor
		out[i] = p
	}
	return out
}
