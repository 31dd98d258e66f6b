package risk

// Level grades risk from benign to unacceptable. The ordering of the
// constants is meaningful: higher values are worse.
type Level int

const (
	LevelLow Level = iota
	LevelModerate
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelModerate:
		return "MODERATE"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText serializes the level as its label.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Metrics are the closed-form portfolio risk measures derived from a
// recommendation. All percentage figures share the portfolio's expected
// volatility as their base.
type Metrics struct {
	VaR95 float64 `json:"var_95"` // %, 95% confidence
	VaR99 float64 `json:"var_99"` // %, 99% confidence

	CVaR95 float64 `json:"cvar_95"` // expected shortfall beyond VaR95
	CVaR99 float64 `json:"cvar_99"`

	MaxDrawdown float64 `json:"max_drawdown"` // 3-sigma estimate, %

	PortfolioVolatility  float64 `json:"portfolio_volatility"`  // %
	AnnualizedVolatility float64 `json:"annualized_volatility"` // %

	PortfolioBeta float64 `json:"portfolio_beta"` // |net| / gross, 0 = market neutral

	ConcentrationScore float64 `json:"concentration_score"` // Herfindahl index

	RiskLevel Level `json:"risk_level"`
}

// Constraints is the limit set a portfolio is checked against. Provided once
// per run and never mutated.
type Constraints struct {
	MaxPositionSize   float64 `json:"max_position_size" yaml:"max_position_size"`     // fraction, 0.10 = 10%
	MaxSectorExposure float64 `json:"max_sector_exposure" yaml:"max_sector_exposure"` // fraction

	MaxGrossExposure float64 `json:"max_gross_exposure" yaml:"max_gross_exposure"` // multiple of capital
	MaxNetExposure   float64 `json:"max_net_exposure" yaml:"max_net_exposure"`     // fraction

	MaxPortfolioVolatility float64 `json:"max_portfolio_volatility" yaml:"max_portfolio_volatility"` // %
	MaxDrawdownLimit       float64 `json:"max_drawdown_limit" yaml:"max_drawdown_limit"`             // %

	MaxVaR95 float64 `json:"max_var_95" yaml:"max_var_95"` // %
	MaxVaR99 float64 `json:"max_var_99" yaml:"max_var_99"` // %

	MaxBeta float64 `json:"max_beta" yaml:"max_beta"`

	MaxConcentration float64 `json:"max_concentration" yaml:"max_concentration"`
}

// DefaultConstraints returns the strategy's standard limit set.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxPositionSize:        0.10,
		MaxSectorExposure:      0.30,
		MaxGrossExposure:       2.0,
		MaxNetExposure:         0.20,
		MaxPortfolioVolatility: 15.0,
		MaxDrawdownLimit:       20.0,
		MaxVaR95:               10.0,
		MaxVaR99:               15.0,
		MaxBeta:                0.30,
		MaxConcentration:       0.50,
	}
}

// Violation records one breached constraint.
type Violation struct {
	ConstraintName string  `json:"constraint_name"`
	CurrentValue   float64 `json:"current_value"`
	LimitValue     float64 `json:"limit_value"`
	Severity       Level   `json:"severity"`
	Recommendation string  `json:"recommendation"`
}

// Assessment is the full risk verdict for one recommendation.
type Assessment struct {
	Metrics          Metrics     `json:"metrics"`
	Constraints      Constraints `json:"constraints"`
	Violations       []Violation `json:"violations"`
	IsAcceptable     bool        `json:"is_acceptable"`
	OverallRiskLevel Level       `json:"overall_risk_level"`
	Recommendations  []string    `json:"recommendations"`
}
