package optimizer

import (
	"time"

	"github.com/iqclab/strategy-engine/internal/modules/regime"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is one sized holding in a sleeve. Positions are immutable once
// created; a rebalance produces replacement positions rather than mutating.
type Position struct {
	Symbol         string  `json:"symbol"`
	Side           Side    `json:"side"`
	AlphaScore     float64 `json:"alpha_score"`     // regime-adjusted score used for sizing
	Weight         float64 `json:"weight"`          // % of the sleeve target
	Allocation     float64 `json:"allocation"`      // realized dollars after share flooring
	CurrentPrice   float64 `json:"current_price"`
	Shares         int64   `json:"shares"`
	ExpectedReturn float64 `json:"expected_return"` // %, alpha score as a return proxy
	RiskScore      float64 `json:"risk_score"`      // 0-1, from the low-vol composite
}

// Recommendation is one rebalance event's full portfolio output.
type Recommendation struct {
	Regime           regime.MarketRegime `json:"regime"`
	RegimeConfidence float64             `json:"regime_confidence"`

	LongPositions  []Position `json:"long_positions"`
	ShortPositions []Position `json:"short_positions"`

	TotalLongExposure  float64 `json:"total_long_exposure"`
	TotalShortExposure float64 `json:"total_short_exposure"`
	NetExposure        float64 `json:"net_exposure"`   // long - short
	GrossExposure      float64 `json:"gross_exposure"` // long + short

	ExpectedReturn     float64 `json:"expected_return"`     // %
	ExpectedVolatility float64 `json:"expected_volatility"` // %
	SharpeRatio        float64 `json:"sharpe_ratio"`

	RebalanceDate time.Time `json:"rebalance_date,omitempty"`
}

// Positions returns the long and short sleeves as a single slice.
func (r *Recommendation) Positions() []Position {
	out := make([]Position, 0, len(r.LongPositions)+len(r.ShortPositions))
	out = append(out, r.LongPositions...)
	out = append(out, r.ShortPositions...)
	return out
}

// categoryWeights is the regime-dependent weighting over the four factor
// categories that drive the adjusted score. Every regime must have an entry;
// the enum-indexed array makes a missing one unrepresentable.
type categoryWeights struct {
	Momentum float64
	Value    float64
	Quality  float64
	LowVol   float64
}

// Effective per-regime weights. Where the reference tables named a category
// the adjusted score does not draw on (growth, dividend, size), the drawn-on
// category falls back to its 0.25 default; these are the resolved values.
var regimeWeights = [4]categoryWeights{
	regime.LowRateExpansion:  {Momentum: 0.35, Value: 0.25, Quality: 0.20, LowVol: 0.20},
	regime.LowRateRecession:  {Momentum: 0.25, Value: 0.30, Quality: 0.20, LowVol: 0.25},
	regime.HighRateExpansion: {Momentum: 0.25, Value: 0.30, Quality: 0.25, LowVol: 0.25},
	regime.HighRateRecession: {Momentum: 0.25, Value: 0.20, Quality: 0.30, LowVol: 0.35},
}

// sentimentTilt is the fixed contribution of the news-sentiment score to the
// adjusted score, independent of regime.
const sentimentTilt = 0.05
