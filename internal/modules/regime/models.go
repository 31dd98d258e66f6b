package regime

// MarketRegime is one of four market states combining the interest-rate
// environment with the economic-cycle phase.
type MarketRegime int

const (
	LowRateExpansion MarketRegime = iota // growth and tech friendly
	LowRateRecession                     // defensives and bonds friendly
	HighRateExpansion                    // value and financials friendly
	HighRateRecession                    // cash, gold, bonds
	numRegimes
)

// String returns a stable machine-readable label.
func (r MarketRegime) String() string {
	switch r {
	case LowRateExpansion:
		return "LOW_RATE_EXPANSION"
	case LowRateRecession:
		return "LOW_RATE_RECESSION"
	case HighRateExpansion:
		return "HIGH_RATE_EXPANSION"
	case HighRateRecession:
		return "HIGH_RATE_RECESSION"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler so the enum serializes as its
// label in JSON payloads.
func (r MarketRegime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses the label form produced by MarshalText.
func (r *MarketRegime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "LOW_RATE_RECESSION":
		*r = LowRateRecession
	case "HIGH_RATE_EXPANSION":
		*r = HighRateExpansion
	case "HIGH_RATE_RECESSION":
		*r = HighRateRecession
	default:
		*r = LowRateExpansion
	}
	return nil
}

// Signals holds the macro-economic inputs for one evaluation date.
// PMI and CreditSpread are optional and improve confidence when present.
type Signals struct {
	InterestRate     float64  `json:"interest_rate" yaml:"interest_rate"`         // policy rate, %
	GDPGrowth        float64  `json:"gdp_growth" yaml:"gdp_growth"`               // YoY, %
	UnemploymentRate float64  `json:"unemployment_rate" yaml:"unemployment_rate"` // %
	InflationRate    float64  `json:"inflation_rate" yaml:"inflation_rate"`       // YoY, %
	PMI              *float64 `json:"pmi,omitempty" yaml:"pmi,omitempty"`         // manufacturing PMI
	CreditSpread     *float64 `json:"credit_spread,omitempty" yaml:"credit_spread,omitempty"` // bp
}

// Analysis is the classification result for one set of signals.
type Analysis struct {
	Regime             MarketRegime `json:"regime"`
	Confidence         float64      `json:"confidence"` // 0-1
	RateEnvironment    string       `json:"rate_environment"`
	EconomicCycle      string       `json:"economic_cycle"`
	Signals            Signals      `json:"signals"`
	Reasoning          string       `json:"reasoning"`
	RecommendedSectors []string     `json:"recommended_sectors"`
	RecommendedFactors []string     `json:"recommended_factors"`
	Degraded           bool         `json:"degraded,omitempty"` // fallback result, inputs unusable
}

// Static recommendation tables, indexed by the regime enum so a missing entry
// is a compile error rather than a silent map miss.
var sectorRecommendations = [numRegimes][]string{
	LowRateExpansion:  {"technology", "consumer-discretionary", "communications", "healthcare"},
	LowRateRecession:  {"defensives", "consumer-staples", "utilities", "healthcare"},
	HighRateExpansion: {"value", "financials", "energy", "industrials"},
	HighRateRecession: {"cash-equivalents", "gold", "bonds", "consumer-staples"},
}

var factorRecommendations = [numRegimes][]string{
	LowRateExpansion:  {"momentum", "growth", "quality", "low-volatility"},
	LowRateRecession:  {"value", "dividend", "low-volatility", "quality"},
	HighRateExpansion: {"value", "dividend", "quality", "size"},
	HighRateRecession: {"low-volatility", "quality", "value", "dividend"},
}

// RecommendedSectors returns the static sector tilt for a regime.
func RecommendedSectors(r MarketRegime) []string {
	if r < 0 || r >= numRegimes {
		return []string{"diversified"}
	}
	return sectorRecommendations[r]
}

// RecommendedFactors returns the static factor-category tilt for a regime.
func RecommendedFactors(r MarketRegime) []string {
	if r < 0 || r >= numRegimes {
		return []string{"momentum", "value"}
	}
	return factorRecommendations[r]
}
