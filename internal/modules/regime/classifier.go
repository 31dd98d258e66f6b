package regime

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// Classification thresholds.
const (
	RateThreshold = 3.0  // at or above is a high-rate environment
	GDPThreshold  = 2.0  // at or above counts toward expansion
	PMIThreshold  = 50.0 // at or above counts toward expansion
)

const (
	rateEnvLow  = "low-rate"
	rateEnvHigh = "high-rate"

	cycleExpansion = "expansion"
	cycleRecession = "recession"
)

// Classifier maps macro signals to a market regime. It is stateless; one
// instance can serve any number of evaluations.
type Classifier struct {
	log zerolog.Logger
}

// NewClassifier creates a regime classifier.
func NewClassifier(log zerolog.Logger) *Classifier {
	return &Classifier{
		log: log.With().Str("component", "regime").Logger(),
	}
}

// Classify derives the market regime from a set of macro signals. It never
// fails: unusable inputs (NaN/Inf in the required fields) produce the default
// low-rate expansion regime at confidence 0.5, flagged as degraded.
func (c *Classifier) Classify(signals Signals) Analysis {
	if !usable(signals) {
		c.log.Warn().Msg("Unusable regime signals, returning default regime")
		return Analysis{
			Regime:             LowRateExpansion,
			Confidence:         0.5,
			RateEnvironment:    rateEnvLow,
			EconomicCycle:      cycleExpansion,
			Signals:            signals,
			Reasoning:          "insufficient data, default regime",
			RecommendedSectors: RecommendedSectors(LowRateExpansion),
			RecommendedFactors: RecommendedFactors(LowRateExpansion),
			Degraded:           true,
		}
	}

	rateEnv := classifyRateEnvironment(signals.InterestRate)
	cycle := classifyEconomicCycle(signals)
	regime := determineRegime(rateEnv, cycle)
	confidence := calculateConfidence(signals, regime)

	c.log.Debug().
		Stringer("regime", regime).
		Float64("confidence", confidence).
		Msg("Regime classified")

	return Analysis{
		Regime:             regime,
		Confidence:         confidence,
		RateEnvironment:    rateEnv,
		EconomicCycle:      cycle,
		Signals:            signals,
		Reasoning:          buildReasoning(rateEnv, cycle, signals),
		RecommendedSectors: RecommendedSectors(regime),
		RecommendedFactors: RecommendedFactors(regime),
	}
}

func classifyRateEnvironment(interestRate float64) string {
	if interestRate >= RateThreshold {
		return rateEnvHigh
	}
	return rateEnvLow
}

// classifyEconomicCycle totals expansion vs recession points over the
// available indicators. Ties go to recession.
func classifyEconomicCycle(signals Signals) string {
	expansion := 0
	recession := 0

	if signals.GDPGrowth >= GDPThreshold {
		expansion += 2
	} else {
		recession += 2
	}

	if signals.UnemploymentRate < 4.5 {
		expansion++
	} else if signals.UnemploymentRate > 6.0 {
		recession += 2
	}

	if signals.PMI != nil {
		if *signals.PMI >= PMIThreshold {
			expansion++
		} else {
			recession++
		}
	}

	// Very low inflation reads as a demand problem; moderate inflation as
	// healthy expansion.
	if signals.InflationRate < 1.0 {
		recession++
	} else if signals.InflationRate >= 2.0 && signals.InflationRate <= 4.0 {
		expansion++
	}

	if expansion > recession {
		return cycleExpansion
	}
	return cycleRecession
}

func determineRegime(rateEnv, cycle string) MarketRegime {
	switch {
	case rateEnv == rateEnvLow && cycle == cycleExpansion:
		return LowRateExpansion
	case rateEnv == rateEnvLow && cycle == cycleRecession:
		return LowRateRecession
	case rateEnv == rateEnvHigh && cycle == cycleExpansion:
		return HighRateExpansion
	default:
		return HighRateRecession
	}
}

// calculateConfidence starts from a 0.5 base, rewards optional data being
// present, and rewards strongly one-sided defining signals. Capped at 1.0.
func calculateConfidence(signals Signals, regime MarketRegime) float64 {
	confidence := 0.5

	if signals.PMI != nil {
		confidence += 0.1
	}
	if signals.CreditSpread != nil {
		confidence += 0.1
	}

	switch regime {
	case LowRateExpansion:
		if signals.GDPGrowth > 3.0 && signals.InterestRate < 2.0 {
			confidence += 0.2
		}
	case HighRateRecession:
		if signals.GDPGrowth < 1.0 && signals.InterestRate > 4.0 {
			confidence += 0.2
		}
	}

	return math.Min(confidence, 1.0)
}

func buildReasoning(rateEnv, cycle string, signals Signals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rate environment: %s (rate %.2f%%, threshold %.1f%%)\n", rateEnv, signals.InterestRate, RateThreshold)
	fmt.Fprintf(&b, "economic cycle: %s (gdp %.2f%%, unemployment %.2f%%, inflation %.2f%%", cycle, signals.GDPGrowth, signals.UnemploymentRate, signals.InflationRate)
	if signals.PMI != nil {
		fmt.Fprintf(&b, ", pmi %.1f", *signals.PMI)
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "verdict: %s + %s", rateEnv, cycle)
	return b.String()
}

func usable(signals Signals) bool {
	for _, v := range []float64{
		signals.InterestRate,
		signals.GDPGrowth,
		signals.UnemploymentRate,
		signals.InflationRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
