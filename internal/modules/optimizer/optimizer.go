package optimizer

import (
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/internal/modules/alpha"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
)

// ErrEmptyUniverse is returned when no instrument is available to rank.
// Callers treat it as recoverable: the backtester retains the prior portfolio.
var ErrEmptyUniverse = errors.New("optimizer: empty instrument universe")

// Instrument pairs a snapshot with its factor scores for ranking.
type Instrument struct {
	Snapshot alpha.InstrumentSnapshot
	Scores   alpha.FactorScores
}

// Config holds the optimizer's sizing parameters.
type Config struct {
	NumLong             int     // long sleeve size
	NumShort            int     // short sleeve size
	MaxPositionSize     float64 // per-position cap as a fraction of the sleeve target
	TargetGrossExposure float64 // 2.0 = long 100% + short 100%
}

// DefaultConfig mirrors the strategy's production defaults: 20/20 sleeves,
// 10% position cap, dollar-neutral at 200% gross.
func DefaultConfig() Config {
	return Config{
		NumLong:             20,
		NumShort:            20,
		MaxPositionSize:     0.10,
		TargetGrossExposure: 2.0,
	}
}

// Optimizer builds long-short portfolios from scored instruments.
type Optimizer struct {
	cfg Config
	log zerolog.Logger
}

// New creates an optimizer with the given sizing parameters.
func New(cfg Config, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		cfg: cfg,
		log: log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize ranks the universe under the regime's factor weighting, selects
// the long and short sleeves, and sizes positions under the exposure
// constraints. Deterministic for identical inputs; ties keep input order.
func (o *Optimizer) Optimize(
	instruments []Instrument,
	analysis regime.Analysis,
	totalCapital float64,
) (*Recommendation, error) {
	if len(instruments) == 0 {
		return nil, ErrEmptyUniverse
	}

	o.log.Debug().
		Int("universe", len(instruments)).
		Stringer("regime", analysis.Regime).
		Float64("capital", totalCapital).
		Msg("Optimizing portfolio")

	ranked := o.rankByAdjustedScore(instruments, analysis.Regime)

	numLong := minInt(o.cfg.NumLong, len(ranked))
	numShort := minInt(o.cfg.NumShort, len(ranked))
	longCandidates := ranked[:numLong]
	shortCandidates := ranked[len(ranked)-numShort:]

	longPositions := o.sizeSleeve(longCandidates, SideLong, totalCapital)
	shortPositions := o.sizeSleeve(shortCandidates, SideShort, totalCapital)

	var totalLong, totalShort float64
	for _, p := range longPositions {
		totalLong += p.Allocation
	}
	for _, p := range shortPositions {
		totalShort += p.Allocation
	}

	expectedReturn := estimateReturn(longPositions, shortPositions)
	expectedVolatility := estimateVolatility(longPositions, shortPositions)
	sharpe := 0.0
	if expectedVolatility > 0 {
		sharpe = expectedReturn / expectedVolatility
	}

	return &Recommendation{
		Regime:             analysis.Regime,
		RegimeConfidence:   analysis.Confidence,
		LongPositions:      longPositions,
		ShortPositions:     shortPositions,
		TotalLongExposure:  totalLong,
		TotalShortExposure: totalShort,
		NetExposure:        totalLong - totalShort,
		GrossExposure:      totalLong + totalShort,
		ExpectedReturn:     expectedReturn,
		ExpectedVolatility: expectedVolatility,
		SharpeRatio:        sharpe,
	}, nil
}

// rankedInstrument carries an instrument with its regime-adjusted score.
type rankedInstrument struct {
	Instrument
	AdjustedScore float64
}

// rankByAdjustedScore recomputes each instrument's category averages from the
// sub-scores, applies the regime weight table plus the sentiment tilt, and
// sorts descending. The sort is stable so equal scores keep input order.
func (o *Optimizer) rankByAdjustedScore(instruments []Instrument, r regime.MarketRegime) []rankedInstrument {
	weights := regimeWeights[r]

	ranked := make([]rankedInstrument, len(instruments))
	for i, inst := range instruments {
		s := inst.Scores

		momentumAvg := (s.Momentum1M + s.Momentum3M + s.Momentum6M + s.Momentum12M) / 4.0
		valueAvg := (s.ValuePE + s.ValuePB + s.ValuePS + s.ValueDividend) / 4.0
		qualityAvg := (s.QualityROE + s.QualityROA + s.QualityDebt + s.QualityGrowth) / 4.0
		lowVolAvg := (s.LowVol1M + s.LowVol3M + s.LowVol1Y) / 3.0

		adjusted := momentumAvg*weights.Momentum +
			valueAvg*weights.Value +
			qualityAvg*weights.Quality +
			lowVolAvg*weights.LowVol +
			s.SentimentScore*sentimentTilt

		ranked[i] = rankedInstrument{Instrument: inst, AdjustedScore: adjusted}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].AdjustedScore > ranked[b].AdjustedScore
	})
	return ranked
}

// sizeSleeve allocates the sleeve's dollar target proportionally to each
// candidate's absolute adjusted score, with the per-position cap applied
// before share flooring.
func (o *Optimizer) sizeSleeve(candidates []rankedInstrument, side Side, totalCapital float64) []Position {
	if len(candidates) == 0 {
		return nil
	}

	var totalAlpha float64
	for _, c := range candidates {
		totalAlpha += math.Abs(c.AdjustedScore)
	}

	targetExposure := totalCapital * (o.cfg.TargetGrossExposure / 2.0)

	positions := make([]Position, 0, len(candidates))
	for _, c := range candidates {
		weight := 1.0 / float64(len(candidates))
		if totalAlpha > 0 {
			weight = math.Abs(c.AdjustedScore) / totalAlpha
		}
		weight = math.Min(weight, o.cfg.MaxPositionSize)

		allocation := targetExposure * weight
		shares := int64(0)
		if c.Snapshot.CurrentPrice > 0 {
			shares = int64(allocation / c.Snapshot.CurrentPrice)
		}
		actualAllocation := float64(shares) * c.Snapshot.CurrentPrice

		positions = append(positions, Position{
			Symbol:         c.Snapshot.Symbol,
			Side:           side,
			AlphaScore:     c.AdjustedScore,
			Weight:         weight * 100,
			Allocation:     actualAllocation,
			CurrentPrice:   c.Snapshot.CurrentPrice,
			Shares:         shares,
			ExpectedReturn: c.AdjustedScore * 100,
			RiskScore:      1.0 - c.Scores.LowVolComposite,
		})
	}
	return positions
}

// estimateReturn is the exposure-weighted average expected return with the
// short sleeve subtracted: shorts profit when prices fall.
func estimateReturn(longs, shorts []Position) float64 {
	var totalAllocation, longReturn, shortReturn float64
	for _, p := range longs {
		totalAllocation += p.Allocation
		longReturn += p.ExpectedReturn * p.Allocation
	}
	for _, p := range shorts {
		totalAllocation += p.Allocation
		shortReturn += p.ExpectedReturn * p.Allocation
	}
	if totalAllocation == 0 {
		return 0
	}
	return (longReturn - shortReturn) / totalAllocation
}

// estimateVolatility maps the exposure-weighted risk score into a 0-50%
// volatility band. A covariance-based estimate is deliberately out of scope.
func estimateVolatility(longs, shorts []Position) float64 {
	var totalAllocation, totalRisk float64
	for _, p := range longs {
		totalAllocation += p.Allocation
		totalRisk += p.RiskScore * p.Allocation
	}
	for _, p := range shorts {
		totalAllocation += p.Allocation
		totalRisk += p.RiskScore * p.Allocation
	}
	if totalAllocation == 0 {
		return 0
	}
	return totalRisk / totalAllocation * 50.0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
