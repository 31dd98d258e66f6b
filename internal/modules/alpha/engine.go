package alpha

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/pkg/formulas"
)

// Engine computes factor scores from instrument snapshots. Scoring is pure
// and per-instrument; the engine holds no state beyond its logger.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a factor engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "alpha").Logger(),
	}
}

// Score computes all factor sub-scores and the weighted total for one
// snapshot. Missing optional fields contribute 0 to their factor; Score never
// fails.
func (e *Engine) Score(snap InstrumentSnapshot) FactorScores {
	scores := FactorScores{Symbol: snap.Symbol}

	e.scoreMomentum(snap, &scores)
	e.scoreValue(snap, &scores)
	e.scoreQuality(snap, &scores)
	e.scoreLowVolatility(snap, &scores)
	e.scoreSize(snap, &scores)
	e.scoreSentiment(snap, &scores)

	scores.TotalScore = WeightMomentum*scores.MomentumWeighted +
		WeightValue*scores.ValueComposite +
		WeightQuality*scores.QualityComposite +
		WeightLowVol*scores.LowVolComposite +
		WeightSize*scores.SizeComposite +
		WeightSentiment*scores.SentimentScore

	return scores
}

// ScoreUniverse scores a batch of snapshots, fanning work out across a small
// worker pool. Output order matches input order; results are identical to
// calling Score sequentially.
func (e *Engine) ScoreUniverse(ctx context.Context, snaps []InstrumentSnapshot) []FactorScores {
	out := make([]FactorScores, len(snaps))
	if len(snaps) == 0 {
		return out
	}

	workers := runtime.NumCPU()
	if workers > len(snaps) {
		workers = len(snaps)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = e.Score(snaps[i])
			}
		}()
	}

	for i := range snaps {
		select {
		case <-ctx.Done():
			// Leave the remaining entries zero-scored; callers treat a
			// zero score as "input unavailable".
			close(jobs)
			wg.Wait()
			return out
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	e.log.Debug().Int("instruments", len(snaps)).Msg("Universe scored")
	return out
}

// scoreMomentum fills the trailing-return momentum factors. The weighted
// momentum favors recent windows (0.4/0.3/0.2/0.1), renormalized over the
// windows that are actually available.
func (e *Engine) scoreMomentum(snap InstrumentSnapshot, scores *FactorScores) {
	scores.Momentum1M = trailingReturn(snap.CurrentPrice, snap.Price1MAgo)
	scores.Momentum3M = trailingReturn(snap.CurrentPrice, snap.Price3MAgo)
	scores.Momentum6M = trailingReturn(snap.CurrentPrice, snap.Price6MAgo)
	scores.Momentum12M = trailingReturn(snap.CurrentPrice, snap.Price1YAgo)

	var momentums, weights []float64
	for _, term := range []struct {
		value  float64
		weight float64
	}{
		{scores.Momentum1M, 0.4},
		{scores.Momentum3M, 0.3},
		{scores.Momentum6M, 0.2},
		{scores.Momentum12M, 0.1},
	} {
		if term.value != 0 {
			momentums = append(momentums, term.value)
			weights = append(weights, term.weight)
		}
	}
	scores.MomentumWeighted = formulas.WeightedMean(momentums, weights)

	if len(momentums) >= 2 {
		scores.TrendStrength = formulas.PopStdDev(momentums)
	}
}

// scoreValue converts valuation ratios to reciprocals so cheaper instruments
// score higher; dividend yield enters raw. The composite averages the
// non-zero terms.
func (e *Engine) scoreValue(snap InstrumentSnapshot, scores *FactorScores) {
	scores.ValuePE = reciprocal(snap.PERatio)
	scores.ValuePB = reciprocal(snap.PBRatio)
	scores.ValuePS = reciprocal(snap.PSRatio)
	scores.ValuePCF = reciprocal(snap.PCFRatio)
	if snap.DividendYield != nil {
		scores.ValueDividend = *snap.DividendYield
	}

	scores.ValueComposite = formulas.MeanNonZero([]float64{
		scores.ValuePE,
		scores.ValuePB,
		scores.ValuePS,
		scores.ValuePCF,
		scores.ValueDividend,
	})
}

func (e *Engine) scoreQuality(snap InstrumentSnapshot, scores *FactorScores) {
	if snap.ROE != nil {
		scores.QualityROE = *snap.ROE / 100
	}
	if snap.ROA != nil {
		scores.QualityROA = *snap.ROA / 100
	}
	if snap.DebtToEquity != nil {
		if *snap.DebtToEquity > 0 {
			scores.QualityDebt = 1.0 / (1.0 + *snap.DebtToEquity)
		} else {
			scores.QualityDebt = 1.0
		}
	}
	if snap.CurrentRatio != nil {
		scores.QualityLiquidity = math.Min(*snap.CurrentRatio/2.0, 1.0)
	}

	var growth []float64
	if snap.EarningsGrowth != nil {
		growth = append(growth, *snap.EarningsGrowth/100)
	}
	if snap.RevenueGrowth != nil {
		growth = append(growth, *snap.RevenueGrowth/100)
	}
	if len(growth) > 0 {
		scores.QualityGrowth = formulas.Mean(growth)
	}

	scores.QualityComposite = formulas.MeanNonZero([]float64{
		scores.QualityROE,
		scores.QualityROA,
		scores.QualityDebt,
		scores.QualityLiquidity,
		scores.QualityGrowth,
	})
}

// scoreLowVolatility maps each realized-volatility window through 1/(1+vol)
// so calmer instruments score higher.
func (e *Engine) scoreLowVolatility(snap InstrumentSnapshot, scores *FactorScores) {
	scores.LowVol1M = inverseVol(snap.Volatility1M)
	scores.LowVol3M = inverseVol(snap.Volatility3M)
	scores.LowVol1Y = inverseVol(snap.Volatility1Y)

	scores.LowVolComposite = formulas.MeanNonZero([]float64{
		scores.LowVol1M,
		scores.LowVol3M,
		scores.LowVol1Y,
	})
}

// scoreSize uses log10 scales normalized so roughly $10B..$100T market caps
// map onto 0..1, and similarly for average volume.
func (e *Engine) scoreSize(snap InstrumentSnapshot, scores *FactorScores) {
	if snap.MarketCap != nil && *snap.MarketCap > 0 {
		scores.SizeMarketCap = (math.Log10(*snap.MarketCap) - 10) / 4
	}
	if snap.AvgVolume3M != nil && *snap.AvgVolume3M > 0 {
		scores.SizeVolume = (math.Log10(*snap.AvgVolume3M) - 4) / 3
	}

	scores.SizeComposite = formulas.MeanNonZero([]float64{
		scores.SizeMarketCap,
		scores.SizeVolume,
	})
}

func (e *Engine) scoreSentiment(snap InstrumentSnapshot, scores *FactorScores) {
	if snap.NewsSentiment != nil {
		scores.SentimentScore = *snap.NewsSentiment
	}
	// SentimentMomentum, the risk-spread group and VolatilitySpread stay at
	// zero until their input series exist (historical sentiment, credit
	// spreads, market beta, options-implied volatility).
}

func trailingReturn(current float64, past *float64) float64 {
	if past == nil || *past == 0 || current == 0 {
		return 0
	}
	return (current - *past) / *past
}

func reciprocal(ratio *float64) float64 {
	if ratio == nil || *ratio <= 0 {
		return 0
	}
	return 1.0 / *ratio
}

func inverseVol(vol *float64) float64 {
	if vol == nil || *vol <= 0 {
		return 0
	}
	return 1.0 / (1.0 + *vol)
}
