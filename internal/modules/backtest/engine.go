// Package backtest simulates the regime-aware long/short strategy over
// historical prices and macro data, producing an equity curve and the usual
// performance statistics.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/internal/marketdata"
	"github.com/iqclab/strategy-engine/internal/modules/alpha"
	"github.com/iqclab/strategy-engine/internal/modules/optimizer"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
	"github.com/iqclab/strategy-engine/internal/modules/risk"
	"github.com/iqclab/strategy-engine/pkg/formulas"
)

// riskFreeRate is the annual rate subtracted in Sharpe and Sortino, percent.
const riskFreeRate = 2.0

// SnapshotSource produces the investable universe as of a date. A symbol
// without a usable price on the date must be left out of the slice.
type SnapshotSource interface {
	SnapshotsAt(date time.Time) []alpha.InstrumentSnapshot
}

// Engine runs simulations. It owns no data; prices, macro observations and
// snapshots come from the injected sources.
type Engine struct {
	classifier *regime.Classifier
	scorer     *alpha.Engine
	risk       *risk.Manager
	prices     marketdata.PriceSource
	macro      marketdata.MacroSource
	snapshots  SnapshotSource
	log        zerolog.Logger
}

// NewEngine wires a simulation engine.
func NewEngine(
	classifier *regime.Classifier,
	scorer *alpha.Engine,
	riskManager *risk.Manager,
	prices marketdata.PriceSource,
	macro marketdata.MacroSource,
	snapshots SnapshotSource,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		classifier: classifier,
		scorer:     scorer,
		risk:       riskManager,
		prices:     prices,
		macro:      macro,
		snapshots:  snapshots,
		log:        log.With().Str("component", "backtest").Logger(),
	}
}

// Run simulates the strategy day by day from the config's start date to its
// end date inclusive. Every calendar day gets a performance entry; rebalances
// happen on the first day and then on the first calendar day of each period.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}

	e.log.Info().
		Time("start", cfg.StartDate).
		Time("end", cfg.EndDate).
		Float64("capital", cfg.InitialCapital).
		Str("frequency", string(cfg.RebalanceFrequency)).
		Msg("starting backtest")

	macroSeries := e.macro.MacroHistory()
	optCfg := optimizer.Config{
		NumLong:             cfg.NumLong,
		NumShort:            cfg.NumShort,
		MaxPositionSize:     cfg.MaxPositionSize,
		TargetGrossExposure: cfg.TargetGrossExposure,
	}
	opt := optimizer.New(optCfg, e.log)

	result := &Result{Config: cfg}
	capital := cfg.InitialCapital
	var portfolio *optimizer.Recommendation
	var analysis regime.Analysis
	var analysisDate time.Time
	haveAnalysis := false
	firstRebalanceDone := false

	for date := cfg.StartDate; !date.After(cfg.EndDate); date = date.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Reclassify only when a newer macro observation becomes active.
		if obs, ok := macroSeries.ActiveAt(date); ok {
			if !haveAnalysis || obs.Date.After(analysisDate) {
				analysis = e.classifier.Classify(obs.Signals)
				analysisDate = obs.Date
				haveAnalysis = true
			}
		} else if !haveAnalysis {
			analysis = e.classifier.Classify(regime.Signals{})
			haveAnalysis = true
		}

		prevCapital := capital

		// Rebalance first so the day's P&L marks the incoming portfolio.
		if e.shouldRebalance(date, cfg.RebalanceFrequency, firstRebalanceDone) {
			newPortfolio, record, ok := e.rebalance(ctx, opt, cfg, date, analysis, capital, portfolio, firstRebalanceDone)
			if ok {
				capital -= record.TransactionCosts
				result.TotalCommission += record.Commission
				result.TotalSlippage += record.Slippage
				result.TotalCosts += record.TransactionCosts
				result.TotalTrades += record.Trades
				result.Rebalances = append(result.Rebalances, record)
				portfolio = newPortfolio
				firstRebalanceDone = true
			}
		}

		pnl := e.dailyPnL(portfolio, date)
		capital += pnl

		// Return off the full capital change so costs show up in the curve.
		dailyReturn := 0.0
		if prevCapital > 0 {
			dailyReturn = (capital - prevCapital) / prevCapital * 100
		}
		perf := DailyPerformance{
			Date:             date,
			Capital:          capital,
			DailyPnL:         pnl,
			DailyReturn:      dailyReturn,
			CumulativeReturn: (capital - cfg.InitialCapital) / cfg.InitialCapital * 100,
			Regime:           analysis.Regime,
		}
		if portfolio != nil {
			perf.LongExposure = portfolio.TotalLongExposure
			perf.ShortExposure = portfolio.TotalShortExposure
			perf.NumPositions = len(portfolio.LongPositions) + len(portfolio.ShortPositions)
		}
		result.Daily = append(result.Daily, perf)
	}

	result.FinalCapital = capital
	result.FinalPortfolio = portfolio
	result.NumRebalances = len(result.Rebalances)
	e.computeStatistics(result)

	e.log.Info().
		Float64("final_capital", result.FinalCapital).
		Float64("total_return", result.TotalReturn).
		Float64("sharpe", result.SharpeRatio).
		Int("rebalances", result.NumRebalances).
		Msg("backtest complete")

	return result, nil
}

// dailyPnL marks the portfolio against the day's closes. Positions without a
// price move on the date (weekends, halts) contribute nothing.
func (e *Engine) dailyPnL(portfolio *optimizer.Recommendation, date time.Time) float64 {
	if portfolio == nil {
		return 0
	}
	pnl := 0.0
	for _, pos := range portfolio.Positions() {
		series, ok := e.prices.History(pos.Symbol)
		if !ok {
			continue
		}
		close, prev, ok := series.DailyMove(date)
		if !ok || prev == 0 {
			continue
		}
		ret := (close - prev) / prev
		if pos.Side == optimizer.SideShort {
			ret = -ret
		}
		pnl += pos.Allocation * ret
	}
	return pnl
}

func (e *Engine) shouldRebalance(date time.Time, freq RebalanceFrequency, firstDone bool) bool {
	if !firstDone {
		return true
	}
	if date.Day() != 1 {
		return false
	}
	switch freq {
	case RebalanceMonthly:
		return true
	case RebalanceQuarterly:
		m := int(date.Month())
		return m == 1 || m == 4 || m == 7 || m == 10
	case RebalanceYearly:
		return date.Month() == time.January
	}
	return false
}

// rebalance builds a new portfolio for the date. When the universe comes back
// empty the previous portfolio is kept and no record is produced.
func (e *Engine) rebalance(
	ctx context.Context,
	opt *optimizer.Optimizer,
	cfg Config,
	date time.Time,
	analysis regime.Analysis,
	capital float64,
	previous *optimizer.Recommendation,
	firstDone bool,
) (*optimizer.Recommendation, RebalanceRecord, bool) {
	snaps := e.snapshots.SnapshotsAt(date)
	if len(snaps) == 0 {
		e.log.Warn().Time("date", date).Msg("empty universe at rebalance, keeping current portfolio")
		return previous, RebalanceRecord{}, false
	}

	scores := e.scorer.ScoreUniverse(ctx, snaps)
	instruments := make([]optimizer.Instrument, len(snaps))
	for i := range snaps {
		instruments[i] = optimizer.Instrument{Snapshot: snaps[i], Scores: scores[i]}
	}

	target, err := opt.Optimize(instruments, analysis, capital)
	if err != nil {
		e.log.Warn().Err(err).Time("date", date).Msg("optimization failed, keeping current portfolio")
		return previous, RebalanceRecord{}, false
	}
	target.RebalanceDate = date

	riskAdjusted := false
	assessment := e.risk.Assess(target, 0)
	if !assessment.IsAcceptable {
		target = e.risk.Adjust(target, assessment, risk.DefaultAdjustmentFactor)
		riskAdjusted = true
		e.log.Info().Time("date", date).
			Str("risk_level", assessment.OverallRiskLevel.String()).
			Msg("portfolio scaled down after risk assessment")
	}

	turnover, trades := allocationChanges(previous, target)
	record := RebalanceRecord{
		Date:             date,
		Regime:           analysis.Regime,
		RegimeConfidence: analysis.Confidence,
		NumLong:          len(target.LongPositions),
		NumShort:         len(target.ShortPositions),
		Turnover:         turnover,
		Trades:           trades,
		RiskAdjusted:     riskAdjusted,
	}
	// Initial deployment is free of frictions; only subsequent turnover pays.
	if firstDone {
		record.Commission = turnover * cfg.CommissionRate
		record.Slippage = turnover * cfg.SlippageRate
		record.TransactionCosts = record.Commission + record.Slippage
	}
	return target, record, true
}

// allocationChanges sums absolute dollar allocation deltas between two
// portfolios and counts the symbols whose allocation changed.
func allocationChanges(previous, target *optimizer.Recommendation) (turnover float64, trades int) {
	prev := map[string]float64{}
	if previous != nil {
		for _, pos := range previous.Positions() {
			prev[signedKey(pos)] = pos.Allocation
		}
	}
	seen := map[string]bool{}
	for _, pos := range target.Positions() {
		key := signedKey(pos)
		delta := math.Abs(pos.Allocation - prev[key])
		if delta > 0 {
			turnover += delta
			trades++
		}
		seen[key] = true
	}
	for key, alloc := range prev {
		if !seen[key] && alloc > 0 {
			turnover += alloc
			trades++
		}
	}
	return turnover, trades
}

func signedKey(pos optimizer.Position) string {
	return string(pos.Side) + ":" + pos.Symbol
}

// computeStatistics fills the summary fields from the daily series.
func (e *Engine) computeStatistics(r *Result) {
	days := int(r.Config.EndDate.Sub(r.Config.StartDate).Hours()/24) + 1
	r.TotalReturn = (r.FinalCapital - r.Config.InitialCapital) / r.Config.InitialCapital * 100
	r.AnnualizedReturn = formulas.AnnualizedReturn(r.Config.InitialCapital, r.FinalCapital, days)

	returns := make([]float64, 0, len(r.Daily))
	capitals := make([]float64, 0, len(r.Daily))
	for _, d := range r.Daily {
		capitals = append(capitals, d.Capital)
		returns = append(returns, d.DailyReturn)
		if d.DailyPnL > 0 {
			r.WinningDays++
		} else if d.DailyPnL < 0 {
			r.LosingDays++
		}
	}
	if len(returns) > 1 {
		r.Volatility = formulas.PopStdDev(returns) * math.Sqrt(252)
	}
	if r.Volatility > 0 {
		r.SharpeRatio = (r.AnnualizedReturn - riskFreeRate) / r.Volatility
	}
	if downside := formulas.DownsideVolatility(returns); downside > 0 {
		r.SortinoRatio = (r.AnnualizedReturn - riskFreeRate) / downside
	}
	r.MaxDrawdown = formulas.MaxDrawdown(capitals)
	if active := r.WinningDays + r.LosingDays; active > 0 {
		r.WinRate = float64(r.WinningDays) / float64(active) * 100
	}
}
