package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqclab/strategy-engine/internal/marketdata"
	"github.com/iqclab/strategy-engine/internal/modules/alpha"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
	"github.com/iqclab/strategy-engine/internal/modules/risk"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// driftSeries produces a close for every calendar day, compounding a fixed
// daily drift from a 100 base.
func driftSeries(from, to time.Time, dailyDrift float64) marketdata.PriceSeries {
	var series marketdata.PriceSeries
	price := 100.0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		series = append(series, marketdata.PricePoint{Date: d, Close: price, Volume: 1_000_000})
		price *= 1 + dailyDrift
	}
	return series
}

// storeSnapshots derives minimal snapshots straight from the price store,
// with a calm volatility so risk assessments pass.
type storeSnapshots struct {
	store *marketdata.Store
}

func (s storeSnapshots) SnapshotsAt(date time.Time) []alpha.InstrumentSnapshot {
	var snaps []alpha.InstrumentSnapshot
	for _, symbol := range s.store.Symbols() {
		series, _ := s.store.History(symbol)
		price, ok := series.CloseOnOrBefore(date)
		if !ok {
			continue
		}
		snap := alpha.InstrumentSnapshot{Symbol: symbol, CurrentPrice: price}
		if past, ok := series.CloseOnOrBefore(date.AddDate(0, 0, -30)); ok {
			snap.Price1MAgo = &past
		}
		vol := 0.10
		snap.Volatility1M = &vol
		snaps = append(snaps, snap)
	}
	return snaps
}

// emptySnapshots simulates a data outage at every rebalance.
type emptySnapshots struct{}

func (emptySnapshots) SnapshotsAt(time.Time) []alpha.InstrumentSnapshot { return nil }

func expansionMacro() marketdata.MacroSeries {
	pmi := 55.0
	return marketdata.MacroSeries{{
		Date: day(2023, time.December, 1),
		Signals: regime.Signals{
			InterestRate:     0.5,
			GDPGrowth:        3.5,
			UnemploymentRate: 3.9,
			InflationRate:    2.3,
			PMI:              &pmi,
		},
	}}
}

func testEngine(store *marketdata.Store, snaps SnapshotSource) *Engine {
	log := zerolog.Nop()
	constraints := risk.DefaultConstraints()
	// Two-name sleeves put the whole sleeve in one position.
	constraints.MaxPositionSize = 1.0
	return NewEngine(
		regime.NewClassifier(log),
		alpha.NewEngine(log),
		risk.NewManager(constraints, log),
		store, store, snaps, log,
	)
}

func trendingStore() *marketdata.Store {
	store := marketdata.NewStore()
	from := day(2023, time.July, 1)
	to := day(2024, time.March, 31)
	store.SetHistory("UP.US", driftSeries(from, to, 0.001))
	store.SetHistory("DOWN.US", driftSeries(from, to, -0.001))
	store.SetMacro(expansionMacro())
	return store
}

func monthlyConfig() Config {
	cfg := DefaultConfig(day(2024, time.January, 1), day(2024, time.March, 31))
	cfg.NumLong = 1
	cfg.NumShort = 1
	cfg.MaxPositionSize = 1.0
	return cfg
}

func TestRunMonthlyCadence(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	result, err := engine.Run(context.Background(), monthlyConfig())
	require.NoError(t, err)

	// One entry per calendar day, Jan 1 through Mar 31.
	assert.Len(t, result.Daily, 91)
	assert.Equal(t, day(2024, time.January, 1), result.Daily[0].Date)
	assert.Equal(t, day(2024, time.March, 31), result.Daily[90].Date)

	require.Equal(t, 3, result.NumRebalances)
	assert.Equal(t, day(2024, time.January, 1), result.Rebalances[0].Date)
	assert.Equal(t, day(2024, time.February, 1), result.Rebalances[1].Date)
	assert.Equal(t, day(2024, time.March, 1), result.Rebalances[2].Date)

	for _, r := range result.Rebalances {
		assert.Equal(t, regime.LowRateExpansion, r.Regime)
		assert.Equal(t, 1, r.NumLong)
		assert.Equal(t, 1, r.NumShort)
	}
}

func TestRunLongShortSelection(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	result, err := engine.Run(context.Background(), monthlyConfig())
	require.NoError(t, err)
	require.NotNil(t, result.FinalPortfolio)

	// The riser carries the long sleeve, the decliner the short sleeve, and
	// both legs profit on trending prices.
	assert.Equal(t, "UP.US", result.FinalPortfolio.LongPositions[0].Symbol)
	assert.Equal(t, "DOWN.US", result.FinalPortfolio.ShortPositions[0].Symbol)
	assert.Greater(t, result.FinalCapital, result.Config.InitialCapital)
	assert.Greater(t, result.TotalReturn, 0.0)
	assert.Greater(t, result.WinRate, 50.0)
}

func TestRunTransactionCosts(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	result, err := engine.Run(context.Background(), monthlyConfig())
	require.NoError(t, err)
	require.Equal(t, 3, result.NumRebalances)

	// The initial deployment is free; later rebalances pay on turnover.
	assert.Zero(t, result.Rebalances[0].TransactionCosts)
	assert.Greater(t, result.Rebalances[1].TransactionCosts, 0.0)

	var total float64
	for _, r := range result.Rebalances {
		total += r.TransactionCosts
	}
	assert.InDelta(t, total, result.TotalCosts, 1e-9)
}

func TestRunMarksIncomingPortfolio(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	result, err := engine.Run(context.Background(), monthlyConfig())
	require.NoError(t, err)

	// Rebalance days mark the portfolio deployed that day, so the first day
	// already earns the day's move on the new positions.
	first := result.Daily[0]
	require.Equal(t, result.Rebalances[0].Date, first.Date)
	assert.Greater(t, first.DailyPnL, 0.0)
	assert.Greater(t, first.DailyReturn, 0.0)
}

func TestRunCostAndDayBreakdown(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	cfg := monthlyConfig()
	result, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.InDelta(t, result.TotalCommission+result.TotalSlippage, result.TotalCosts, 1e-9)
	assert.Greater(t, result.TotalCommission, 0.0)
	// Split totals keep the configured rate proportions.
	assert.InDelta(t, result.TotalCommission*cfg.SlippageRate/cfg.CommissionRate, result.TotalSlippage, 1e-9)

	// Both trending legs profit every day, so every day is a winner.
	assert.Equal(t, len(result.Daily), result.WinningDays)
	assert.Zero(t, result.LosingDays)
	assert.Equal(t, 100.0, result.WinRate)

	// The cumulative return series ends at the total return.
	last := result.Daily[len(result.Daily)-1]
	assert.InDelta(t, result.TotalReturn, last.CumulativeReturn, 1e-9)
	assert.InDelta(t, result.Daily[0].DailyReturn, result.Daily[0].CumulativeReturn, 1e-9)
}

func TestRunQuarterlyCadence(t *testing.T) {
	store := marketdata.NewStore()
	from := day(2023, time.July, 1)
	to := day(2024, time.June, 30)
	store.SetHistory("UP.US", driftSeries(from, to, 0.001))
	store.SetHistory("DOWN.US", driftSeries(from, to, -0.001))
	store.SetMacro(expansionMacro())
	engine := testEngine(store, storeSnapshots{store})

	cfg := monthlyConfig()
	cfg.StartDate = day(2024, time.January, 1)
	cfg.EndDate = day(2024, time.June, 30)
	cfg.RebalanceFrequency = RebalanceQuarterly

	result, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Equal(t, 2, result.NumRebalances)
	assert.Equal(t, day(2024, time.January, 1), result.Rebalances[0].Date)
	assert.Equal(t, day(2024, time.April, 1), result.Rebalances[1].Date)
}

func TestRunEmptyUniverseKeepsCapitalFlat(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, emptySnapshots{})

	result, err := engine.Run(context.Background(), monthlyConfig())
	require.NoError(t, err)

	assert.Zero(t, result.NumRebalances)
	assert.Len(t, result.Daily, 91)
	assert.InDelta(t, result.Config.InitialCapital, result.FinalCapital, 1e-9)
	assert.Zero(t, result.TotalReturn)
	assert.Zero(t, result.TotalCosts)
}

func TestRunRejectsBadConfig(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted dates", func(c *Config) { c.StartDate, c.EndDate = c.EndDate, c.StartDate }},
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"negative commission", func(c *Config) { c.CommissionRate = -0.001 }},
		{"empty sleeve", func(c *Config) { c.NumLong = 0 }},
		{"unknown frequency", func(c *Config) { c.RebalanceFrequency = "WEEKLY" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := monthlyConfig()
			tt.mutate(&cfg)
			_, err := engine.Run(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestRunCancelledContext(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, monthlyConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonthlyReturnsCompound(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	result, err := engine.Run(context.Background(), monthlyConfig())
	require.NoError(t, err)

	monthly := result.MonthlyReturns()
	require.Len(t, monthly, 3)
	assert.Equal(t, 1, monthly[0].Month)
	assert.Equal(t, 3, monthly[2].Month)

	// Compounding the monthly series reproduces the total return.
	growth := 1.0
	for _, m := range monthly {
		growth *= 1 + m.Return/100
	}
	assert.InDelta(t, result.TotalReturn, (growth-1)*100, 1e-6)
}

func TestStatisticsIncludeFlatDays(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	cfg := monthlyConfig()
	cfg.EndDate = day(2024, time.January, 5)

	returns := []float64{1, -1, 0, 0, 0}
	result := &Result{Config: cfg}
	capital := cfg.InitialCapital
	for i, ret := range returns {
		capital *= 1 + ret/100
		result.Daily = append(result.Daily, DailyPerformance{
			Date:        cfg.StartDate.AddDate(0, 0, i),
			Capital:     capital,
			DailyPnL:    capital * ret / 100,
			DailyReturn: ret,
		})
	}
	result.FinalCapital = capital
	engine.computeStatistics(result)

	// Flat days stay in the series: σ of {1,-1,0,0,0} is √0.4, not 1.
	expected := math.Sqrt(0.4) * math.Sqrt(252)
	assert.InDelta(t, expected, result.Volatility, 1e-9)

	// Win accounting still skips flat days.
	assert.Equal(t, 1, result.WinningDays)
	assert.Equal(t, 1, result.LosingDays)
	assert.Equal(t, 50.0, result.WinRate)
}

func TestStatisticsAnnualization(t *testing.T) {
	store := trendingStore()
	engine := testEngine(store, storeSnapshots{store})

	result, err := engine.Run(context.Background(), monthlyConfig())
	require.NoError(t, err)

	expected := (math.Pow(result.FinalCapital/result.Config.InitialCapital, 365.0/91.0) - 1) * 100
	assert.InDelta(t, expected, result.AnnualizedReturn, 1e-6)
	assert.Greater(t, result.Volatility, 0.0)
	assert.NotZero(t, result.SharpeRatio)
}
