// Package universe assembles the investable universe: price histories from
// per-symbol SQLite files and fundamentals, combined into point-in-time
// instrument snapshots for scoring.
package universe

import (
	"math"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/internal/marketdata"
	"github.com/iqclab/strategy-engine/internal/modules/alpha"
)

// Lookback day counts for the priced factor windows.
const (
	days1M = 30
	days3M = 91
	days6M = 182
	days1Y = 365
)

// Fundamentals holds the slowly-moving per-symbol inputs that do not come
// from the price tape. All fields are optional; absent ones stay nil and the
// scorer renormalizes around them.
type Fundamentals struct {
	MarketCap      *float64 `json:"market_cap,omitempty" yaml:"market_cap,omitempty"`
	PERatio        *float64 `json:"pe_ratio,omitempty" yaml:"pe_ratio,omitempty"`
	PBRatio        *float64 `json:"pb_ratio,omitempty" yaml:"pb_ratio,omitempty"`
	PSRatio        *float64 `json:"ps_ratio,omitempty" yaml:"ps_ratio,omitempty"`
	PCFRatio       *float64 `json:"pcf_ratio,omitempty" yaml:"pcf_ratio,omitempty"`
	DividendYield  *float64 `json:"dividend_yield,omitempty" yaml:"dividend_yield,omitempty"`
	ROE            *float64 `json:"roe,omitempty" yaml:"roe,omitempty"`
	ROA            *float64 `json:"roa,omitempty" yaml:"roa,omitempty"`
	DebtToEquity   *float64 `json:"debt_to_equity,omitempty" yaml:"debt_to_equity,omitempty"`
	CurrentRatio   *float64 `json:"current_ratio,omitempty" yaml:"current_ratio,omitempty"`
	EarningsGrowth *float64 `json:"earnings_growth,omitempty" yaml:"earnings_growth,omitempty"`
	RevenueGrowth  *float64 `json:"revenue_growth,omitempty" yaml:"revenue_growth,omitempty"`
	NewsSentiment  *float64 `json:"news_sentiment,omitempty" yaml:"news_sentiment,omitempty"`
	NewsVolume     *int     `json:"news_volume,omitempty" yaml:"news_volume,omitempty"`
}

// SnapshotBuilder turns stored price series plus fundamentals into
// point-in-time snapshots. It satisfies the backtest engine's snapshot
// source contract.
type SnapshotBuilder struct {
	store *marketdata.Store
	log   zerolog.Logger

	mu           sync.RWMutex
	fundamentals map[string]Fundamentals
}

// NewSnapshotBuilder creates a builder over the given store.
func NewSnapshotBuilder(store *marketdata.Store, log zerolog.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{
		store:        store,
		log:          log.With().Str("component", "universe").Logger(),
		fundamentals: make(map[string]Fundamentals),
	}
}

// SetFundamentals registers the fundamentals for a symbol.
func (b *SnapshotBuilder) SetFundamentals(symbol string, f Fundamentals) {
	b.mu.Lock()
	b.fundamentals[symbol] = f
	b.mu.Unlock()
}

// SnapshotsAt builds a snapshot for every stored symbol that has a usable
// price at or before the date. Symbols without one are left out.
func (b *SnapshotBuilder) SnapshotsAt(date time.Time) []alpha.InstrumentSnapshot {
	symbols := b.store.Symbols()
	snaps := make([]alpha.InstrumentSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		snap, ok := b.snapshotFor(symbol, date)
		if !ok {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

func (b *SnapshotBuilder) snapshotFor(symbol string, date time.Time) (alpha.InstrumentSnapshot, bool) {
	series, ok := b.store.History(symbol)
	if !ok {
		return alpha.InstrumentSnapshot{}, false
	}
	price, ok := series.CloseOnOrBefore(date)
	if !ok || price <= 0 {
		return alpha.InstrumentSnapshot{}, false
	}

	snap := alpha.InstrumentSnapshot{Symbol: symbol, CurrentPrice: price}
	snap.Price1MAgo = closeAgo(series, date, days1M)
	snap.Price3MAgo = closeAgo(series, date, days3M)
	snap.Price6MAgo = closeAgo(series, date, days6M)
	snap.Price1YAgo = closeAgo(series, date, days1Y)
	snap.Volatility1M = windowVolatility(series, date, days1M)
	snap.Volatility3M = windowVolatility(series, date, days3M)
	snap.Volatility1Y = windowVolatility(series, date, days1Y)
	snap.AvgVolume3M = averageVolume(series, date, days3M)
	snap.VolumeChange = volumeShift(series, date)

	b.mu.RLock()
	f, hasFundamentals := b.fundamentals[symbol]
	b.mu.RUnlock()
	if hasFundamentals {
		applyFundamentals(&snap, f)
	}
	return snap, true
}

func applyFundamentals(snap *alpha.InstrumentSnapshot, f Fundamentals) {
	snap.MarketCap = f.MarketCap
	snap.PERatio = f.PERatio
	snap.PBRatio = f.PBRatio
	snap.PSRatio = f.PSRatio
	snap.PCFRatio = f.PCFRatio
	snap.DividendYield = f.DividendYield
	snap.ROE = f.ROE
	snap.ROA = f.ROA
	snap.DebtToEquity = f.DebtToEquity
	snap.CurrentRatio = f.CurrentRatio
	snap.EarningsGrowth = f.EarningsGrowth
	snap.RevenueGrowth = f.RevenueGrowth
	snap.NewsSentiment = f.NewsSentiment
	snap.NewsVolume = f.NewsVolume
}

// closeAgo returns the close from roughly `days` calendar days before the
// date, or nil when the history does not reach that far back.
func closeAgo(series marketdata.PriceSeries, date time.Time, days int) *float64 {
	target := date.AddDate(0, 0, -days)
	if len(series) == 0 || series[0].Date.After(target) {
		return nil
	}
	close, ok := series.CloseOnOrBefore(target)
	if !ok || close <= 0 {
		return nil
	}
	return &close
}

// windowVolatility computes annualized volatility of daily returns over the
// trailing window, as a fraction.
func windowVolatility(series marketdata.PriceSeries, date time.Time, days int) *float64 {
	closes := windowCloses(series, date, days)
	if len(closes) < 3 {
		return nil
	}
	returns := dailyReturns(closes)
	sd := talib.StdDev(returns, len(returns), 1.0)
	vol := sd[len(sd)-1] * math.Sqrt(252)
	if math.IsNaN(vol) {
		return nil
	}
	return &vol
}

// averageVolume is the mean daily volume over the trailing window.
func averageVolume(series marketdata.PriceSeries, date time.Time, days int) *float64 {
	volumes := windowVolumes(series, date, days)
	if len(volumes) == 0 {
		return nil
	}
	sma := talib.Sma(volumes, len(volumes))
	avg := sma[len(sma)-1]
	if avg <= 0 || math.IsNaN(avg) {
		return nil
	}
	return &avg
}

// volumeShift compares the last month's average volume to the trailing
// quarter's, as a fractional change.
func volumeShift(series marketdata.PriceSeries, date time.Time) *float64 {
	recent := averageVolume(series, date, days1M)
	base := averageVolume(series, date, days3M)
	if recent == nil || base == nil || *base == 0 {
		return nil
	}
	shift := *recent / *base - 1
	return &shift
}

func windowCloses(series marketdata.PriceSeries, date time.Time, days int) []float64 {
	window := series.Window(date.AddDate(0, 0, -days), date)
	closes := make([]float64, 0, len(window))
	for _, p := range window {
		if p.Close > 0 {
			closes = append(closes, p.Close)
		}
	}
	return closes
}

func windowVolumes(series marketdata.PriceSeries, date time.Time, days int) []float64 {
	window := series.Window(date.AddDate(0, 0, -days), date)
	volumes := make([]float64, 0, len(window))
	for _, p := range window {
		if p.Volume > 0 {
			volumes = append(volumes, p.Volume)
		}
	}
	return volumes
}

func dailyReturns(closes []float64) []float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
		}
	}
	return returns
}
