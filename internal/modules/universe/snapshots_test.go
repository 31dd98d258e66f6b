package universe

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqclab/strategy-engine/internal/marketdata"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func flatSeries(from, to time.Time, close, volume float64) marketdata.PriceSeries {
	var series marketdata.PriceSeries
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		series = append(series, marketdata.PricePoint{Date: d, Close: close, Volume: volume})
	}
	return series
}

func TestSnapshotsAtSkipsUnpricedSymbols(t *testing.T) {
	store := marketdata.NewStore()
	asOf := date(2024, time.June, 1)

	store.SetHistory("LIVE.US", flatSeries(date(2024, time.January, 1), asOf, 50, 10_000))
	// Listed after the as-of date.
	store.SetHistory("FUTURE.US", flatSeries(date(2024, time.July, 1), date(2024, time.August, 1), 10, 10_000))

	b := NewSnapshotBuilder(store, zerolog.Nop())
	snaps := b.SnapshotsAt(asOf)

	require.Len(t, snaps, 1)
	assert.Equal(t, "LIVE.US", snaps[0].Symbol)
	assert.Equal(t, 50.0, snaps[0].CurrentPrice)
}

func TestSnapshotTrailingPrices(t *testing.T) {
	store := marketdata.NewStore()
	asOf := date(2024, time.June, 1)

	// Six months of history: the 1Y lag is out of reach and must stay nil.
	store.SetHistory("MID.US", flatSeries(date(2024, time.January, 1), asOf, 80, 5_000))

	b := NewSnapshotBuilder(store, zerolog.Nop())
	snaps := b.SnapshotsAt(asOf)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	require.NotNil(t, snap.Price1MAgo)
	assert.Equal(t, 80.0, *snap.Price1MAgo)
	require.NotNil(t, snap.Price3MAgo)
	assert.Nil(t, snap.Price1YAgo)
}

func TestSnapshotVolatilityAndVolume(t *testing.T) {
	store := marketdata.NewStore()
	asOf := date(2024, time.June, 1)

	store.SetHistory("FLAT.US", flatSeries(date(2024, time.January, 1), asOf, 100, 20_000))

	b := NewSnapshotBuilder(store, zerolog.Nop())
	snaps := b.SnapshotsAt(asOf)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	// Constant prices mean zero realized volatility.
	require.NotNil(t, snap.Volatility1M)
	assert.InDelta(t, 0.0, *snap.Volatility1M, 1e-9)
	require.NotNil(t, snap.AvgVolume3M)
	assert.InDelta(t, 20_000.0, *snap.AvgVolume3M, 1e-6)
	require.NotNil(t, snap.VolumeChange)
	assert.InDelta(t, 0.0, *snap.VolumeChange, 1e-9)
}

func TestSnapshotCarriesFundamentals(t *testing.T) {
	store := marketdata.NewStore()
	asOf := date(2024, time.June, 1)
	store.SetHistory("FUND.US", flatSeries(date(2024, time.May, 1), asOf, 60, 1_000))

	pe := 18.0
	roe := 22.0
	b := NewSnapshotBuilder(store, zerolog.Nop())
	b.SetFundamentals("FUND.US", Fundamentals{PERatio: &pe, ROE: &roe})

	snaps := b.SnapshotsAt(asOf)
	require.Len(t, snaps, 1)

	require.NotNil(t, snaps[0].PERatio)
	assert.Equal(t, 18.0, *snaps[0].PERatio)
	require.NotNil(t, snaps[0].ROE)
	assert.Equal(t, 22.0, *snaps[0].ROE)
	assert.Nil(t, snaps[0].PBRatio)
}
