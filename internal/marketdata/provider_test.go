package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqclab/strategy-engine/internal/modules/regime"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleSeries() PriceSeries {
	return PriceSeries{
		{Date: date(2024, time.January, 2), Close: 100},
		{Date: date(2024, time.January, 3), Close: 102},
		{Date: date(2024, time.January, 5), Close: 101}, // Jan 4 missing
		{Date: date(2024, time.January, 8), Close: 105},
	}
}

func TestCloseOn(t *testing.T) {
	s := sampleSeries()

	close, ok := s.CloseOn(date(2024, time.January, 3))
	require.True(t, ok)
	assert.Equal(t, 102.0, close)

	_, ok = s.CloseOn(date(2024, time.January, 4))
	assert.False(t, ok)
}

func TestCloseOnOrBefore(t *testing.T) {
	s := sampleSeries()

	// Gap days resolve to the prior close.
	close, ok := s.CloseOnOrBefore(date(2024, time.January, 4))
	require.True(t, ok)
	assert.Equal(t, 102.0, close)

	// Before the series starts there is nothing to return.
	_, ok = s.CloseOnOrBefore(date(2024, time.January, 1))
	assert.False(t, ok)

	// After the series ends the last close holds.
	close, ok = s.CloseOnOrBefore(date(2024, time.February, 1))
	require.True(t, ok)
	assert.Equal(t, 105.0, close)
}

func TestDailyMove(t *testing.T) {
	s := sampleSeries()

	close, prev, ok := s.DailyMove(date(2024, time.January, 5))
	require.True(t, ok)
	assert.Equal(t, 101.0, close)
	assert.Equal(t, 102.0, prev)

	// First point has no predecessor.
	_, _, ok = s.DailyMove(date(2024, time.January, 2))
	assert.False(t, ok)

	// Missing dates have no move.
	_, _, ok = s.DailyMove(date(2024, time.January, 4))
	assert.False(t, ok)
}

func TestWindow(t *testing.T) {
	s := sampleSeries()

	w := s.Window(date(2024, time.January, 3), date(2024, time.January, 5))
	require.Len(t, w, 2)
	assert.Equal(t, 102.0, w[0].Close)
	assert.Equal(t, 101.0, w[1].Close)
}

func TestMacroActiveAt(t *testing.T) {
	series := MacroSeries{
		{Date: date(2024, time.January, 1), Signals: regime.Signals{GDPGrowth: 3.0}},
		{Date: date(2024, time.February, 1), Signals: regime.Signals{GDPGrowth: 1.0}},
	}

	obs, ok := series.ActiveAt(date(2024, time.January, 15))
	require.True(t, ok)
	assert.Equal(t, 3.0, obs.Signals.GDPGrowth)

	obs, ok = series.ActiveAt(date(2024, time.February, 1))
	require.True(t, ok)
	assert.Equal(t, 1.0, obs.Signals.GDPGrowth)

	// Before the first observation, the first one still applies.
	obs, ok = series.ActiveAt(date(2023, time.December, 1))
	require.True(t, ok)
	assert.Equal(t, 3.0, obs.Signals.GDPGrowth)

	_, ok = MacroSeries{}.ActiveAt(date(2024, time.January, 1))
	assert.False(t, ok)
}

func TestStoreSortsOnLoad(t *testing.T) {
	store := NewStore()
	store.SetHistory("AAPL.US", PriceSeries{
		{Date: date(2024, time.January, 5), Close: 101},
		{Date: date(2024, time.January, 2), Close: 100},
	})

	series, ok := store.History("AAPL.US")
	require.True(t, ok)
	assert.True(t, series[0].Date.Before(series[1].Date))

	_, ok = store.History("MISSING.US")
	assert.False(t, ok)

	store.SetHistory("MSFT.US", nil)
	assert.Equal(t, []string{"AAPL.US", "MSFT.US"}, store.Symbols())
}
