// Package marketdata defines the engine's view of the external data
// collaborators: per-instrument price history and the macro-economic series
// the regime classifier consumes. The engine works on materialized series;
// retrieval itself lives outside this module.
package marketdata

import (
	"sort"
	"time"

	"github.com/iqclab/strategy-engine/internal/modules/regime"
)

// PricePoint is one daily close for an instrument.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// PriceSeries is an instrument's daily closes in ascending date order.
type PriceSeries []PricePoint

// MacroObservation pairs a date with the macro signals effective from it.
type MacroObservation struct {
	Date    time.Time      `json:"date"`
	Signals regime.Signals `json:"signals"`
}

// MacroSeries is the macro observations in ascending date order.
type MacroSeries []MacroObservation

// PriceSource supplies price history per instrument.
type PriceSource interface {
	History(symbol string) (PriceSeries, bool)
}

// MacroSource supplies the macro-economic series.
type MacroSource interface {
	MacroHistory() MacroSeries
}

// CloseOn returns the close on an exact date.
func (s PriceSeries) CloseOn(date time.Time) (float64, bool) {
	i := s.index(date)
	if i < 0 {
		return 0, false
	}
	return s[i].Close, true
}

// CloseOnOrBefore returns the most recent close at or before the date.
func (s PriceSeries) CloseOnOrBefore(date time.Time) (float64, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Date.After(date) })
	if i == 0 {
		return 0, false
	}
	return s[i-1].Close, true
}

// DailyMove returns the close on the date plus the prior point's close, for
// computing one day's return. ok is false when the date is missing or has no
// predecessor.
func (s PriceSeries) DailyMove(date time.Time) (close, prevClose float64, ok bool) {
	i := s.index(date)
	if i <= 0 {
		return 0, 0, false
	}
	return s[i].Close, s[i-1].Close, true
}

// Window returns the points in [from, to], inclusive.
func (s PriceSeries) Window(from, to time.Time) PriceSeries {
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(from) })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Date.After(to) })
	return s[lo:hi]
}

func (s PriceSeries) index(date time.Time) int {
	day := dayKey(date)
	i := sort.Search(len(s), func(i int) bool { return dayKey(s[i].Date) >= day })
	if i < len(s) && dayKey(s[i].Date) == day {
		return i
	}
	return -1
}

// ActiveAt returns the last observation dated at or before the given date.
// Before the first observation it falls back to the first one, so a backtest
// starting ahead of the macro series still has signals to work with.
func (m MacroSeries) ActiveAt(date time.Time) (MacroObservation, bool) {
	if len(m) == 0 {
		return MacroObservation{}, false
	}
	i := sort.Search(len(m), func(i int) bool { return m[i].Date.After(date) })
	if i == 0 {
		return m[0], true
	}
	return m[i-1], true
}

// Latest returns the newest observation.
func (m MacroSeries) Latest() (MacroObservation, bool) {
	if len(m) == 0 {
		return MacroObservation{}, false
	}
	return m[len(m)-1], true
}

func dayKey(t time.Time) int64 {
	y, mo, d := t.Date()
	return int64(y)*10000 + int64(mo)*100 + int64(d)
}
