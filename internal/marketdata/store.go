package marketdata

import (
	"sort"
	"sync"
)

// Store is the in-memory implementation of PriceSource and MacroSource.
// Backtests and the HTTP layer load series into it up front; reads after
// that are lock-cheap.
type Store struct {
	mu     sync.RWMutex
	prices map[string]PriceSeries
	macro  MacroSeries
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{prices: make(map[string]PriceSeries)}
}

// SetHistory replaces an instrument's series. The series is sorted by date
// so callers can hand over data in any order.
func (s *Store) SetHistory(symbol string, series PriceSeries) {
	sorted := make(PriceSeries, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	s.mu.Lock()
	s.prices[symbol] = sorted
	s.mu.Unlock()
}

// SetMacro replaces the macro series, sorted by date.
func (s *Store) SetMacro(series MacroSeries) {
	sorted := make(MacroSeries, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	s.mu.Lock()
	s.macro = sorted
	s.mu.Unlock()
}

// History implements PriceSource.
func (s *Store) History(symbol string) (PriceSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.prices[symbol]
	return series, ok
}

// MacroHistory implements MacroSource.
func (s *Store) MacroHistory() MacroSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.macro
}

// Symbols returns the loaded instrument symbols in sorted order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
