package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenarioFile(t, `
name: tech-ls
start_date: "2024-01-01"
end_date: "2024-06-30"
initial_capital: 500000
rebalance_frequency: QUARTERLY
num_long: 10
num_short: 10
symbols:
  - AAPL.US
  - MSFT.US
  - NVDA.US
macro:
  - date: "2023-12-01"
    signals:
      interest_rate: 0.5
      gdp_growth: 3.1
      unemployment_rate: 3.9
      inflation_rate: 2.3
      pmi: 55
fundamentals:
  AAPL.US:
    pe_ratio: 28.5
    roe: 45.0
`)

	defaults := &Config{
		NumLong:             20,
		NumShort:            20,
		MaxPositionSize:     0.10,
		TargetGrossExposure: 2.0,
		CommissionRate:      0.001,
		SlippageRate:        0.0005,
	}

	s, err := LoadScenario(path, defaults)
	require.NoError(t, err)

	assert.Equal(t, "tech-ls", s.Name)
	assert.Equal(t, 10, s.NumLong)
	assert.Equal(t, 500000.0, s.InitialCapital)
	assert.Equal(t, "QUARTERLY", s.RebalanceFrequency)
	// Unset fields fall back to config defaults.
	assert.Equal(t, 0.10, s.MaxPositionSize)
	assert.Equal(t, 2.0, s.TargetGrossExposure)
	assert.Equal(t, 0.001, s.CommissionRate)
	assert.Len(t, s.Symbols, 3)

	dates, err := s.Dates()
	require.NoError(t, err)
	assert.Equal(t, 2024, dates.Start.Year())

	require.Len(t, s.Macro, 1)
	assert.Equal(t, 0.5, s.Macro[0].Signals.InterestRate)
	require.NotNil(t, s.Macro[0].Signals.PMI)
	assert.Equal(t, 55.0, *s.Macro[0].Signals.PMI)

	f, ok := s.Fundamentals["AAPL.US"]
	require.True(t, ok)
	require.NotNil(t, f.PERatio)
	assert.Equal(t, 28.5, *f.PERatio)
}

func TestLoadScenarioRejectsEmptySymbols(t *testing.T) {
	path := writeScenarioFile(t, `
name: empty
start_date: "2024-01-01"
end_date: "2024-06-30"
`)

	_, err := LoadScenario(path, nil)
	assert.Error(t, err)
}

func TestLoadScenarioRejectsInvertedDates(t *testing.T) {
	path := writeScenarioFile(t, `
name: inverted
start_date: "2024-06-30"
end_date: "2024-01-01"
symbols: [AAPL.US]
`)

	_, err := LoadScenario(path, nil)
	assert.Error(t, err)
}
