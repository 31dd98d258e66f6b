package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iqclab/strategy-engine/internal/modules/regime"
	"github.com/iqclab/strategy-engine/internal/modules/universe"
)

// Scenario describes a backtest run loaded from a YAML file: the run
// parameters plus the symbols to trade.
type Scenario struct {
	Name                string   `yaml:"name"`
	StartDate           string   `yaml:"start_date"`
	EndDate             string   `yaml:"end_date"`
	InitialCapital      float64  `yaml:"initial_capital"`
	RebalanceFrequency  string   `yaml:"rebalance_frequency"`
	CommissionRate      float64  `yaml:"commission_rate"`
	SlippageRate        float64  `yaml:"slippage_rate"`
	NumLong             int      `yaml:"num_long"`
	NumShort            int      `yaml:"num_short"`
	MaxPositionSize     float64  `yaml:"max_position_size"`
	TargetGrossExposure float64  `yaml:"target_gross_exposure"`
	Symbols             []string `yaml:"symbols"`

	// Optional embedded data: macro observations for the regime classifier
	// and per-symbol fundamentals for the snapshot builder.
	Macro        []MacroEntry                     `yaml:"macro,omitempty"`
	Fundamentals map[string]universe.Fundamentals `yaml:"fundamentals,omitempty"`
}

// MacroEntry is one dated macro observation in a scenario file.
type MacroEntry struct {
	Date    string         `yaml:"date"`
	Signals regime.Signals `yaml:"signals"`
}

// LoadScenario parses a scenario YAML file and applies config defaults to
// any field the file leaves at zero.
func LoadScenario(path string, defaults *Config) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}

	if defaults != nil {
		if s.NumLong == 0 {
			s.NumLong = defaults.NumLong
		}
		if s.NumShort == 0 {
			s.NumShort = defaults.NumShort
		}
		if s.MaxPositionSize == 0 {
			s.MaxPositionSize = defaults.MaxPositionSize
		}
		if s.TargetGrossExposure == 0 {
			s.TargetGrossExposure = defaults.TargetGrossExposure
		}
		if s.CommissionRate == 0 {
			s.CommissionRate = defaults.CommissionRate
		}
		if s.SlippageRate == 0 {
			s.SlippageRate = defaults.SlippageRate
		}
	}
	if s.RebalanceFrequency == "" {
		s.RebalanceFrequency = "MONTHLY"
	}
	if s.InitialCapital == 0 {
		s.InitialCapital = 1_000_000
	}

	if _, err := s.Dates(); err != nil {
		return nil, err
	}
	if len(s.Symbols) == 0 {
		return nil, fmt.Errorf("scenario %q lists no symbols", s.Name)
	}

	return &s, nil
}

// DateRange is a parsed start/end pair.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Dates parses and validates the scenario's date range.
func (s *Scenario) Dates() (DateRange, error) {
	start, err := time.Parse("2006-01-02", s.StartDate)
	if err != nil {
		return DateRange{}, fmt.Errorf("bad start_date %q: %w", s.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", s.EndDate)
	if err != nil {
		return DateRange{}, fmt.Errorf("bad end_date %q: %w", s.EndDate, err)
	}
	if !end.After(start) {
		return DateRange{}, fmt.Errorf("end_date %s is not after start_date %s", s.EndDate, s.StartDate)
	}
	return DateRange{Start: start, End: end}, nil
}
