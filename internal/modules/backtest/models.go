package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/iqclab/strategy-engine/internal/modules/optimizer"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
)

// RebalanceFrequency controls how often the simulated portfolio re-optimizes.
type RebalanceFrequency string

const (
	RebalanceMonthly   RebalanceFrequency = "MONTHLY"
	RebalanceQuarterly RebalanceFrequency = "QUARTERLY"
	RebalanceYearly    RebalanceFrequency = "YEARLY"
)

func (f RebalanceFrequency) valid() bool {
	switch f {
	case RebalanceMonthly, RebalanceQuarterly, RebalanceYearly:
		return true
	}
	return false
}

// Config holds the parameters of one simulation run.
type Config struct {
	StartDate           time.Time          `json:"start_date"`
	EndDate             time.Time          `json:"end_date"`
	InitialCapital      float64            `json:"initial_capital"`
	RebalanceFrequency  RebalanceFrequency `json:"rebalance_frequency"`
	CommissionRate      float64            `json:"commission_rate"`
	SlippageRate        float64            `json:"slippage_rate"`
	NumLong             int                `json:"num_long"`
	NumShort            int                `json:"num_short"`
	MaxPositionSize     float64            `json:"max_position_size"`
	TargetGrossExposure float64            `json:"target_gross_exposure"`
}

// DefaultConfig mirrors the optimizer defaults with institutional-ish costs.
func DefaultConfig(start, end time.Time) Config {
	return Config{
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      1_000_000,
		RebalanceFrequency:  RebalanceMonthly,
		CommissionRate:      0.001,
		SlippageRate:        0.0005,
		NumLong:             20,
		NumShort:            20,
		MaxPositionSize:     0.10,
		TargetGrossExposure: 2.0,
	}
}

// Validate rejects configurations the engine cannot simulate.
func (c Config) Validate() error {
	if !c.EndDate.After(c.StartDate) {
		return fmt.Errorf("end date %s is not after start date %s",
			c.EndDate.Format("2006-01-02"), c.StartDate.Format("2006-01-02"))
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %.2f", c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.SlippageRate < 0 {
		return fmt.Errorf("commission and slippage rates must be non-negative")
	}
	if c.NumLong <= 0 || c.NumShort <= 0 {
		return fmt.Errorf("long and short sleeve sizes must be positive")
	}
	if !c.RebalanceFrequency.valid() {
		return fmt.Errorf("unknown rebalance frequency %q", c.RebalanceFrequency)
	}
	return nil
}

// DailyPerformance is one calendar day of the equity curve.
type DailyPerformance struct {
	Date             time.Time           `json:"date"`
	Capital          float64             `json:"capital"`
	DailyPnL         float64             `json:"daily_pnl"`
	DailyReturn      float64             `json:"daily_return"`
	CumulativeReturn float64             `json:"cumulative_return"`
	Regime           regime.MarketRegime `json:"regime"`
	LongExposure     float64             `json:"long_exposure"`
	ShortExposure    float64             `json:"short_exposure"`
	NumPositions     int                 `json:"num_positions"`
}

// RebalanceRecord captures one executed rebalance.
type RebalanceRecord struct {
	Date             time.Time           `json:"date"`
	Regime           regime.MarketRegime `json:"regime"`
	RegimeConfidence float64             `json:"regime_confidence"`
	NumLong          int                 `json:"num_long"`
	NumShort         int                 `json:"num_short"`
	Turnover         float64             `json:"turnover"`
	Commission       float64             `json:"commission"`
	Slippage         float64             `json:"slippage"`
	TransactionCosts float64             `json:"transaction_costs"`
	Trades           int                 `json:"trades"`
	RiskAdjusted     bool                `json:"risk_adjusted"`
}

// Result is the full outcome of a simulation run.
type Result struct {
	Config           Config                    `json:"config"`
	FinalCapital     float64                   `json:"final_capital"`
	TotalReturn      float64                   `json:"total_return"`
	AnnualizedReturn float64                   `json:"annualized_return"`
	Volatility       float64                   `json:"volatility"`
	SharpeRatio      float64                   `json:"sharpe_ratio"`
	SortinoRatio     float64                   `json:"sortino_ratio"`
	MaxDrawdown      float64                   `json:"max_drawdown"`
	WinRate          float64                   `json:"win_rate"`
	WinningDays      int                       `json:"winning_days"`
	LosingDays       int                       `json:"losing_days"`
	TotalCommission  float64                   `json:"total_commission"`
	TotalSlippage    float64                   `json:"total_slippage"`
	TotalCosts       float64                   `json:"total_costs"`
	TotalTrades      int                       `json:"total_trades"`
	NumRebalances    int                       `json:"num_rebalances"`
	Daily            []DailyPerformance        `json:"daily"`
	Rebalances       []RebalanceRecord         `json:"rebalances"`
	FinalPortfolio   *optimizer.Recommendation `json:"final_portfolio,omitempty"`
}

// MonthlyReturn is the compounded return of one calendar month.
type MonthlyReturn struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Return float64 `json:"return"`
}

// MonthlyReturns compounds the daily series into per-month returns,
// sorted chronologically.
func (r *Result) MonthlyReturns() []MonthlyReturn {
	type key struct{ y, m int }
	growth := make(map[key]float64)
	for _, d := range r.Daily {
		k := key{d.Date.Year(), int(d.Date.Month())}
		g, ok := growth[k]
		if !ok {
			g = 1
		}
		growth[k] = g * (1 + d.DailyReturn/100)
	}
	out := make([]MonthlyReturn, 0, len(growth))
	for k, g := range growth {
		out = append(out, MonthlyReturn{Year: k.y, Month: k.m, Return: (g - 1) * 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
