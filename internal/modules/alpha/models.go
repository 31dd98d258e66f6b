package alpha

// InstrumentSnapshot is the per-instrument input to factor scoring, valid for
// one evaluation date. Optional fields are pointers; an absent field yields a
// zero sub-score in the corresponding factor instead of an error.
type InstrumentSnapshot struct {
	Symbol       string   `json:"symbol"`
	CurrentPrice float64  `json:"current_price"`
	MarketCap    *float64 `json:"market_cap,omitempty"`

	// Trailing prices
	Price1MAgo *float64 `json:"price_1m_ago,omitempty"`
	Price3MAgo *float64 `json:"price_3m_ago,omitempty"`
	Price6MAgo *float64 `json:"price_6m_ago,omitempty"`
	Price1YAgo *float64 `json:"price_1y_ago,omitempty"`

	// Valuation
	PERatio       *float64 `json:"pe_ratio,omitempty"`
	PBRatio       *float64 `json:"pb_ratio,omitempty"`
	PSRatio       *float64 `json:"ps_ratio,omitempty"`
	PCFRatio      *float64 `json:"pcf_ratio,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`

	// Quality
	ROE            *float64 `json:"roe,omitempty"` // percent
	ROA            *float64 `json:"roa,omitempty"` // percent
	DebtToEquity   *float64 `json:"debt_to_equity,omitempty"`
	CurrentRatio   *float64 `json:"current_ratio,omitempty"`
	EarningsGrowth *float64 `json:"earnings_growth,omitempty"` // percent
	RevenueGrowth  *float64 `json:"revenue_growth,omitempty"`  // percent

	// Realized volatility (annualized, decimal)
	Volatility1M *float64 `json:"volatility_1m,omitempty"`
	Volatility3M *float64 `json:"volatility_3m,omitempty"`
	Volatility1Y *float64 `json:"volatility_1y,omitempty"`

	// Liquidity
	AvgVolume3M  *float64 `json:"avg_volume_3m,omitempty"`
	VolumeChange *float64 `json:"volume_change,omitempty"`

	// News / sentiment
	NewsSentiment *float64 `json:"news_sentiment,omitempty"` // -1..1
	NewsVolume    *int     `json:"news_volume,omitempty"`
}

// FactorScores carries the per-category sub-scores and the weighted total for
// one instrument. Zero-valued fields mean "input unavailable" by convention.
type FactorScores struct {
	Symbol string `json:"symbol"`

	// Momentum
	Momentum1M       float64 `json:"momentum_1m"`
	Momentum3M       float64 `json:"momentum_3m"`
	Momentum6M       float64 `json:"momentum_6m"`
	Momentum12M      float64 `json:"momentum_12m"`
	MomentumWeighted float64 `json:"momentum_weighted"`
	Reversal1W       float64 `json:"reversal_1w"`    // unimplemented: needs weekly price history
	TrendStrength    float64 `json:"trend_strength"` // dispersion of the momentum windows

	// Value (reciprocal ratios, higher is cheaper)
	ValuePE        float64 `json:"value_pe"`
	ValuePB        float64 `json:"value_pb"`
	ValuePS        float64 `json:"value_ps"`
	ValuePCF       float64 `json:"value_pcf"`
	ValueDividend  float64 `json:"value_dividend"`
	ValueComposite float64 `json:"value_composite"`

	// Quality
	QualityROE       float64 `json:"quality_roe"`
	QualityROA       float64 `json:"quality_roa"`
	QualityDebt      float64 `json:"quality_debt"`
	QualityLiquidity float64 `json:"quality_liquidity"`
	QualityGrowth    float64 `json:"quality_growth"`
	QualityComposite float64 `json:"quality_composite"`

	// Low volatility
	LowVol1M        float64 `json:"low_vol_1m"`
	LowVol3M        float64 `json:"low_vol_3m"`
	LowVol1Y        float64 `json:"low_vol_1y"`
	LowVolComposite float64 `json:"low_vol_composite"`

	// Size
	SizeMarketCap float64 `json:"size_market_cap"`
	SizeVolume    float64 `json:"size_volume"`
	SizeComposite float64 `json:"size_composite"`

	// Risk spread: unimplemented, all contribute 0.
	// Requires credit-spread and market-beta time series not in the data model.
	RiskSpreadCredit     float64 `json:"risk_spread_credit"`
	RiskSpreadVolatility float64 `json:"risk_spread_volatility"`
	RiskSpreadBeta       float64 `json:"risk_spread_beta"`

	// Sentiment
	SentimentScore    float64 `json:"sentiment_score"`
	SentimentMomentum float64 `json:"sentiment_momentum"` // unimplemented: needs historical sentiment series

	// Volatility spread: unimplemented, needs options-implied volatility.
	VolatilitySpread float64 `json:"volatility_spread"`

	TotalScore float64 `json:"total_score"`
	Rank       int     `json:"rank,omitempty"`
}

// Category weights for the total score. The remaining 7% is deliberately
// unallocated while the risk-spread and volatility-spread inputs are missing.
const (
	WeightMomentum  = 0.25
	WeightValue     = 0.20
	WeightQuality   = 0.20
	WeightLowVol    = 0.15
	WeightSize      = 0.10
	WeightSentiment = 0.03
)
