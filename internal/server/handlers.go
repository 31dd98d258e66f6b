package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iqclab/strategy-engine/internal/events"
	"github.com/iqclab/strategy-engine/internal/marketdata"
	"github.com/iqclab/strategy-engine/internal/modules/backtest"
	"github.com/iqclab/strategy-engine/internal/modules/optimizer"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
	"github.com/iqclab/strategy-engine/internal/modules/universe"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "strategy-engine",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleClassifyRegime classifies macro signals into a market regime.
func (s *Server) handleClassifyRegime(w http.ResponseWriter, r *http.Request) {
	var signals regime.Signals
	if err := json.NewDecoder(r.Body).Decode(&signals); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	analysis := s.classifier.Classify(signals)
	s.writeJSON(w, http.StatusOK, analysis)
}

type optimizeRequest struct {
	TotalCapital float64             `json:"total_capital"`
	Signals      regime.Signals      `json:"signals"`
	Instruments  []instrumentPayload `json:"instruments"`
	Options      *optimizeOptions    `json:"options,omitempty"`

	// Currently held portfolio, if any. When present the response carries a
	// rebalance plan diffing it against the new recommendation.
	Current *optimizer.Recommendation `json:"current,omitempty"`
}

type optimizeOptions struct {
	NumLong             int     `json:"num_long"`
	NumShort            int     `json:"num_short"`
	MaxPositionSize     float64 `json:"max_position_size"`
	TargetGrossExposure float64 `json:"target_gross_exposure"`
}

type instrumentPayload struct {
	Symbol       string                `json:"symbol"`
	CurrentPrice float64               `json:"current_price"`
	Fundamentals universe.Fundamentals `json:"fundamentals"`
	Prices       []pricePayload        `json:"prices,omitempty"`
}

type pricePayload struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// handleOptimizePortfolio scores the submitted instruments and builds a
// long/short recommendation under the supplied macro signals.
func (s *Server) handleOptimizePortfolio(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TotalCapital <= 0 {
		s.writeError(w, http.StatusBadRequest, "total_capital must be positive")
		return
	}
	if len(req.Instruments) == 0 {
		s.writeError(w, http.StatusBadRequest, "instruments list is empty")
		return
	}

	store := marketdata.NewStore()
	builder := universe.NewSnapshotBuilder(store, s.log)
	asOf := time.Now()
	for _, inst := range req.Instruments {
		series, err := parseSeries(inst.Prices)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad prices for "+inst.Symbol+": "+err.Error())
			return
		}
		if len(series) == 0 && inst.CurrentPrice > 0 {
			series = marketdata.PriceSeries{{Date: asOf, Close: inst.CurrentPrice}}
		}
		store.SetHistory(inst.Symbol, series)
		builder.SetFundamentals(inst.Symbol, inst.Fundamentals)
	}

	analysis := s.classifier.Classify(req.Signals)

	snaps := builder.SnapshotsAt(asOf)
	scores := s.scorer.ScoreUniverse(r.Context(), snaps)
	instruments := make([]optimizer.Instrument, len(snaps))
	for i := range snaps {
		instruments[i] = optimizer.Instrument{Snapshot: snaps[i], Scores: scores[i]}
	}

	optCfg := optimizer.Config{
		NumLong:             s.cfg.NumLong,
		NumShort:            s.cfg.NumShort,
		MaxPositionSize:     s.cfg.MaxPositionSize,
		TargetGrossExposure: s.cfg.TargetGrossExposure,
	}
	if o := req.Options; o != nil {
		if o.NumLong > 0 {
			optCfg.NumLong = o.NumLong
		}
		if o.NumShort > 0 {
			optCfg.NumShort = o.NumShort
		}
		if o.MaxPositionSize > 0 {
			optCfg.MaxPositionSize = o.MaxPositionSize
		}
		if o.TargetGrossExposure > 0 {
			optCfg.TargetGrossExposure = o.TargetGrossExposure
		}
	}

	opt := optimizer.New(optCfg, s.log)
	recommendation, err := opt.Optimize(instruments, analysis, req.TotalCapital)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	assessment := s.risk.Assess(recommendation, 0)
	if !assessment.IsAcceptable {
		s.events.Emit(events.RiskLimitBreached, "server", map[string]interface{}{
			"risk_level": assessment.OverallRiskLevel.String(),
			"violations": len(assessment.Violations),
		})
	}

	response := map[string]interface{}{
		"regime":         analysis,
		"recommendation": recommendation,
		"risk":           assessment,
	}
	if req.Current != nil {
		plan := optimizer.PlanRebalance(req.Current, recommendation, optimizer.DefaultRebalanceThreshold)
		response["rebalance_plan"] = plan
		s.events.Emit(events.RebalanceExecuted, "server", map[string]interface{}{
			"add":    len(plan.Add),
			"remove": len(plan.Remove),
			"adjust": len(plan.Adjust),
		})
	}

	s.writeJSON(w, http.StatusOK, response)
}

type backtestRequest struct {
	Name        string              `json:"name"`
	Config      backtestConfigBody  `json:"config"`
	Instruments []instrumentPayload `json:"instruments"`
	Macro       []macroPayload      `json:"macro"`
}

type backtestConfigBody struct {
	StartDate           string  `json:"start_date"`
	EndDate             string  `json:"end_date"`
	InitialCapital      float64 `json:"initial_capital"`
	RebalanceFrequency  string  `json:"rebalance_frequency"`
	CommissionRate      float64 `json:"commission_rate"`
	SlippageRate        float64 `json:"slippage_rate"`
	NumLong             int     `json:"num_long"`
	NumShort            int     `json:"num_short"`
	MaxPositionSize     float64 `json:"max_position_size"`
	TargetGrossExposure float64 `json:"target_gross_exposure"`
}

type macroPayload struct {
	Date    string         `json:"date"`
	Signals regime.Signals `json:"signals"`
}

// handleRunBacktest runs a full simulation over request-supplied price and
// macro series, saves the result and returns it.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg, err := s.buildBacktestConfig(req.Config)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := marketdata.NewStore()
	builder := universe.NewSnapshotBuilder(store, s.log)
	for _, inst := range req.Instruments {
		series, err := parseSeries(inst.Prices)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad prices for "+inst.Symbol+": "+err.Error())
			return
		}
		store.SetHistory(inst.Symbol, series)
		builder.SetFundamentals(inst.Symbol, inst.Fundamentals)
	}

	macro := make(marketdata.MacroSeries, 0, len(req.Macro))
	for _, m := range req.Macro {
		date, err := time.Parse("2006-01-02", m.Date)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad macro date "+m.Date)
			return
		}
		macro = append(macro, marketdata.MacroObservation{Date: date, Signals: m.Signals})
	}
	store.SetMacro(macro)

	s.events.Emit(events.BacktestStarted, "server", map[string]interface{}{
		"name":    req.Name,
		"symbols": len(req.Instruments),
	})

	engine := backtest.NewEngine(s.classifier, s.scorer, s.risk, store, store, builder, s.log)
	result, err := engine.Run(r.Context(), cfg)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id := ""
	if s.runs != nil {
		id, err = s.runs.Save(req.Name, result)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to persist backtest run")
		}
	}

	s.events.Emit(events.BacktestCompleted, "server", map[string]interface{}{
		"id":           id,
		"total_return": result.TotalReturn,
		"sharpe":       result.SharpeRatio,
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"result": result,
	})
}

// handleListRuns lists stored backtest runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.List(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleGetRun returns a stored run's full result.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.runs.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) buildBacktestConfig(body backtestConfigBody) (backtest.Config, error) {
	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		return backtest.Config{}, err
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		return backtest.Config{}, err
	}

	cfg := backtest.DefaultConfig(start, end)
	cfg.NumLong = s.cfg.NumLong
	cfg.NumShort = s.cfg.NumShort
	cfg.MaxPositionSize = s.cfg.MaxPositionSize
	cfg.TargetGrossExposure = s.cfg.TargetGrossExposure
	cfg.CommissionRate = s.cfg.CommissionRate
	cfg.SlippageRate = s.cfg.SlippageRate

	if body.InitialCapital > 0 {
		cfg.InitialCapital = body.InitialCapital
	}
	if body.RebalanceFrequency != "" {
		cfg.RebalanceFrequency = backtest.RebalanceFrequency(body.RebalanceFrequency)
	}
	if body.CommissionRate > 0 {
		cfg.CommissionRate = body.CommissionRate
	}
	if body.SlippageRate > 0 {
		cfg.SlippageRate = body.SlippageRate
	}
	if body.NumLong > 0 {
		cfg.NumLong = body.NumLong
	}
	if body.NumShort > 0 {
		cfg.NumShort = body.NumShort
	}
	if body.MaxPositionSize > 0 {
		cfg.MaxPositionSize = body.MaxPositionSize
	}
	if body.TargetGrossExposure > 0 {
		cfg.TargetGrossExposure = body.TargetGrossExposure
	}
	return cfg, cfg.Validate()
}

func parseSeries(prices []pricePayload) (marketdata.PriceSeries, error) {
	series := make(marketdata.PriceSeries, 0, len(prices))
	for _, p := range prices {
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, err
		}
		series = append(series, marketdata.PricePoint{Date: date, Close: p.Close, Volume: p.Volume})
	}
	return series, nil
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
