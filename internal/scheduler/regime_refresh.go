package scheduler

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/internal/events"
	"github.com/iqclab/strategy-engine/internal/marketdata"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
)

// RegimeRefreshJob reclassifies the market regime from the latest macro
// observation and emits an event when the regime changes.
type RegimeRefreshJob struct {
	classifier *regime.Classifier
	macro      marketdata.MacroSource
	events     *events.Manager
	log        zerolog.Logger

	mu      sync.Mutex
	current regime.Analysis
	primed  bool
}

// NewRegimeRefreshJob creates the job.
func NewRegimeRefreshJob(
	classifier *regime.Classifier,
	macro marketdata.MacroSource,
	eventManager *events.Manager,
	log zerolog.Logger,
) *RegimeRefreshJob {
	return &RegimeRefreshJob{
		classifier: classifier,
		macro:      macro,
		events:     eventManager,
		log:        log.With().Str("job", "regime_refresh").Logger(),
	}
}

// Name implements Job.
func (j *RegimeRefreshJob) Name() string {
	return "regime_refresh"
}

// Run implements Job.
func (j *RegimeRefreshJob) Run() error {
	obs, ok := j.macro.MacroHistory().Latest()
	if !ok {
		j.log.Warn().Msg("no macro observations available, skipping refresh")
		return nil
	}

	analysis := j.classifier.Classify(obs.Signals)

	j.mu.Lock()
	changed := j.primed && analysis.Regime != j.current.Regime
	previous := j.current.Regime
	j.current = analysis
	j.primed = true
	j.mu.Unlock()

	if changed {
		j.events.Emit(events.RegimeChanged, "regime", map[string]interface{}{
			"previous":   previous.String(),
			"current":    analysis.Regime.String(),
			"confidence": analysis.Confidence,
		})
	}

	j.log.Info().
		Str("regime", analysis.Regime.String()).
		Float64("confidence", analysis.Confidence).
		Bool("changed", changed).
		Msg("regime refreshed")
	return nil
}

// Current returns the last computed analysis.
func (j *RegimeRefreshJob) Current() (regime.Analysis, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current, j.primed
}
