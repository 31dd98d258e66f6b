// Command backtest runs one scenario from a YAML file against locally stored
// price histories and saves the result to the runs database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/iqclab/strategy-engine/internal/config"
	"github.com/iqclab/strategy-engine/internal/database"
	"github.com/iqclab/strategy-engine/internal/database/repositories"
	"github.com/iqclab/strategy-engine/internal/events"
	"github.com/iqclab/strategy-engine/internal/marketdata"
	"github.com/iqclab/strategy-engine/internal/modules/alpha"
	"github.com/iqclab/strategy-engine/internal/modules/backtest"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
	"github.com/iqclab/strategy-engine/internal/modules/risk"
	"github.com/iqclab/strategy-engine/internal/modules/universe"
	"github.com/iqclab/strategy-engine/pkg/logger"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to the scenario YAML file")
	printDaily := flag.Bool("daily", false, "print the full daily series as JSON")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: true})

	if *scenarioPath == "" {
		log.Fatal().Msg("-scenario is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	scenario, err := config.LoadScenario(*scenarioPath, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scenario")
	}
	dates, err := scenario.Dates()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid scenario dates")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	eventManager := events.NewManager(log)

	store := marketdata.NewStore()
	historyDB := universe.NewHistoryDB(cfg.HistoryDir, log)
	loaded := historyDB.LoadInto(store, scenario.Symbols)
	if loaded == 0 {
		log.Fatal().Str("history_dir", cfg.HistoryDir).Msg("No price histories could be loaded")
	}
	eventManager.Emit(events.UniverseLoaded, "backtest", map[string]interface{}{
		"requested": len(scenario.Symbols),
		"loaded":    loaded,
	})

	macro := make(marketdata.MacroSeries, 0, len(scenario.Macro))
	for _, m := range scenario.Macro {
		date, err := time.Parse("2006-01-02", m.Date)
		if err != nil {
			log.Fatal().Str("date", m.Date).Msg("Bad macro observation date")
		}
		macro = append(macro, marketdata.MacroObservation{Date: date, Signals: m.Signals})
	}
	store.SetMacro(macro)

	builder := universe.NewSnapshotBuilder(store, log)
	for symbol, f := range scenario.Fundamentals {
		builder.SetFundamentals(symbol, f)
	}

	engine := backtest.NewEngine(
		regime.NewClassifier(log),
		alpha.NewEngine(log),
		risk.NewManager(risk.DefaultConstraints(), log),
		store, store, builder, log,
	)

	runCfg := backtest.Config{
		StartDate:           dates.Start,
		EndDate:             dates.End,
		InitialCapital:      scenario.InitialCapital,
		RebalanceFrequency:  backtest.RebalanceFrequency(scenario.RebalanceFrequency),
		CommissionRate:      scenario.CommissionRate,
		SlippageRate:        scenario.SlippageRate,
		NumLong:             scenario.NumLong,
		NumShort:            scenario.NumShort,
		MaxPositionSize:     scenario.MaxPositionSize,
		TargetGrossExposure: scenario.TargetGrossExposure,
	}

	result, err := engine.Run(context.Background(), runCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}

	runs := repositories.NewRunRepository(db.Conn(), log)
	id, err := runs.Save(scenario.Name, result)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save run")
	}

	log.Info().
		Str("id", id).
		Float64("total_return", result.TotalReturn).
		Float64("annualized_return", result.AnnualizedReturn).
		Float64("sharpe", result.SharpeRatio).
		Float64("max_drawdown", result.MaxDrawdown).
		Float64("win_rate", result.WinRate).
		Int("rebalances", result.NumRebalances).
		Msg("Backtest complete")

	if *printDaily {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Daily); err != nil {
			log.Error().Err(err).Msg("Failed to print daily series")
		}
	}
}
