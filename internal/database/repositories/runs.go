package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/internal/modules/backtest"
)

// RunSummary is the listing view of a stored backtest run.
type RunSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date"`
	InitialCapital   float64   `json:"initial_capital"`
	FinalCapital     float64   `json:"final_capital"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	NumRebalances    int       `json:"num_rebalances"`
}

// RunRepository persists backtest results.
type RunRepository struct {
	*BaseRepository
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "runs").Logger()),
	}
}

// Save stores a completed run and returns its generated id.
func (r *RunRepository) Save(name string, result *backtest.Result) (string, error) {
	id := uuid.NewString()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to serialize result: %w", err)
	}

	query := `
		INSERT INTO backtest_runs (
			id, name, created_at, start_date, end_date,
			initial_capital, final_capital, total_return, annualized_return,
			volatility, sharpe_ratio, sortino_ratio, max_drawdown, win_rate,
			total_costs, num_rebalances, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id, name, time.Now().UTC().Format(time.RFC3339),
		result.Config.StartDate.Format("2006-01-02"),
		result.Config.EndDate.Format("2006-01-02"),
		result.Config.InitialCapital, result.FinalCapital,
		result.TotalReturn, result.AnnualizedReturn,
		result.Volatility, result.SharpeRatio, result.SortinoRatio,
		result.MaxDrawdown, result.WinRate,
		result.TotalCosts, result.NumRebalances,
		string(resultJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Info().Str("id", id).Str("name", name).Msg("backtest run saved")
	return id, nil
}

// List returns summaries of stored runs, newest first.
func (r *RunRepository) List(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, name, created_at, start_date, end_date,
		       initial_capital, final_capital, total_return, annualized_return,
		       sharpe_ratio, max_drawdown, num_rebalances
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var createdAt string
		err := rows.Scan(&s.ID, &s.Name, &createdAt, &s.StartDate, &s.EndDate,
			&s.InitialCapital, &s.FinalCapital, &s.TotalReturn, &s.AnnualizedReturn,
			&s.SharpeRatio, &s.MaxDrawdown, &s.NumRebalances)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			s.CreatedAt = t
		}
		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Get loads a full stored result by id.
func (r *RunRepository) Get(id string) (*backtest.Result, error) {
	var resultJSON string
	err := r.db.QueryRow(`SELECT result_json FROM backtest_runs WHERE id = ?`, id).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var result backtest.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse stored result: %w", err)
	}
	return &result, nil
}
