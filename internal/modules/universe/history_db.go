package universe

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/iqclab/strategy-engine/internal/marketdata"
)

// HistoryDB reads per-symbol SQLite price history files from a directory.
// Each symbol has its own database file holding a daily_prices table.
type HistoryDB struct {
	historyDir string
	log        zerolog.Logger
}

// NewHistoryDB creates a history database accessor rooted at historyDir.
func NewHistoryDB(historyDir string, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		historyDir: historyDir,
		log:        log.With().Str("component", "history_db").Logger(),
	}
}

// LoadSeries reads a symbol's full daily history in ascending date order.
func (h *HistoryDB) LoadSeries(symbol string) (marketdata.PriceSeries, error) {
	db, err := h.openHistoryDB(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `
		SELECT date, close_price, volume
		FROM daily_prices
		ORDER BY date ASC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var series marketdata.PriceSeries
	for rows.Next() {
		var dateStr string
		var close float64
		var volume sql.NullInt64

		if err := rows.Scan(&dateStr, &close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad date %q for %s: %w", dateStr, symbol, err)
		}

		point := marketdata.PricePoint{Date: date, Close: close}
		if volume.Valid {
			point.Volume = float64(volume.Int64)
		}
		series = append(series, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return series, nil
}

// LoadInto fills a store with the histories of the given symbols. Symbols
// whose database is missing or unreadable are skipped with a warning so one
// bad file does not sink a whole universe load.
func (h *HistoryDB) LoadInto(store *marketdata.Store, symbols []string) int {
	loaded := 0
	for _, symbol := range symbols {
		series, err := h.LoadSeries(symbol)
		if err != nil {
			h.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping symbol history")
			continue
		}
		store.SetHistory(symbol, series)
		loaded++
	}
	h.log.Info().Int("loaded", loaded).Int("requested", len(symbols)).Msg("price histories loaded")
	return loaded
}

// openHistoryDB opens the history database for a symbol.
func (h *HistoryDB) openHistoryDB(symbol string) (*sql.DB, error) {
	// Symbol format on disk: AAPL.US -> AAPL_US.db
	dbSymbol := strings.ReplaceAll(symbol, ".", "_")
	dbPath := filepath.Join(h.historyDir, dbSymbol+".db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database for %s: %w", symbol, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database for %s: %w", symbol, err)
	}

	return db, nil
}
