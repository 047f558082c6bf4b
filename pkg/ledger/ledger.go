// Package ledger tracks token usage and USD spend per request. The log is
// append-only and the daily/monthly aggregates are always computed from it,
// so totals can never drift from the recorded rows.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Price is the USD cost per 1000 input/output tokens for one model.
type Price struct {
	Input  float64
	Output float64
}

// Approximate prices per 1K tokens (as of 2024).
var modelPrices = map[string]Price{
	"gpt-4o":            {Input: 0.005, Output: 0.015},
	"gpt-4o-mini":       {Input: 0.00015, Output: 0.0006},
	"gpt-4-turbo":       {Input: 0.01, Output: 0.03},
	"claude-3-5-sonnet": {Input: 0.003, Output: 0.015},
	"claude-3-haiku":    {Input: 0.00025, Output: 0.00125},
}

var defaultPrice = Price{Input: 0.001, Output: 0.002}

// PriceFor returns the price table entry for a model, falling back to the
// default price for unrecognized models.
func PriceFor(model string) Price {
	if p, ok := modelPrices[model]; ok {
		return p
	}
	return defaultPrice
}

// Estimator converts text into a token count estimate. The default divides
// character length by four; swapping in a real tokenizer changes recorded
// cost numbers.
type Estimator func(text string) int

// EstimateTokens is the default Estimator.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Ledger is the append-only cost log.
type Ledger struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// New opens (creating if needed) the cost log at dbPath.
func New(dbPath string, logger zerolog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cost log: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	l := &Ledger{
		db:     db,
		logger: logger.With().Str("module", "ledger").Logger(),
		now:    time.Now,
	}

	schema := `
		CREATE TABLE IF NOT EXISTS cost_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			agent_id TEXT,
			model TEXT,
			input_tokens INTEGER,
			output_tokens INTEGER,
			cost_usd REAL
		);
		CREATE INDEX IF NOT EXISTS idx_cost_log_timestamp ON cost_log(timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return l, nil
}

// Record appends one usage row and returns the computed USD cost.
func (l *Ledger) Record(agentID, model string, inputTokens, outputTokens int) (float64, error) {
	price := PriceFor(model)
	cost := float64(inputTokens)/1000*price.Input + float64(outputTokens)/1000*price.Output

	_, err := l.db.Exec(
		`INSERT INTO cost_log (timestamp, agent_id, model, input_tokens, output_tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.now().UTC().Format(time.RFC3339), agentID, model, inputTokens, outputTokens, cost,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record cost: %w", err)
	}

	l.logger.Debug().
		Str("agent", agentID).
		Str("model", model).
		Float64("cost_usd", cost).
		Msg("Cost recorded")

	return cost, nil
}

// DailyTotal returns the summed USD cost for today (UTC), computed at
// query time.
func (l *Ledger) DailyTotal() (float64, error) {
	day := l.now().UTC().Format("2006-01-02")

	var total float64
	err := l.db.QueryRow(
		"SELECT COALESCE(SUM(cost_usd), 0) FROM cost_log WHERE date(timestamp) = ?", day,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query daily total: %w", err)
	}
	return total, nil
}

// MonthlyTotal returns the summed USD cost for the current month (UTC).
func (l *Ledger) MonthlyTotal() (float64, error) {
	month := l.now().UTC().Format("2006-01")

	var total float64
	err := l.db.QueryRow(
		"SELECT COALESCE(SUM(cost_usd), 0) FROM cost_log WHERE strftime('%Y-%m', timestamp) = ?", month,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query monthly total: %w", err)
	}
	return total, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
