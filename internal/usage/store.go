// Package usage records token usage and cost for each reasoning call a
// pipeline run makes. Records are append-only and indexed by timestamp
// and run so per-stage and per-model totals stay cheap to aggregate.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/airspace-copilot/internal/config"
)

// Record is one reasoning call's token usage and cost.
type Record struct {
	ID           string
	Timestamp    time.Time
	RunID        string // pipeline run that made the call
	Stage        string // "ops" or "traveler"
	Region       string
	Callsign     string
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Summary holds aggregated token usage and cost totals.
type Summary struct {
	TotalRecords      int     `json:"total_records"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}

// Store is an append-only SQLite store for usage records. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a usage store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stage_usage (
		id            TEXT PRIMARY KEY,
		timestamp     TEXT NOT NULL,
		run_id        TEXT NOT NULL,
		stage         TEXT NOT NULL,
		region        TEXT,
		callsign      TEXT,
		model         TEXT NOT NULL,
		provider      TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd      REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stage_usage_timestamp ON stage_usage(timestamp);
	CREATE INDEX IF NOT EXISTS idx_stage_usage_run ON stage_usage(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists rec. An empty ID gets a UUIDv7 and a zero Timestamp
// becomes now.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_usage
			(id, timestamp, run_id, stage, region, callsign, model, provider,
			 input_tokens, output_tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.RunID,
		rec.Stage,
		rec.Region,
		rec.Callsign,
		rec.Model,
		rec.Provider,
		rec.InputTokens,
		rec.OutputTokens,
		rec.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Summary returns aggregated totals for records within [start, end).
func (s *Store) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM stage_usage
		 WHERE timestamp >= ? AND timestamp < ?`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)

	var sum Summary
	if err := row.Scan(&sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// SummaryByModel returns per-model totals for records within [start, end).
func (s *Store) SummaryByModel(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy(ctx, "model", start, end)
}

// SummaryByStage returns per-stage totals for records within [start, end).
func (s *Store) SummaryByStage(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy(ctx, "stage", start, end)
}

// SummaryByRegion returns per-region totals for records within
// [start, end). Records without a region are grouped under "".
func (s *Store) SummaryByRegion(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy(ctx, "region", start, end)
}

// column is always a constant from the methods above.
func (s *Store) summaryGroupedBy(ctx context.Context, column string, start, end time.Time) (map[string]*Summary, error) {
	query := fmt.Sprintf(
		`SELECT COALESCE(%s, ''), COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM stage_usage
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY %s
		 ORDER BY SUM(cost_usd) DESC`,
		column, column,
	)

	rows, err := s.db.QueryContext(ctx, query,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var key string
		var sum Summary
		if err := rows.Scan(&key, &sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("scan usage by %s: %w", column, err)
		}
		result[key] = &sum
	}
	return result, rows.Err()
}

// ComputeCost prices a call from the pricing table. Models not in the
// table (local Ollama models) cost nothing.
func ComputeCost(model string, inputTokens, outputTokens int, pricing map[string]config.PricingEntry) float64 {
	entry, ok := pricing[model]
	if !ok {
		return 0
	}
	cost := float64(inputTokens) / 1_000_000.0 * entry.InputPerMillion
	cost += float64(outputTokens) / 1_000_000.0 * entry.OutputPerMillion
	return cost
}
