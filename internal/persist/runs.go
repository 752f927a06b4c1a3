// Package persist archives completed runs. The archive is append-only:
// a run is written once after synthesize and never updated.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/macrolens/backend/internal/contracts"
)

// ErrNoRuns is returned when the archive is empty
var ErrNoRuns = errors.New("no runs archived")

// RunRepository stores and reads archived runs
// ⭐ SSOT: 런 결과 저장/조회는 여기서만
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a run repository
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// EnsureSchema creates the archive tables when they do not exist yet
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS analysis`,
		`CREATE TABLE IF NOT EXISTS analysis.runs (
			run_id       TEXT PRIMARY KEY,
			asof         TIMESTAMPTZ NOT NULL,
			timezone     TEXT NOT NULL,
			state        JSONB NOT NULL,
			signal_count INT NOT NULL,
			alert_count  INT NOT NULL,
			error_count  INT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS runs_asof_idx ON analysis.runs (asof DESC)`,
		`CREATE TABLE IF NOT EXISTS analysis.alerts (
			id           TEXT PRIMARY KEY,
			run_id       TEXT NOT NULL REFERENCES analysis.runs (run_id),
			rule_name    TEXT NOT NULL,
			severity     TEXT NOT NULL,
			title        TEXT NOT NULL,
			message      TEXT NOT NULL,
			triggered_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS alerts_triggered_idx ON analysis.alerts (triggered_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure archive schema: %w", err)
		}
	}
	return nil
}

// SaveRun archives a completed run. Replays of the same run id are ignored
// so delivery retries cannot duplicate archive rows.
func (r *RunRepository) SaveRun(ctx context.Context, state *contracts.RunState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode run state: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO analysis.runs (run_id, asof, timezone, state, signal_count, alert_count, error_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`, state.RunID, state.AsOf, state.Timezone, doc,
		len(state.Signals), len(state.Alerts), len(state.Errors))
	if err != nil {
		return fmt.Errorf("failed to archive run %s: %w", state.RunID, err)
	}

	// Replay of an already-archived run: alerts are there too
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	for _, a := range state.Alerts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO analysis.alerts (id, run_id, rule_name, severity, title, message, triggered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, a.ID, a.RunID, a.RuleName, string(a.Severity), a.Title, a.Message, a.TriggeredAt); err != nil {
			return fmt.Errorf("failed to archive alert %s: %w", a.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// LatestRun returns the most recent archived run by as-of time
func (r *RunRepository) LatestRun(ctx context.Context) (*contracts.RunState, error) {
	return r.scanRun(r.pool.QueryRow(ctx, `
		SELECT state FROM analysis.runs
		ORDER BY asof DESC
		LIMIT 1
	`))
}

// RunByID returns one archived run
func (r *RunRepository) RunByID(ctx context.Context, runID string) (*contracts.RunState, error) {
	return r.scanRun(r.pool.QueryRow(ctx, `
		SELECT state FROM analysis.runs
		WHERE run_id = $1
	`, runID))
}

func (r *RunRepository) scanRun(row pgx.Row) (*contracts.RunState, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("failed to read archived run: %w", err)
	}

	var state contracts.RunState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("failed to decode archived run: %w", err)
	}
	return &state, nil
}

// RecentAlerts returns the latest triggered alerts across runs
func (r *RunRepository) RecentAlerts(ctx context.Context, limit int) ([]contracts.Alert, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, run_id, rule_name, severity, title, message, triggered_at
		FROM analysis.alerts
		ORDER BY triggered_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []contracts.Alert
	for rows.Next() {
		var a contracts.Alert
		var severity string
		if err := rows.Scan(&a.ID, &a.RunID, &a.RuleName, &severity, &a.Title, &a.Message, &a.TriggeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		a.Severity = contracts.Severity(severity)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
