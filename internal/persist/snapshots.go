package persist

import (
	"context"
	"fmt"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
)

// EnsureSnapshotSchema creates the config-snapshot table. Snapshots record
// exactly which configuration a scheduled run was evaluated under.
func (r *RunRepository) EnsureSnapshotSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis.config_snapshots (
			config_hash TEXT PRIMARY KEY,
			analysis_id TEXT NOT NULL,
			config_yaml TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}
	return nil
}

// SaveSnapshot records a config snapshot. The hash keys it, so re-saving
// an unchanged config is a no-op.
func (r *RunRepository) SaveSnapshot(ctx context.Context, snap analysisconfig.Snapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO analysis.config_snapshots (config_hash, analysis_id, config_yaml, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_hash) DO NOTHING
	`, snap.ConfigHash, snap.AnalysisID, snap.ConfigYAML, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save config snapshot %s: %w", snap.ConfigHash, err)
	}
	return nil
}
