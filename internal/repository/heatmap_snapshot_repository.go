package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// HeatmapSnapshotRepository stores per-period heatmap scores used for trends.
type HeatmapSnapshotRepository struct {
	db *sqlx.DB
}

// NewHeatmapSnapshotRepository constructs the repository.
func NewHeatmapSnapshotRepository(db *sqlx.DB) *HeatmapSnapshotRepository {
	return &HeatmapSnapshotRepository{db: db}
}

// LatestBefore returns the most recent snapshot per cell with a period starting before the given instant.
func (r *HeatmapSnapshotRepository) LatestBefore(ctx context.Context, before time.Time) ([]models.HeatmapSnapshot, error) {
	const query = `SELECT DISTINCT ON (dashboard_type, category)
       id, dashboard_type, category, period_start, compliance_score, alert_count, created_at
	FROM heatmap_snapshots
	WHERE period_start < $1
	ORDER BY dashboard_type, category, period_start DESC`
	var snapshots []models.HeatmapSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, before); err != nil {
		return nil, fmt.Errorf("latest heatmap snapshots: %w", err)
	}
	return snapshots, nil
}

// SaveBatch upserts one period's cells in a single transaction.
func (r *HeatmapSnapshotRepository) SaveBatch(ctx context.Context, snapshots []models.HeatmapSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin heatmap snapshot tx: %w", err)
	}
	const query = `INSERT INTO heatmap_snapshots (id, dashboard_type, category, period_start, compliance_score, alert_count, created_at)
VALUES (:id, :dashboard_type, :category, :period_start, :compliance_score, :alert_count, :created_at)
ON CONFLICT (dashboard_type, category, period_start)
DO UPDATE SET compliance_score = EXCLUDED.compliance_score, alert_count = EXCLUDED.alert_count, created_at = EXCLUDED.created_at`
	now := time.Now().UTC()
	for i := range snapshots {
		if snapshots[i].ID == "" {
			snapshots[i].ID = uuid.NewString()
		}
		if snapshots[i].CreatedAt.IsZero() {
			snapshots[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, snapshots[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save heatmap snapshot: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit heatmap snapshot tx: %w", err)
	}
	return nil
}
