package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// ComplianceSnapshot is a consistent view of records and unresolved alerts for aggregate reads.
type ComplianceSnapshot struct {
	Records []models.StudentComplianceRecord
	Alerts  []models.ComplianceAlert
	// Skipped holds decode failures for records left out of Records.
	Skipped []error
}

// SnapshotRepository reads the population inside one read-only transaction.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// LoadSnapshot reads all records and unresolved alerts under REPEATABLE READ so both sets describe the same instant.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) (*ComplianceSnapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var rows []complianceRecordRow
	recordQuery := fmt.Sprintf("SELECT %s FROM student_compliance_records ORDER BY student_id", complianceRecordColumns)
	if err := tx.SelectContext(ctx, &rows, recordQuery); err != nil {
		return nil, fmt.Errorf("snapshot compliance records: %w", err)
	}
	var alerts []models.ComplianceAlert
	alertQuery := fmt.Sprintf("SELECT %s FROM compliance_alerts WHERE status <> 'resolved' ORDER BY created_at", alertColumns)
	if err := tx.SelectContext(ctx, &alerts, alertQuery); err != nil {
		return nil, fmt.Errorf("snapshot alerts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}

	records, skipped := decodeComplianceRows(rows)
	return &ComplianceSnapshot{Records: records, Alerts: alerts, Skipped: skipped}, nil
}
