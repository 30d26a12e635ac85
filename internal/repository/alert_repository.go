package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

const alertColumns = `id, student_id, dashboard_type, category, item_key, type, title, message, severity, status, escalation_level,
       due_date, acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution_notes, created_at, updated_at`

// AlertRepository persists compliance alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *models.ComplianceAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	const query = `INSERT INTO compliance_alerts
	(id, student_id, dashboard_type, category, item_key, type, title, message, severity, status, escalation_level,
	 due_date, acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution_notes, created_at, updated_at)
	VALUES (:id, :student_id, :dashboard_type, :category, :item_key, :type, :title, :message, :severity, :status, :escalation_level,
	 :due_date, :acknowledged_at, :acknowledged_by, :resolved_at, :resolved_by, :resolution_notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// GetByID fetches an alert by identifier.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.ComplianceAlert, error) {
	query := fmt.Sprintf("SELECT %s FROM compliance_alerts WHERE id = $1", alertColumns)
	var alert models.ComplianceAlert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		if isInvalidTextRepresentation(err) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &alert, nil
}

// isInvalidTextRepresentation reports PostgreSQL rejecting an id that is not a UUID. No row can match such an id.
func isInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

// List returns alerts matching the filter, newest first, with the total count.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.ComplianceAlert, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	if len(filter.Status) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Status)))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Severity) > 0 {
		values := make([]string, len(filter.Severity))
		for i, severity := range filter.Severity {
			values[i] = string(severity)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("severity = ANY($%d)", len(args)))
	}
	if filter.DashboardType != "" {
		args = append(args, filter.DashboardType)
		conditions = append(conditions, fmt.Sprintf("dashboard_type = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM compliance_alerts%s ORDER BY created_at DESC LIMIT %d OFFSET %d", alertColumns, whereClause, size, offset)
	var alerts []models.ComplianceAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM compliance_alerts"+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}
	return alerts, total, nil
}

// UpdateAlertStatusParams describes a guarded lifecycle transition.
type UpdateAlertStatusParams struct {
	ID              string
	From            []models.AlertStatus
	To              models.AlertStatus
	At              time.Time
	ActorID         *string
	ResolutionNotes *string
}

// UpdateStatus moves an alert to params.To only while its status is one of params.From.
// sql.ErrNoRows signals that the alert is missing or already moved on.
func (r *AlertRepository) UpdateStatus(ctx context.Context, params UpdateAlertStatusParams) error {
	setParts := []string{"status = :to", "updated_at = :at"}
	switch params.To {
	case models.AlertStatusAcknowledged:
		setParts = append(setParts, "acknowledged_at = :at", "acknowledged_by = :actor")
	case models.AlertStatusResolved:
		setParts = append(setParts, "resolved_at = :at", "resolved_by = :actor", "resolution_notes = :notes")
	}
	query := fmt.Sprintf("UPDATE compliance_alerts SET %s WHERE id = :id AND status = ANY(:from)", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":    params.ID,
		"to":    params.To,
		"at":    params.At,
		"actor": params.ActorID,
		"notes": params.ResolutionNotes,
		"from":  pq.Array(statusStrings(params.From)),
	})
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	return requireAffected(result, "alert status")
}

// Escalate bumps the escalation level and moves active alerts to escalated, only while the status is one of from.
// Other eligible statuses keep their status and only gain a level.
func (r *AlertRepository) Escalate(ctx context.Context, id string, from []models.AlertStatus, at time.Time) error {
	const query = `UPDATE compliance_alerts
	SET escalation_level = escalation_level + 1,
	    status = CASE WHEN status = 'active' THEN 'escalated' ELSE status END,
	    updated_at = :at
	WHERE id = :id AND status = ANY(:from)`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":   id,
		"at":   at,
		"from": pq.Array(statusStrings(from)),
	})
	if err != nil {
		return fmt.Errorf("escalate alert: %w", err)
	}
	return requireAffected(result, "alert escalation")
}

// maxEscalationBatch bounds one candidate page.
const maxEscalationBatch = 1000

// EscalationCursor marks the last candidate of a page. Pages are ordered by (created_at, id).
type EscalationCursor struct {
	CreatedAt time.Time
	ID        string
}

// ListEscalationCandidates returns active alerts created before cutoff, oldest first, starting after the cursor.
func (r *AlertRepository) ListEscalationCandidates(ctx context.Context, cutoff time.Time, after *EscalationCursor, limit int) ([]models.ComplianceAlert, error) {
	if limit <= 0 {
		limit = 500
	}
	if limit > maxEscalationBatch {
		limit = maxEscalationBatch
	}
	args := []interface{}{cutoff}
	keyset := ""
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		keyset = " AND (created_at, id) > ($2, $3)"
	}
	query := fmt.Sprintf("SELECT %s FROM compliance_alerts WHERE status = 'active' AND created_at < $1%s ORDER BY created_at ASC, id ASC LIMIT %d", alertColumns, keyset, limit)
	var alerts []models.ComplianceAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("list escalation candidates: %w", err)
	}
	return alerts, nil
}

type alertKeyRow struct {
	StudentID string           `db:"student_id"`
	Category  models.Category  `db:"category"`
	ItemKey   string           `db:"item_key"`
	Type      models.AlertType `db:"type"`
}

// ListOpenKeys returns the condition keys of every unresolved scanner-raised alert.
func (r *AlertRepository) ListOpenKeys(ctx context.Context) ([]models.AlertKey, error) {
	const query = `SELECT COALESCE(student_id, '') AS student_id, category, COALESCE(item_key, '') AS item_key, type
	FROM compliance_alerts WHERE status <> 'resolved' AND type <> 'manual'`
	var rows []alertKeyRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list open alert keys: %w", err)
	}
	keys := make([]models.AlertKey, len(rows))
	for i, row := range rows {
		keys[i] = models.AlertKey{StudentID: row.StudentID, Category: row.Category, ItemKey: row.ItemKey, Type: row.Type}
	}
	return keys, nil
}

func statusStrings(statuses []models.AlertStatus) []string {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	return values
}

func requireAffected(result sql.Result, label string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", label, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
