package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

const complianceRecordColumns = `id, student_id, student_name, rto_id, provider_id, course_code, categories,
       overall_compliance_score, overall_compliance_status, current_placement, last_updated_by, version, created_at, updated_at`

// complianceRecordRow mirrors the table with JSON columns left raw so one bad row can be skipped.
type complianceRecordRow struct {
	ID                      string                  `db:"id"`
	StudentID               string                  `db:"student_id"`
	StudentName             string                  `db:"student_name"`
	RTOID                   *string                 `db:"rto_id"`
	ProviderID              *string                 `db:"provider_id"`
	CourseCode              *string                 `db:"course_code"`
	Categories              []byte                  `db:"categories"`
	OverallComplianceScore  int                     `db:"overall_compliance_score"`
	OverallComplianceStatus models.ComplianceStatus `db:"overall_compliance_status"`
	CurrentPlacement        []byte                  `db:"current_placement"`
	LastUpdatedBy           *string                 `db:"last_updated_by"`
	Version                 int                     `db:"version"`
	CreatedAt               time.Time               `db:"created_at"`
	UpdatedAt               time.Time               `db:"updated_at"`
}

func (row complianceRecordRow) toModel() (*models.StudentComplianceRecord, error) {
	record := &models.StudentComplianceRecord{
		ID:                      row.ID,
		StudentID:               row.StudentID,
		StudentName:             row.StudentName,
		RTOID:                   row.RTOID,
		ProviderID:              row.ProviderID,
		CourseCode:              row.CourseCode,
		OverallComplianceScore:  row.OverallComplianceScore,
		OverallComplianceStatus: row.OverallComplianceStatus,
		LastUpdatedBy:           row.LastUpdatedBy,
		Version:                 row.Version,
		CreatedAt:               row.CreatedAt,
		UpdatedAt:               row.UpdatedAt,
	}
	if err := record.Categories.Scan(row.Categories); err != nil {
		return nil, fmt.Errorf("decode categories for student %s: %w", row.StudentID, err)
	}
	if len(row.CurrentPlacement) > 0 && string(row.CurrentPlacement) != "null" {
		var placement models.Placement
		if err := placement.Scan(row.CurrentPlacement); err != nil {
			return nil, fmt.Errorf("decode placement for student %s: %w", row.StudentID, err)
		}
		record.CurrentPlacement = &placement
	}
	return record, nil
}

// decodeComplianceRows converts rows, returning undecodable rows as skipped errors.
func decodeComplianceRows(rows []complianceRecordRow) ([]models.StudentComplianceRecord, []error) {
	records := make([]models.StudentComplianceRecord, 0, len(rows))
	var skipped []error
	for _, row := range rows {
		record, err := row.toModel()
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		records = append(records, *record)
	}
	return records, skipped
}

// StudentComplianceRepository persists student compliance records.
type StudentComplianceRepository struct {
	db *sqlx.DB
}

// NewStudentComplianceRepository constructs the repository.
func NewStudentComplianceRepository(db *sqlx.DB) *StudentComplianceRepository {
	return &StudentComplianceRepository{db: db}
}

// List returns a page of records plus the total count. Rows that fail to decode are left out of the page.
func (r *StudentComplianceRepository) List(ctx context.Context, filter models.StudentComplianceFilter) ([]models.StudentComplianceRecord, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("overall_compliance_status = $%d", len(args)))
	}
	if filter.RTOID != "" {
		args = append(args, filter.RTOID)
		conditions = append(conditions, fmt.Sprintf("rto_id = $%d", len(args)))
	}
	if filter.ProviderID != "" {
		args = append(args, filter.ProviderID)
		conditions = append(conditions, fmt.Sprintf("provider_id = $%d", len(args)))
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

	query := fmt.Sprintf("SELECT %s FROM student_compliance_records%s ORDER BY student_name ASC, student_id ASC LIMIT %d OFFSET %d",
		complianceRecordColumns, whereClause, size, offset)
	var rows []complianceRecordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list compliance records: %w", err)
	}
	countQuery := "SELECT COUNT(*) FROM student_compliance_records" + whereClause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count compliance records: %w", err)
	}
	records, _ := decodeComplianceRows(rows)
	return records, total, nil
}

// GetByStudentID fetches the record for a student.
func (r *StudentComplianceRepository) GetByStudentID(ctx context.Context, studentID string) (*models.StudentComplianceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM student_compliance_records WHERE student_id = $1", complianceRecordColumns)
	var row complianceRecordRow
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return nil, err
	}
	return row.toModel()
}

// Create inserts a new record.
func (r *StudentComplianceRepository) Create(ctx context.Context, record *models.StudentComplianceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	if record.Version == 0 {
		record.Version = 1
	}
	const query = `INSERT INTO student_compliance_records
	(id, student_id, student_name, rto_id, provider_id, course_code, categories, overall_compliance_score, overall_compliance_status,
	 current_placement, last_updated_by, version, created_at, updated_at)
	VALUES (:id, :student_id, :student_name, :rto_id, :provider_id, :course_code, :categories, :overall_compliance_score, :overall_compliance_status,
	 :current_placement, :last_updated_by, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create compliance record: %w", err)
	}
	return nil
}

// UpdateWithLock loads the record under a row lock, applies mutate and persists the result in one transaction.
// An error from mutate rolls back and is returned unchanged. sql.ErrNoRows is returned for unknown students.
func (r *StudentComplianceRepository) UpdateWithLock(ctx context.Context, studentID string, mutate func(*models.StudentComplianceRecord) error) (*models.StudentComplianceRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin compliance update tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf("SELECT %s FROM student_compliance_records WHERE student_id = $1 FOR UPDATE", complianceRecordColumns)
	var row complianceRecordRow
	if err := tx.GetContext(ctx, &row, query, studentID); err != nil {
		return nil, err
	}
	record, err := row.toModel()
	if err != nil {
		return nil, err
	}
	if err := mutate(record); err != nil {
		return nil, err
	}
	record.Version = row.Version + 1

	const update = `UPDATE student_compliance_records SET categories = :categories, overall_compliance_score = :overall_compliance_score,
	overall_compliance_status = :overall_compliance_status, current_placement = :current_placement, last_updated_by = :last_updated_by,
	version = :version, updated_at = :updated_at
	WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, update, record)
	if err != nil {
		return nil, fmt.Errorf("update compliance record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check compliance update rows: %w", err)
	}
	if rows == 0 {
		return nil, sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit compliance update tx: %w", err)
	}
	return record, nil
}
