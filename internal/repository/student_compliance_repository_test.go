package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

var recordColumnNames = []string{"id", "student_id", "student_name", "rto_id", "provider_id", "course_code", "categories",
	"overall_compliance_score", "overall_compliance_status", "current_placement", "last_updated_by", "version", "created_at", "updated_at"}

const sampleCategories = `{"healthSafety":{"police_check":{"status":"compliant","required":true,"priority":"critical"}}}`

func recordRows(studentID string, categories string, version int) *sqlmock.Rows {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(recordColumnNames).
		AddRow("rec-1", studentID, "Ada", "rto-1", nil, nil, []byte(categories), 100, "compliant",
			[]byte(`{"status":"active","hoursRequired":120,"hoursCompleted":40}`), nil, version, now, now)
}

func TestStudentComplianceRepositoryGetDecodesJSON(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentComplianceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_compliance_records WHERE student_id = $1")).
		WithArgs("s-1").
		WillReturnRows(recordRows("s-1", sampleCategories, 3))

	record, err := repo.GetByStudentID(context.Background(), "s-1")

	require.NoError(t, err)
	items, _ := record.Categories.Items(models.CategoryHealthSafety)
	assert.Equal(t, models.ItemStatusCompliant, items["police_check"].Status)
	require.NotNil(t, record.CurrentPlacement)
	assert.Equal(t, 40, record.CurrentPlacement.HoursCompleted)
	require.NotNil(t, record.RTOID)
	assert.Equal(t, "rto-1", *record.RTOID)
	assert.Equal(t, 3, record.Version)
}

func TestStudentComplianceRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentComplianceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_compliance_records WHERE student_id = $1")).
		WithArgs("s-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByStudentID(context.Background(), "s-404")

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentComplianceRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentComplianceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_compliance_records WHERE overall_compliance_status = $1 AND rto_id = $2 ORDER BY student_name ASC, student_id ASC LIMIT 10 OFFSET 10")).
		WithArgs(models.ComplianceStatusCompliant, "rto-1").
		WillReturnRows(recordRows("s-1", sampleCategories, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_compliance_records WHERE overall_compliance_status = $1 AND rto_id = $2")).
		WithArgs(models.ComplianceStatusCompliant, "rto-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	records, total, err := repo.List(context.Background(), models.StudentComplianceFilter{
		Status:   models.ComplianceStatusCompliant,
		RTOID:    "rto-1",
		Page:     2,
		PageSize: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, records, 1)
	assert.Equal(t, "s-1", records[0].StudentID)
}

func TestStudentComplianceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentComplianceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_compliance_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.StudentComplianceRecord{StudentID: "s-1", StudentName: "Ada", OverallComplianceStatus: models.ComplianceStatusCompliant, OverallComplianceScore: 100}
	require.NoError(t, repo.Create(context.Background(), record))

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, 1, record.Version)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestStudentComplianceRepositoryUpdateWithLockCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentComplianceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 FOR UPDATE")).
		WithArgs("s-1").
		WillReturnRows(recordRows("s-1", sampleCategories, 4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_compliance_records SET categories")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.UpdateWithLock(context.Background(), "s-1", func(record *models.StudentComplianceRecord) error {
		record.OverallComplianceScore = 50
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 5, record.Version)
	assert.Equal(t, 50, record.OverallComplianceScore)
}

func TestStudentComplianceRepositoryUpdateWithLockRollsBackOnMutateError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentComplianceRepository(db)
	rejected := errors.New("rejected")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("s-1").
		WillReturnRows(recordRows("s-1", sampleCategories, 4))
	mock.ExpectRollback()

	_, err := repo.UpdateWithLock(context.Background(), "s-1", func(*models.StudentComplianceRecord) error { return rejected })

	assert.ErrorIs(t, err, rejected)
}

func TestStudentComplianceRepositoryUpdateWithLockUnknownStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentComplianceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("s-404").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.UpdateWithLock(context.Background(), "s-404", func(*models.StudentComplianceRecord) error {
		t.Fatal("mutate must not run")
		return nil
	})

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDecodeComplianceRowsSkipsBadJSON(t *testing.T) {
	records, skipped := decodeComplianceRows([]complianceRecordRow{
		{StudentID: "s-1", Categories: []byte(sampleCategories)},
		{StudentID: "s-2", Categories: []byte(`{"healthSafety":`)},
	})

	require.Len(t, records, 1)
	assert.Equal(t, "s-1", records[0].StudentID)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Error(), "s-2")
}
