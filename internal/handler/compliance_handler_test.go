package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/middleware"
	"github.com/noah-isme/rto-compliance-api/internal/models"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

type fakeComplianceSrv struct {
	record    *models.StudentComplianceRecord
	records   []models.StudentComplianceRecord
	err       error
	lastQuery dto.ComplianceRecordQuery
	lastActor string
	lastPatch dto.UpdateComplianceItemRequest
	lastItem  struct {
		studentID string
		category  models.Category
		itemKey   string
	}
}

func (f *fakeComplianceSrv) List(_ context.Context, query dto.ComplianceRecordQuery) ([]models.StudentComplianceRecord, *models.Pagination, error) {
	f.lastQuery = query
	return f.records, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: len(f.records)}, f.err
}

func (f *fakeComplianceSrv) Get(_ context.Context, studentID string) (*models.StudentComplianceRecord, error) {
	f.lastItem.studentID = studentID
	return f.record, f.err
}

func (f *fakeComplianceSrv) CreateRecord(_ context.Context, _ dto.CreateComplianceRecordRequest, actorID string) (*models.StudentComplianceRecord, error) {
	f.lastActor = actorID
	return f.record, f.err
}

func (f *fakeComplianceSrv) UpdateItem(_ context.Context, studentID string, category models.Category, itemKey string, req dto.UpdateComplianceItemRequest, actorID string) (*models.StudentComplianceRecord, error) {
	f.lastItem.studentID, f.lastItem.category, f.lastItem.itemKey = studentID, category, itemKey
	f.lastPatch = req
	f.lastActor = actorID
	return f.record, f.err
}

func (f *fakeComplianceSrv) VerifyDocument(_ context.Context, studentID string, category models.Category, itemKey string, _ dto.VerifyDocumentRequest, actorID string) (*models.StudentComplianceRecord, error) {
	f.lastItem.studentID, f.lastItem.category, f.lastItem.itemKey = studentID, category, itemKey
	f.lastActor = actorID
	return f.record, f.err
}

func (f *fakeComplianceSrv) BulkUpdate(_ context.Context, studentID string, _ dto.BulkUpdateRequest, actorID string) (*models.StudentComplianceRecord, error) {
	f.lastItem.studentID = studentID
	f.lastActor = actorID
	return f.record, f.err
}

type fakeExpiryReporter struct {
	report *dto.ExpiryReport
}

func (f *fakeExpiryReporter) ExpiryReport(context.Context) (*dto.ExpiryReport, error) {
	return f.report, nil
}

func complianceRouter(srv *fakeComplianceSrv, reports expiryReporter, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if claims != nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserKey, claims)
			c.Next()
		})
	}
	RegisterRoutes(router.Group("/api/v1"), RouteDeps{Compliance: NewComplianceHandler(srv, reports)})
	return router
}

var officerClaims = &models.JWTClaims{UserID: "officer-1", Role: models.RoleComplianceOfficer}

func TestComplianceHandlerListParsesFilters(t *testing.T) {
	srv := &fakeComplianceSrv{records: []models.StudentComplianceRecord{{StudentID: "s-1"}}}
	router := complianceRouter(srv, nil, officerClaims)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/compliance/students?status=in_progress&rtoId=rto-1&page=2&limit=5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ComplianceStatusInProgress, srv.lastQuery.Status)
	assert.Equal(t, "rto-1", srv.lastQuery.RTOID)
	assert.Equal(t, 2, srv.lastQuery.Page)
	assert.Equal(t, 5, srv.lastQuery.PageSize)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestComplianceHandlerGetNotFound(t *testing.T) {
	srv := &fakeComplianceSrv{err: appErrors.ErrNotFound}
	router := complianceRouter(srv, nil, officerClaims)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/compliance/students/s-404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "s-404", srv.lastItem.studentID)
}

func TestComplianceHandlerCreate(t *testing.T) {
	srv := &fakeComplianceSrv{record: &models.StudentComplianceRecord{StudentID: "s-1", Version: 1}}
	router := complianceRouter(srv, nil, officerClaims)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"studentId":"s-1","studentName":"Ada"}`)

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/compliance/students", body))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "officer-1", srv.lastActor)
	assert.Equal(t, "s-1", decodeEnvelope(t, rec).Data["studentId"])
}

func TestComplianceHandlerUpdateItemPassesPath(t *testing.T) {
	srv := &fakeComplianceSrv{record: &models.StudentComplianceRecord{StudentID: "s-1"}}
	router := complianceRouter(srv, nil, officerClaims)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"status":"compliant"}`)

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/compliance/students/s-1/categories/health_safety/items/police_check", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CategoryHealthSafety, srv.lastItem.category)
	assert.Equal(t, "police_check", srv.lastItem.itemKey)
	require.NotNil(t, srv.lastPatch.Status)
	assert.Equal(t, models.ItemStatusCompliant, *srv.lastPatch.Status)
}

func TestComplianceHandlerUpdateItemForwardsDerivedFields(t *testing.T) {
	srv := &fakeComplianceSrv{err: appErrors.Clone(appErrors.ErrInvariantViolation, "derived")}
	router := complianceRouter(srv, nil, officerClaims)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"overallComplianceScore":100}`)

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/compliance/students/s-1/categories/health_safety/items/police_check", body))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `100`, string(srv.lastPatch.OverallComplianceScore))
	assert.Equal(t, "INVARIANT_VIOLATION", decodeEnvelope(t, rec).Error.Code)
}

func TestComplianceHandlerRejectsMalformedJSON(t *testing.T) {
	router := complianceRouter(&fakeComplianceSrv{}, nil, officerClaims)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/compliance/students/s-1/bulk-update", strings.NewReader(`{"updates":`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
}

func TestComplianceHandlerVerifyDocument(t *testing.T) {
	srv := &fakeComplianceSrv{record: &models.StudentComplianceRecord{StudentID: "s-1"}}
	router := complianceRouter(srv, nil, officerClaims)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/compliance/students/s-1/categories/work_placement/items/host_insurance/verify",
		strings.NewReader(`{"decision":"approved"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CategoryWorkPlacement, srv.lastItem.category)
	assert.Equal(t, "officer-1", srv.lastActor)
}

func TestComplianceHandlerWritesRequireWriterRole(t *testing.T) {
	srv := &fakeComplianceSrv{record: &models.StudentComplianceRecord{}}
	router := complianceRouter(srv, nil, &models.JWTClaims{UserID: "trainer-1", Role: models.RoleTrainer})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/compliance/students/s-1/categories/health_safety/items/police_check",
		strings.NewReader(`{"status":"compliant"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, srv.lastActor)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/compliance/students/s-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestComplianceHandlerExpiryReportMeta(t *testing.T) {
	reports := &fakeExpiryReporter{report: &dto.ExpiryReport{Flagged: []dto.FlaggedItem{{StudentID: "s-1", Reason: "expiry date is empty"}}}}
	router := complianceRouter(&fakeComplianceSrv{}, reports, officerClaims)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/compliance/expiry-report", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeEnvelope(t, rec).Meta["flagged_items"])
}
