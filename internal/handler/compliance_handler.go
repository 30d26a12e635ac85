package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
	"github.com/noah-isme/rto-compliance-api/pkg/response"
)

type complianceService interface {
	List(ctx context.Context, query dto.ComplianceRecordQuery) ([]models.StudentComplianceRecord, *models.Pagination, error)
	Get(ctx context.Context, studentID string) (*models.StudentComplianceRecord, error)
	CreateRecord(ctx context.Context, req dto.CreateComplianceRecordRequest, actorID string) (*models.StudentComplianceRecord, error)
	UpdateItem(ctx context.Context, studentID string, category models.Category, itemKey string, req dto.UpdateComplianceItemRequest, actorID string) (*models.StudentComplianceRecord, error)
	VerifyDocument(ctx context.Context, studentID string, category models.Category, itemKey string, req dto.VerifyDocumentRequest, actorID string) (*models.StudentComplianceRecord, error)
	BulkUpdate(ctx context.Context, studentID string, req dto.BulkUpdateRequest, actorID string) (*models.StudentComplianceRecord, error)
}

type expiryReporter interface {
	ExpiryReport(ctx context.Context) (*dto.ExpiryReport, error)
}

// ComplianceHandler exposes student compliance record endpoints.
type ComplianceHandler struct {
	service complianceService
	reports expiryReporter
}

// NewComplianceHandler builds a new handler.
func NewComplianceHandler(service complianceService, reports expiryReporter) *ComplianceHandler {
	return &ComplianceHandler{service: service, reports: reports}
}

// List godoc
// @Summary List student compliance records
// @Tags Compliance
// @Produce json
// @Param status query string false "Overall status filter"
// @Param rtoId query string false "RTO filter"
// @Param providerId query string false "Provider filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /compliance/students [get]
func (h *ComplianceHandler) List(c *gin.Context) {
	query := dto.ComplianceRecordQuery{
		Status:     models.ComplianceStatus(strings.TrimSpace(c.Query("status"))),
		RTOID:      c.Query("rtoId"),
		ProviderID: c.Query("providerId"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}
	records, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get a student's compliance record
// @Tags Compliance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /compliance/students/{studentId} [get]
func (h *ComplianceHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Create godoc
// @Summary Open a compliance record for a student
// @Tags Compliance
// @Accept json
// @Produce json
// @Param payload body dto.CreateComplianceRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /compliance/students [post]
func (h *ComplianceHandler) Create(c *gin.Context) {
	var req dto.CreateComplianceRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid compliance record payload"))
		return
	}
	record, err := h.service.CreateRecord(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// UpdateItem godoc
// @Summary Update one compliance item
// @Description Derived fields (overallComplianceScore, overallComplianceStatus) are rejected.
// @Tags Compliance
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param category path string true "Category"
// @Param itemKey path string true "Item key"
// @Param payload body dto.UpdateComplianceItemRequest true "Item patch"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /compliance/students/{studentId}/categories/{category}/items/{itemKey} [patch]
func (h *ComplianceHandler) UpdateItem(c *gin.Context) {
	var req dto.UpdateComplianceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid compliance item payload"))
		return
	}
	record, err := h.service.UpdateItem(
		c.Request.Context(),
		c.Param("studentId"),
		models.Category(c.Param("category")),
		c.Param("itemKey"),
		req,
		actorFromContext(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// VerifyDocument godoc
// @Summary Record a verification decision for an item's document
// @Tags Compliance
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param category path string true "Category"
// @Param itemKey path string true "Item key"
// @Param payload body dto.VerifyDocumentRequest true "Verification decision"
// @Success 200 {object} response.Envelope
// @Router /compliance/students/{studentId}/categories/{category}/items/{itemKey}/verify [post]
func (h *ComplianceHandler) VerifyDocument(c *gin.Context) {
	var req dto.VerifyDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}
	record, err := h.service.VerifyDocument(
		c.Request.Context(),
		c.Param("studentId"),
		models.Category(c.Param("category")),
		c.Param("itemKey"),
		req,
		actorFromContext(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// BulkUpdate godoc
// @Summary Apply several item patches atomically
// @Tags Compliance
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body dto.BulkUpdateRequest true "Item patches"
// @Success 200 {object} response.Envelope
// @Router /compliance/students/{studentId}/bulk-update [post]
func (h *ComplianceHandler) BulkUpdate(c *gin.Context) {
	var req dto.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk update payload"))
		return
	}
	record, err := h.service.BulkUpdate(c.Request.Context(), c.Param("studentId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// ExpiryReport godoc
// @Summary Scan all records for expiring documents, breaches and upcoming deadlines
// @Tags Compliance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /compliance/expiry-report [get]
func (h *ComplianceHandler) ExpiryReport(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	report, err := h.reports.ExpiryReport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"flagged_items": len(report.Flagged)}
	response.JSON(c, http.StatusOK, report, nil, meta)
}
