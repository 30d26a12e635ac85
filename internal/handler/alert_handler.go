package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/middleware"
	"github.com/noah-isme/rto-compliance-api/internal/models"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
	"github.com/noah-isme/rto-compliance-api/pkg/response"
)

type alertService interface {
	List(ctx context.Context, query dto.AlertQuery) ([]models.ComplianceAlert, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ComplianceAlert, error)
	Create(ctx context.Context, req dto.CreateAlertRequest, actorID string) (*models.ComplianceAlert, error)
	Acknowledge(ctx context.Context, id, actorID string) (*models.ComplianceAlert, error)
	Resolve(ctx context.Context, id string, req dto.ResolveAlertRequest, actorID string) (*models.ComplianceAlert, error)
	Escalate(ctx context.Context, id, actorID string) (*models.ComplianceAlert, error)
	ProcessEscalations(ctx context.Context) (*dto.EscalationResult, error)
	SyncFromScan(ctx context.Context) (*dto.AlertSyncResult, *dto.ExpiryReport, error)
}

// AlertHandler exposes the alert lifecycle endpoints.
type AlertHandler struct {
	service alertService
}

// NewAlertHandler builds a new handler.
func NewAlertHandler(service alertService) *AlertHandler {
	return &AlertHandler{service: service}
}

// List godoc
// @Summary List compliance alerts
// @Tags Alerts
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param severity query string false "Comma separated severities"
// @Param dashboardType query string false "Dashboard type"
// @Param category query string false "Category"
// @Param studentId query string false "Student ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	query := dto.AlertQuery{
		DashboardType: models.DashboardType(c.Query("dashboardType")),
		Category:      models.Category(c.Query("category")),
		StudentID:     c.Query("studentId"),
	}
	for _, status := range splitCSV(c.Query("status")) {
		query.Status = append(query.Status, models.AlertStatus(status))
	}
	for _, severity := range splitCSV(c.Query("severity")) {
		query.Severity = append(query.Severity, models.AlertSeverity(severity))
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}
	alerts, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, pagination)
}

// Get godoc
// @Summary Get an alert
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /alerts/{id} [get]
func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, alert)
}

// Create godoc
// @Summary Raise a manual alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param payload body dto.CreateAlertRequest true "Alert payload"
// @Success 201 {object} response.Envelope
// @Router /alerts [post]
func (h *AlertHandler) Create(c *gin.Context) {
	var req dto.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid alert payload"))
		return
	}
	alert, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alert)
}

// Acknowledge godoc
// @Summary Acknowledge an active alert
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /alerts/{id}/acknowledge [post]
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	alert, err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, alert)
}

// Resolve godoc
// @Summary Resolve an alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param payload body dto.ResolveAlertRequest false "Resolution notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(c *gin.Context) {
	var req dto.ResolveAlertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolve payload"))
			return
		}
	}
	alert, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, alert)
}

// Escalate godoc
// @Summary Escalate one alert immediately
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id}/escalate [post]
func (h *AlertHandler) Escalate(c *gin.Context) {
	alert, err := h.service.Escalate(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, alert)
}

// ProcessEscalations godoc
// @Summary Run the escalation sweep now
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /alerts/escalations [post]
func (h *AlertHandler) ProcessEscalations(c *gin.Context) {
	result, err := h.service.ProcessEscalations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "escalated_count", len(result.Escalated))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Sync godoc
// @Summary Scan records and raise alerts for new findings
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/sync [post]
func (h *AlertHandler) Sync(c *gin.Context) {
	result, _, err := h.service.SyncFromScan(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "created_count", len(result.Created))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
