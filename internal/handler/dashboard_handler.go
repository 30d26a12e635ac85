package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/middleware"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
	"github.com/noah-isme/rto-compliance-api/pkg/response"
)

type dashboardService interface {
	Stats(ctx context.Context) (*dto.DashboardStats, error)
	TrafficLight(ctx context.Context) (*dto.TrafficLightResponse, error)
	Heatmap(ctx context.Context) (*dto.HeatmapResponse, error)
	CaptureSnapshot(ctx context.Context) (*dto.SnapshotResult, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Stats godoc
// @Summary Population compliance summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if stats.Skipped > 0 {
		middleware.SetMeta(c, "skipped_records", stats.Skipped)
	}
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// TrafficLight godoc
// @Summary Traffic light per dashboard type
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/traffic-light [get]
func (h *DashboardHandler) TrafficLight(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	lights, err := h.service.TrafficLight(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lights, nil, middleware.ExtractMeta(c))
}

// Heatmap godoc
// @Summary Risk heatmap by dashboard type and category
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/heatmap [get]
func (h *DashboardHandler) Heatmap(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	heatmap, err := h.service.Heatmap(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, heatmap, nil, middleware.ExtractMeta(c))
}

// CaptureSnapshot godoc
// @Summary Store the current heatmap scores for trend comparison
// @Tags Dashboard
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /dashboard/heatmap/snapshots [post]
func (h *DashboardHandler) CaptureSnapshot(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	result, err := h.service.CaptureSnapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
