package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

type fakeDashboardSrv struct {
	stats     *dto.DashboardStats
	lights    *dto.TrafficLightResponse
	heatmap   *dto.HeatmapResponse
	snapshot  *dto.SnapshotResult
	err       error
	snapshots int
}

func (f *fakeDashboardSrv) Stats(context.Context) (*dto.DashboardStats, error) {
	return f.stats, f.err
}

func (f *fakeDashboardSrv) TrafficLight(context.Context) (*dto.TrafficLightResponse, error) {
	return f.lights, f.err
}

func (f *fakeDashboardSrv) Heatmap(context.Context) (*dto.HeatmapResponse, error) {
	return f.heatmap, f.err
}

func (f *fakeDashboardSrv) CaptureSnapshot(context.Context) (*dto.SnapshotResult, error) {
	f.snapshots++
	return f.snapshot, f.err
}

func newTestContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, rec
}

func TestDashboardHandlerStatsReportsSkippedRecords(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{stats: &dto.DashboardStats{
		Students: dto.StudentStatusSummary{Total: 4, Compliant: 4, AverageScore: 100},
		Skipped:  2,
	}})
	c, rec := newTestContext(http.MethodGet, "/dashboard/stats")

	handler.Stats(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), envelope.Meta["skipped_records"])
	students := envelope.Data["students"].(map[string]interface{})
	assert.Equal(t, float64(4), students["totalStudents"])
}

func TestDashboardHandlerStatsOmitsMetaWhenClean(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{stats: &dto.DashboardStats{}})
	c, rec := newTestContext(http.MethodGet, "/dashboard/stats")

	handler.Stats(c)

	envelope := decodeEnvelope(t, rec)
	assert.Nil(t, envelope.Meta)
}

func TestDashboardHandlerTrafficLight(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{lights: &dto.TrafficLightResponse{
		Threshold: 5,
		Lights:    []dto.TrafficLight{{EntityType: models.DashboardStudent, Color: dto.TrafficRed, CriticalAlerts: 1, ActiveAlerts: 1}},
	}})
	c, rec := newTestContext(http.MethodGet, "/dashboard/traffic-light")

	handler.TrafficLight(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	lights := envelope.Data["lights"].([]interface{})
	require.Len(t, lights, 1)
	assert.Equal(t, "RED", lights[0].(map[string]interface{})["color"])
}

func TestDashboardHandlerHeatmapError(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.Clone(appErrors.ErrUnavailable, "down")})
	c, rec := newTestContext(http.MethodGet, "/dashboard/heatmap")

	handler.Heatmap(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", envelope.Error.Code)
}

func TestDashboardHandlerCaptureSnapshotCreated(t *testing.T) {
	srv := &fakeDashboardSrv{snapshot: &dto.SnapshotResult{Cells: 24}}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/dashboard/heatmap/snapshots")

	handler.CaptureSnapshot(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, srv.snapshots)
	assert.Equal(t, float64(24), decodeEnvelope(t, rec).Data["cells"])
}

func TestDashboardHandlerWithoutServiceIsInternal(t *testing.T) {
	handler := NewDashboardHandler(nil)
	c, rec := newTestContext(http.MethodGet, "/dashboard/stats")

	handler.Stats(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
