package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService

	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/alerts", 200, time.Millisecond)
		m.ObserveDBQuery("snapshot", time.Millisecond)
		m.ObserveComplianceScore(80)
		m.RecordAlertCreated(models.AlertTypeManual, models.SeverityLow)
		m.RecordAlertTransition(models.AlertStatusEscalated)
		m.RecordEscalationSweep("completed", time.Second)
		m.RecordNotification("email", nil)
		m.RecordSkippedRecords(2)
	})
	assert.False(t, m.Snapshot().GeneratedAt.IsZero())
}

func TestMetricsServiceSnapshotCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/alerts", 200, 10*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/alerts", 200, 30*time.Millisecond)
	m.RecordAlertCreated(models.AlertTypeComplianceBreach, models.SeverityCritical)
	m.RecordAlertTransition(models.AlertStatusEscalated)
	m.RecordAlertTransition(models.AlertStatusResolved)
	m.RecordNotification("email", errors.New("boom"))
	m.RecordSkippedRecords(3)

	snapshot := m.Snapshot()

	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 20.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snapshot.AlertsCreated)
	assert.Equal(t, uint64(1), snapshot.AlertsEscalated)
	assert.Equal(t, uint64(1), snapshot.NotificationFailures)
	assert.Equal(t, uint64(3), snapshot.SkippedRecords)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordEscalationSweep("locked", time.Millisecond)
	rec := httptest.NewRecorder()

	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `compliance_escalation_sweeps_total{outcome="locked"} 1`)
}
