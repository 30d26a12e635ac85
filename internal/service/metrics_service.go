package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
// All methods are safe on a nil receiver.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	dbQueryDuration    *prometheus.HistogramVec
	complianceScore    prometheus.Histogram
	alertsCreated      *prometheus.CounterVec
	alertTransitions   *prometheus.CounterVec
	escalationSweeps   *prometheus.CounterVec
	escalationDuration prometheus.Histogram
	notifications      *prometheus.CounterVec
	skippedRecords     prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	alertsCreatedCount   uint64
	escalatedCount       uint64
	notificationFailures uint64
	skippedRecordCount   uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	complianceScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compliance_record_score",
		Help:    "Overall compliance score observed after each record mutation",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100},
	})

	alertsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_alerts_created_total",
		Help: "Alerts raised by type and severity",
	}, []string{"type", "severity"})

	alertTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_alert_transitions_total",
		Help: "Alert lifecycle transitions by target status",
	}, []string{"status"})

	escalationSweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_escalation_sweeps_total",
		Help: "Escalation sweeps by outcome",
	}, []string{"outcome"})

	escalationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compliance_escalation_sweep_seconds",
		Help:    "Duration of escalation sweeps",
		Buckets: prometheus.DefBuckets,
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_notifications_total",
		Help: "Notification hand-offs by channel and outcome",
	}, []string{"channel", "outcome"})

	skippedRecords := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliance_records_skipped_total",
		Help: "Records left out of aggregates because they could not be decoded",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, complianceScore, alertsCreated, alertTransitions,
		escalationSweeps, escalationDuration, notifications, skippedRecords, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		dbQueryDuration:    dbQueryDuration,
		complianceScore:    complianceScore,
		alertsCreated:      alertsCreated,
		alertTransitions:   alertTransitions,
		escalationSweeps:   escalationSweeps,
		escalationDuration: escalationDuration,
		notifications:      notifications,
		skippedRecords:     skippedRecords,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveComplianceScore records a freshly derived record score.
func (m *MetricsService) ObserveComplianceScore(score int) {
	if m == nil {
		return
	}
	m.complianceScore.Observe(float64(score))
}

// RecordAlertCreated counts a newly raised alert.
func (m *MetricsService) RecordAlertCreated(alertType models.AlertType, severity models.AlertSeverity) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(string(alertType), string(severity)).Inc()
	atomic.AddUint64(&m.alertsCreatedCount, 1)
}

// RecordAlertTransition counts a lifecycle transition into status.
func (m *MetricsService) RecordAlertTransition(status models.AlertStatus) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(string(status)).Inc()
	if status == models.AlertStatusEscalated {
		atomic.AddUint64(&m.escalatedCount, 1)
	}
}

// RecordEscalationSweep records the outcome of one sweep: completed, locked or failed.
func (m *MetricsService) RecordEscalationSweep(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.escalationSweeps.WithLabelValues(outcome).Inc()
	m.escalationDuration.Observe(duration.Seconds())
}

// RecordNotification counts a notification hand-off attempt.
func (m *MetricsService) RecordNotification(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
		atomic.AddUint64(&m.notificationFailures, 1)
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

// RecordSkippedRecords counts records dropped from an aggregate read.
func (m *MetricsService) RecordSkippedRecords(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.skippedRecords.Add(float64(count))
	atomic.AddUint64(&m.skippedRecordCount, uint64(count))
}

// Snapshot returns aggregated counters suitable for the system metrics endpoint.
func (m *MetricsService) Snapshot() dto.SystemMetrics {
	if m == nil {
		return dto.SystemMetrics{GeneratedAt: time.Now().UTC()}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return dto.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		AlertsCreated:            atomic.LoadUint64(&m.alertsCreatedCount),
		AlertsEscalated:          atomic.LoadUint64(&m.escalatedCount),
		NotificationFailures:     atomic.LoadUint64(&m.notificationFailures),
		SkippedRecords:           atomic.LoadUint64(&m.skippedRecordCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
