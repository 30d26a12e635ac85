package dto

import (
	"time"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// DashboardStats is the population-wide compliance summary.
type DashboardStats struct {
	GeneratedAt time.Time                `json:"generatedAt"`
	Students    StudentStatusSummary     `json:"students"`
	Categories  []CategoryComplianceRate `json:"categories"`
	Documents   DocumentSummary          `json:"documents"`
	Alerts      AlertSummary             `json:"alerts"`
	Placements  PlacementSummary         `json:"placements"`
	Skipped     int                      `json:"skippedRecords,omitempty"`
}

// StudentStatusSummary buckets students by derived status. Buckets always sum to Total.
type StudentStatusSummary struct {
	Total         int     `json:"totalStudents"`
	Compliant     int     `json:"compliantStudents"`
	InProgress    int     `json:"inProgressStudents"`
	PendingReview int     `json:"pendingReviewStudents"`
	NonCompliant  int     `json:"nonCompliantStudents"`
	AverageScore  float64 `json:"averageScore"`
}

// CategoryComplianceRate reports how many students satisfy one category.
type CategoryComplianceRate struct {
	Category       models.Category `json:"category"`
	CompliantCount int             `json:"compliantCount"`
	Rate           int             `json:"rate"`
}

// DocumentSummary counts required items across all students.
type DocumentSummary struct {
	Total    int `json:"totalDocuments"`
	Valid    int `json:"validDocuments"`
	Expired  int `json:"expiredDocuments"`
	Missing  int `json:"missingDocuments"`
	Pending  int `json:"pendingDocuments"`
	Expiring int `json:"expiringDocuments"`
}

// AlertSummary counts alerts by lifecycle bucket and, for active alerts, by severity.
type AlertSummary struct {
	Critical     int `json:"criticalAlerts"`
	HighPriority int `json:"highPriorityAlerts"`
	Medium       int `json:"mediumAlerts"`
	Low          int `json:"lowAlerts"`
	TotalActive  int `json:"totalActiveAlerts"`
	Escalated    int `json:"escalatedAlerts"`
	Acknowledged int `json:"acknowledgedAlerts"`
}

// PlacementSummary counts placements by status.
type PlacementSummary struct {
	Active    int `json:"activePlacements"`
	Completed int `json:"completedPlacements"`
	AtRisk    int `json:"atRiskPlacements"`
}

// TrafficLightColor is the rollup signal for an entity type.
type TrafficLightColor string

const (
	TrafficGreen  TrafficLightColor = "GREEN"
	TrafficYellow TrafficLightColor = "YELLOW"
	TrafficRed    TrafficLightColor = "RED"
)

// TrafficLight is the signal for one entity type.
type TrafficLight struct {
	EntityType     models.DashboardType `json:"entityType"`
	Color          TrafficLightColor    `json:"color"`
	CriticalAlerts int                  `json:"criticalAlerts"`
	ActiveAlerts   int                  `json:"activeAlerts"`
}

// TrafficLightResponse groups signals for all entity types.
type TrafficLightResponse struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Threshold   int            `json:"threshold"`
	Lights      []TrafficLight `json:"lights"`
}

// HeatmapTrend is the change against the previous period.
type HeatmapTrend struct {
	Direction     models.TrendDirection `json:"direction"`
	Percentage    float64               `json:"percentage"`
	PreviousScore *int                  `json:"previousScore,omitempty"`
}

// HeatmapCell is the derived risk for one (dashboard type, category) pair.
type HeatmapCell struct {
	DashboardType   models.DashboardType `json:"dashboardType"`
	Category        models.Category      `json:"category"`
	RiskLevel       models.RiskLevel     `json:"riskLevel"`
	ComplianceScore int                  `json:"complianceScore"`
	AlertCount      int                  `json:"alertCount"`
	CriticalAlerts  int                  `json:"criticalAlerts"`
	Trend           HeatmapTrend         `json:"trend"`
}

// HeatmapResponse is the full grid.
type HeatmapResponse struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Cells       []HeatmapCell `json:"cells"`
}

// SnapshotResult reports a captured heatmap period.
type SnapshotResult struct {
	PeriodStart time.Time `json:"periodStart" yaml:"periodStart"`
	Cells       int       `json:"cells" yaml:"cells"`
}

// SystemMetrics is a lightweight view over the process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	AlertsCreated            uint64    `json:"alertsCreated"`
	AlertsEscalated          uint64    `json:"alertsEscalated"`
	NotificationFailures     uint64    `json:"notificationFailures"`
	SkippedRecords           uint64    `json:"skippedRecords"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
