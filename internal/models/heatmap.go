package models

import "time"

// RiskLevel is the discrete risk classification of a heatmap cell.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// TrendDirection describes score movement against the previous period.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// HeatmapSnapshot stores a period score for one (dashboard type, category) pair.
type HeatmapSnapshot struct {
	ID              string        `db:"id" json:"id"`
	DashboardType   DashboardType `db:"dashboard_type" json:"dashboardType"`
	Category        Category      `db:"category" json:"category"`
	PeriodStart     time.Time     `db:"period_start" json:"periodStart"`
	ComplianceScore int           `db:"compliance_score" json:"complianceScore"`
	AlertCount      int           `db:"alert_count" json:"alertCount"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
}

// HeatmapKey addresses one heatmap cell.
type HeatmapKey struct {
	DashboardType DashboardType
	Category      Category
}
