package service

import (
	"math"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// HeatmapScore penalises 10 points per open alert and 20 more per critical one, floored at 0.
func HeatmapScore(alertCount, criticalCount int) int {
	score := 100 - 10*alertCount - 20*criticalCount
	if score < 0 {
		return 0
	}
	return score
}

// RiskLevelFor classifies a cell from its alert counts.
func RiskLevelFor(alertCount, criticalCount int) models.RiskLevel {
	switch {
	case criticalCount > 0:
		return models.RiskCritical
	case alertCount >= 5:
		return models.RiskHigh
	case alertCount >= 2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// TrendFor compares a score with the previous period. Without a usable previous score the trend is stable.
func TrendFor(current int, previous *int) dto.HeatmapTrend {
	trend := dto.HeatmapTrend{Direction: models.TrendStable, PreviousScore: previous}
	if previous == nil {
		return trend
	}
	delta := current - *previous
	switch {
	case delta > 0:
		trend.Direction = models.TrendUp
	case delta < 0:
		trend.Direction = models.TrendDown
	}
	if *previous > 0 {
		trend.Percentage = math.Round(1000*float64(delta)/float64(*previous)) / 10
	}
	return trend
}

// BuildHeatmapCell derives one cell.
func BuildHeatmapCell(key models.HeatmapKey, alertCount, criticalCount int, previous *int) dto.HeatmapCell {
	score := HeatmapScore(alertCount, criticalCount)
	return dto.HeatmapCell{
		DashboardType:   key.DashboardType,
		Category:        key.Category,
		RiskLevel:       RiskLevelFor(alertCount, criticalCount),
		ComplianceScore: score,
		AlertCount:      alertCount,
		CriticalAlerts:  criticalCount,
		Trend:           TrendFor(score, previous),
	}
}

// BuildHeatmap derives the full dashboard type x category grid from open alerts.
// Resolved alerts do not count. previous holds the last captured score per cell, if any.
func BuildHeatmap(alerts []models.ComplianceAlert, previous map[models.HeatmapKey]int) []dto.HeatmapCell {
	type counts struct{ total, critical int }
	byKey := make(map[models.HeatmapKey]*counts)
	for _, alert := range alerts {
		if !alert.Status.Open() {
			continue
		}
		key := models.HeatmapKey{DashboardType: alert.DashboardType, Category: alert.Category}
		c, ok := byKey[key]
		if !ok {
			c = &counts{}
			byKey[key] = c
		}
		c.total++
		if alert.Severity == models.SeverityCritical {
			c.critical++
		}
	}

	cells := make([]dto.HeatmapCell, 0, len(models.AllDashboardTypes)*len(models.AllCategories))
	for _, dashboardType := range models.AllDashboardTypes {
		for _, category := range models.AllCategories {
			key := models.HeatmapKey{DashboardType: dashboardType, Category: category}
			var total, critical int
			if c, ok := byKey[key]; ok {
				total, critical = c.total, c.critical
			}
			var prev *int
			if score, ok := previous[key]; ok {
				prev = &score
			}
			cells = append(cells, BuildHeatmapCell(key, total, critical, prev))
		}
	}
	return cells
}
