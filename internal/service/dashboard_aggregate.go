package service

import (
	"math"
	"time"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// AggregateDashboard summarises the whole population. Item state is only read.
func AggregateDashboard(records []models.StudentComplianceRecord, alerts []models.ComplianceAlert, now time.Time, expiryWindowDays int) dto.DashboardStats {
	if expiryWindowDays <= 0 {
		expiryWindowDays = 30
	}
	stats := dto.DashboardStats{GeneratedAt: now.UTC()}

	categoryCounts := make(map[models.Category]int, len(models.AllCategories))
	var scoreTotal int
	for i := range records {
		record := &records[i]
		stats.Students.Total++
		// derive from items so a stale stored score cannot skew the buckets
		score := ComplianceScore(record)
		scoreTotal += score
		switch StatusForScore(score) {
		case models.ComplianceStatusCompliant:
			stats.Students.Compliant++
		case models.ComplianceStatusInProgress:
			stats.Students.InProgress++
		case models.ComplianceStatusPendingReview:
			stats.Students.PendingReview++
		default:
			stats.Students.NonCompliant++
		}

		for _, category := range models.AllCategories {
			items, _ := record.Categories.Items(category)
			if IsCategoryCompliant(items) {
				categoryCounts[category]++
			}
			countDocuments(&stats.Documents, items, now, expiryWindowDays)
		}

		if placement := record.CurrentPlacement; placement != nil {
			switch placement.Status {
			case models.PlacementActive:
				stats.Placements.Active++
			case models.PlacementCompleted:
				stats.Placements.Completed++
			case models.PlacementSuspended, models.PlacementTerminated:
				stats.Placements.AtRisk++
			}
		}
	}
	if stats.Students.Total > 0 {
		stats.Students.AverageScore = math.Round(10*float64(scoreTotal)/float64(stats.Students.Total)) / 10
	}

	stats.Categories = make([]dto.CategoryComplianceRate, 0, len(models.AllCategories))
	for _, category := range models.AllCategories {
		count := categoryCounts[category]
		rate := 0
		if stats.Students.Total > 0 {
			rate = int(math.Round(100 * float64(count) / float64(stats.Students.Total)))
		}
		stats.Categories = append(stats.Categories, dto.CategoryComplianceRate{
			Category:       category,
			CompliantCount: count,
			Rate:           rate,
		})
	}

	stats.Alerts = summariseAlerts(alerts)
	return stats
}

func countDocuments(summary *dto.DocumentSummary, items models.ComplianceCategory, now time.Time, windowDays int) {
	for _, item := range items {
		if !item.Required {
			continue
		}
		summary.Total++
		switch item.Status {
		case models.ItemStatusCompliant:
			summary.Valid++
		case models.ItemStatusExpired:
			summary.Expired++
		case models.ItemStatusNonCompliant:
			summary.Missing++
		case models.ItemStatusPending, "":
			summary.Pending++
		}
		if item.ExpiryDate == nil || item.ExpiryDate.IsZero() {
			continue
		}
		if days := DaysUntil(*item.ExpiryDate, now); days > 0 && days <= windowDays {
			summary.Expiring++
		}
	}
}

// summariseAlerts counts active alerts per severity. Escalated and acknowledged alerts have their own buckets.
func summariseAlerts(alerts []models.ComplianceAlert) dto.AlertSummary {
	var summary dto.AlertSummary
	for _, alert := range alerts {
		switch alert.Status {
		case models.AlertStatusEscalated:
			summary.Escalated++
			continue
		case models.AlertStatusAcknowledged:
			summary.Acknowledged++
			continue
		case models.AlertStatusActive:
		default:
			continue
		}
		summary.TotalActive++
		switch alert.Severity {
		case models.SeverityCritical:
			summary.Critical++
		case models.SeverityHigh:
			summary.HighPriority++
		case models.SeverityMedium:
			summary.Medium++
		case models.SeverityLow:
			summary.Low++
		}
	}
	return summary
}
