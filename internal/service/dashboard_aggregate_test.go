package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

func TestAggregateDashboardBucketsSumToTotal(t *testing.T) {
	records := []models.StudentComplianceRecord{*recordWithScore(100), *recordWithScore(80), *recordWithScore(60), *recordWithScore(10)}
	// a stale stored score must not change the bucket
	records[0].OverallComplianceScore = 0

	stats := AggregateDashboard(records, nil, scanNow, 30)

	s := stats.Students
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, s.Total, s.Compliant+s.InProgress+s.PendingReview+s.NonCompliant)
	assert.Equal(t, 1, s.Compliant)
	assert.Equal(t, 1, s.InProgress)
	assert.Equal(t, 1, s.PendingReview)
	assert.Equal(t, 1, s.NonCompliant)
	assert.Equal(t, 62.5, s.AverageScore)
	require.Len(t, stats.Categories, len(models.AllCategories))
}

func TestAggregateDashboardDocumentsAndPlacements(t *testing.T) {
	record := models.StudentComplianceRecord{StudentID: "s", CurrentPlacement: &models.Placement{Status: models.PlacementSuspended}}
	items, _ := record.Categories.Items(models.CategoryHealthSafety)
	items["police_check"] = models.ComplianceItem{Status: models.ItemStatusCompliant, Required: true, ExpiryDate: daysFromNow(10)}
	items["working_with_children"] = models.ComplianceItem{Status: models.ItemStatusExpired, Required: true, ExpiryDate: daysFromNow(-2)}
	items["whs_induction"] = models.ComplianceItem{Status: models.ItemStatusNonCompliant, Required: true}
	items["first_aid"] = models.ComplianceItem{Status: models.ItemStatusPending, Required: false, ExpiryDate: daysFromNow(3)}
	other := models.StudentComplianceRecord{StudentID: "t", CurrentPlacement: &models.Placement{Status: models.PlacementActive}}
	pending, _ := other.Categories.Items(models.CategoryDataReporting)
	pending["privacy_consent"] = models.ComplianceItem{Status: models.ItemStatusPending, Required: true}

	stats := AggregateDashboard([]models.StudentComplianceRecord{record, other}, nil, scanNow, 30)

	docs := stats.Documents
	assert.Equal(t, 4, docs.Total)
	assert.Equal(t, 1, docs.Valid)
	assert.Equal(t, 1, docs.Expired)
	assert.Equal(t, 1, docs.Missing)
	assert.Equal(t, 1, docs.Pending)
	assert.Equal(t, 1, docs.Expiring)
	assert.Equal(t, 1, stats.Placements.AtRisk)
	assert.Equal(t, 1, stats.Placements.Active)

	for _, rate := range stats.Categories {
		switch rate.Category {
		case models.CategoryHealthSafety:
			assert.Equal(t, 1, rate.CompliantCount)
			assert.Equal(t, 50, rate.Rate)
		case models.CategoryWorkPlacement:
			assert.Equal(t, 2, rate.CompliantCount)
			assert.Equal(t, 100, rate.Rate)
		}
	}
}

func TestAggregateDashboardAlertBuckets(t *testing.T) {
	alerts := []models.ComplianceAlert{
		alertFor(models.DashboardStudent, models.CategoryHealthSafety, models.SeverityCritical, models.AlertStatusActive),
		alertFor(models.DashboardStudent, models.CategoryHealthSafety, models.SeverityHigh, models.AlertStatusActive),
		alertFor(models.DashboardStudent, models.CategoryHealthSafety, models.SeverityLow, models.AlertStatusActive),
		alertFor(models.DashboardStudent, models.CategoryHealthSafety, models.SeverityCritical, models.AlertStatusEscalated),
		alertFor(models.DashboardStudent, models.CategoryHealthSafety, models.SeverityMedium, models.AlertStatusAcknowledged),
		alertFor(models.DashboardStudent, models.CategoryHealthSafety, models.SeverityMedium, models.AlertStatusResolved),
	}

	summary := AggregateDashboard(nil, alerts, scanNow, 30).Alerts

	assert.Equal(t, 3, summary.TotalActive)
	assert.Equal(t, 1, summary.Critical)
	assert.Equal(t, 1, summary.HighPriority)
	assert.Equal(t, 1, summary.Low)
	assert.Equal(t, 0, summary.Medium)
	assert.Equal(t, 1, summary.Escalated)
	assert.Equal(t, 1, summary.Acknowledged)
}

func TestAggregateDashboardEmptyPopulation(t *testing.T) {
	stats := AggregateDashboard(nil, nil, scanNow, 0)
	assert.Zero(t, stats.Students.Total)
	assert.Zero(t, stats.Students.AverageScore)
	for _, rate := range stats.Categories {
		assert.Zero(t, rate.Rate)
	}
}
