package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

var scanNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func daysFromNow(days int) *time.Time {
	return datePtr(scanNow.AddDate(0, 0, days))
}

func recordWithItem(studentID string, category models.Category, key string, item models.ComplianceItem) models.StudentComplianceRecord {
	record := models.StudentComplianceRecord{StudentID: studentID, StudentName: "Student " + studentID}
	items, _ := record.Categories.Items(category)
	items[key] = item
	return record
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 0, DaysUntil(scanNow, scanNow))
	assert.Equal(t, 1, DaysUntil(scanNow.Add(time.Hour), scanNow))
	assert.Equal(t, 0, DaysUntil(scanNow.Add(-time.Hour), scanNow))
	assert.Equal(t, -1, DaysUntil(scanNow.Add(-25*time.Hour), scanNow))
	assert.Equal(t, 30, DaysUntil(scanNow.AddDate(0, 0, 30), scanNow))
}

func TestScanExpiryWindowBoundaries(t *testing.T) {
	scanner := NewExpiryScanner(ExpiryScannerConfig{}, nil)
	records := []models.StudentComplianceRecord{
		recordWithItem("s-30", models.CategoryHealthSafety, "police_check", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, Priority: models.PriorityCritical, ExpiryDate: daysFromNow(30),
		}),
		recordWithItem("s-31", models.CategoryHealthSafety, "police_check", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, Priority: models.PriorityCritical, ExpiryDate: daysFromNow(31),
		}),
		recordWithItem("s-neg", models.CategoryHealthSafety, "police_check", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, Priority: models.PriorityCritical, ExpiryDate: daysFromNow(-1),
		}),
	}

	report := scanner.Scan(records, scanNow)

	require.Len(t, report.ExpiringDocuments, 1)
	assert.Equal(t, "s-30", report.ExpiringDocuments[0].StudentID)
	assert.Equal(t, 30, report.ExpiringDocuments[0].DaysUntilExpiry)
	require.Len(t, report.ComplianceBreaches, 1)
	assert.Equal(t, "s-neg", report.ComplianceBreaches[0].StudentID)
	assert.Equal(t, 1, report.ComplianceBreaches[0].DaysBreach)
	assert.Empty(t, report.Flagged)
}

func TestScanExpiringSoonPreservesPriority(t *testing.T) {
	scanner := NewExpiryScanner(ExpiryScannerConfig{ExpiryWindowDays: 30}, nil)
	records := []models.StudentComplianceRecord{
		recordWithItem("s-b", models.CategoryWorkPlacement, "host_insurance", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, Priority: models.PriorityHigh, ExpiryDate: daysFromNow(5),
		}),
	}

	report := scanner.Scan(records, scanNow)

	require.Len(t, report.ExpiringDocuments, 1)
	doc := report.ExpiringDocuments[0]
	assert.Equal(t, 5, doc.DaysUntilExpiry)
	assert.Equal(t, models.PriorityHigh, doc.Priority)
	assert.Equal(t, models.CategoryWorkPlacement, doc.Category)
	assert.Equal(t, "host_insurance", doc.ItemKey)
}

func TestScanOrdering(t *testing.T) {
	scanner := NewExpiryScanner(ExpiryScannerConfig{}, nil)
	item := func(days int) models.ComplianceItem {
		return models.ComplianceItem{Status: models.ItemStatusCompliant, Required: true, ExpiryDate: daysFromNow(days)}
	}
	records := []models.StudentComplianceRecord{
		recordWithItem("c", models.CategoryHealthSafety, "first_aid", item(10)),
		recordWithItem("a", models.CategoryHealthSafety, "first_aid", item(10)),
		recordWithItem("b", models.CategoryHealthSafety, "first_aid", item(2)),
		recordWithItem("d", models.CategoryHealthSafety, "first_aid", item(-3)),
		recordWithItem("e", models.CategoryHealthSafety, "first_aid", item(-9)),
	}

	report := scanner.Scan(records, scanNow)

	require.Len(t, report.ExpiringDocuments, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{
		report.ExpiringDocuments[0].StudentID,
		report.ExpiringDocuments[1].StudentID,
		report.ExpiringDocuments[2].StudentID,
	})
	require.Len(t, report.ComplianceBreaches, 2)
	assert.Equal(t, "e", report.ComplianceBreaches[0].StudentID)
	assert.Equal(t, 9, report.ComplianceBreaches[0].DaysBreach)
}

func TestScanUpcomingDeadlinesOnlyForPendingItems(t *testing.T) {
	scanner := NewExpiryScanner(ExpiryScannerConfig{ReminderWindowDays: 7}, nil)
	records := []models.StudentComplianceRecord{
		recordWithItem("p", models.CategoryEnrolmentEligibility, "lln_assessment", models.ComplianceItem{
			Status: models.ItemStatusPending, Required: true, Priority: models.PriorityMedium, NextReminderDue: daysFromNow(3),
		}),
		recordWithItem("c", models.CategoryEnrolmentEligibility, "lln_assessment", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, NextReminderDue: daysFromNow(3),
		}),
		recordWithItem("late", models.CategoryEnrolmentEligibility, "lln_assessment", models.ComplianceItem{
			Status: models.ItemStatusPending, Required: true, NextReminderDue: daysFromNow(8),
		}),
	}

	report := scanner.Scan(records, scanNow)

	require.Len(t, report.UpcomingDeadlines, 1)
	assert.Equal(t, "p", report.UpcomingDeadlines[0].StudentID)
	assert.Equal(t, 3, report.UpcomingDeadlines[0].DaysUntilDue)
}

func TestScanFlagsMalformedDates(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	scanner := NewExpiryScanner(ExpiryScannerConfig{}, zap.New(core))
	records := []models.StudentComplianceRecord{
		recordWithItem("zero", models.CategoryHealthSafety, "police_check", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, ExpiryDate: &time.Time{},
		}),
		recordWithItem("inverted", models.CategoryHealthSafety, "police_check", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, IssueDate: daysFromNow(10), ExpiryDate: daysFromNow(5),
		}),
		recordWithItem("ok", models.CategoryHealthSafety, "police_check", models.ComplianceItem{
			Status: models.ItemStatusCompliant, Required: true, ExpiryDate: daysFromNow(5),
		}),
	}

	report := scanner.Scan(records, scanNow)

	require.Len(t, report.Flagged, 2)
	assert.Equal(t, "zero", report.Flagged[0].StudentID)
	assert.Equal(t, "inverted", report.Flagged[1].StudentID)
	require.Len(t, report.ExpiringDocuments, 1)
	assert.Equal(t, "ok", report.ExpiringDocuments[0].StudentID)
	assert.Equal(t, 2, logs.FilterMessage("skipping compliance item with malformed dates").Len())
}

func TestScanIsDeterministic(t *testing.T) {
	scanner := NewExpiryScanner(ExpiryScannerConfig{}, nil)
	build := func() []models.StudentComplianceRecord {
		record := models.StudentComplianceRecord{StudentID: "s"}
		items, _ := record.Categories.Items(models.CategoryHealthSafety)
		items["police_check"] = models.ComplianceItem{Status: models.ItemStatusCompliant, Required: true, ExpiryDate: daysFromNow(4)}
		items["working_with_children"] = models.ComplianceItem{Status: models.ItemStatusCompliant, Required: true, ExpiryDate: daysFromNow(4)}
		items["first_aid"] = models.ComplianceItem{Status: models.ItemStatusCompliant, ExpiryDate: daysFromNow(4)}
		return []models.StudentComplianceRecord{record}
	}

	first := scanner.Scan(build(), scanNow)
	second := scanner.Scan(build(), scanNow)
	assert.Equal(t, first, second)
	require.Len(t, first.ExpiringDocuments, 3)
	assert.Equal(t, "first_aid", first.ExpiringDocuments[0].ItemKey)
}
