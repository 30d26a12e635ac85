package service

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/rto-compliance-api/internal/models"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

// Status breakpoints for the overall compliance label, checked top-down.
const (
	compliantScoreFloor     = 95
	inProgressScoreFloor    = 70
	pendingReviewScoreFloor = 50
)

// IsCategoryCompliant reports whether every required item in the category is compliant or
// explicitly not required. An empty category is compliant.
func IsCategoryCompliant(items models.ComplianceCategory) bool {
	for _, item := range items {
		if !item.Required {
			continue
		}
		if item.Status != models.ItemStatusCompliant && item.Status != models.ItemStatusNotRequired {
			return false
		}
	}
	return true
}

// CategoryCompletionRate is the share of required items in the category that are satisfied, 0-100.
func CategoryCompletionRate(items models.ComplianceCategory) int {
	var required, done int
	for _, item := range items {
		if !item.Required {
			continue
		}
		required++
		if item.Status == models.ItemStatusCompliant || item.Status == models.ItemStatusNotRequired {
			done++
		}
	}
	if required == 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(required)))
}

// CategoryCompliance evaluates all six categories of a record.
func CategoryCompliance(record *models.StudentComplianceRecord) map[models.Category]bool {
	result := make(map[models.Category]bool, len(models.AllCategories))
	for _, category := range models.AllCategories {
		items, _ := record.Categories.Items(category)
		result[category] = IsCategoryCompliant(items)
	}
	return result
}

// ComplianceScore is the share of required items that are compliant, 0-100.
// A record without required items scores 100.
func ComplianceScore(record *models.StudentComplianceRecord) int {
	var required, compliant int
	for _, category := range models.AllCategories {
		items, _ := record.Categories.Items(category)
		for _, item := range items {
			if !item.Required {
				continue
			}
			required++
			if item.Status == models.ItemStatusCompliant {
				compliant++
			}
		}
	}
	if required == 0 {
		return 100
	}
	return int(math.Round(100 * float64(compliant) / float64(required)))
}

// StatusForScore maps a score to the overall compliance label.
func StatusForScore(score int) models.ComplianceStatus {
	switch {
	case score >= compliantScoreFloor:
		return models.ComplianceStatusCompliant
	case score >= inProgressScoreFloor:
		return models.ComplianceStatusInProgress
	case score >= pendingReviewScoreFloor:
		return models.ComplianceStatusPendingReview
	default:
		return models.ComplianceStatusNonCompliant
	}
}

// Recompute derives score and status from the current items and stamps the writer.
// All four fields are assigned together.
func Recompute(record *models.StudentComplianceRecord, actor string, now time.Time) {
	for _, category := range models.AllCategories {
		items, _ := record.Categories.Items(category)
		for key, item := range items {
			item.Normalize()
			items[key] = item
		}
	}
	score := ComplianceScore(record)
	status := StatusForScore(score)

	var updatedBy *string
	if actor != "" {
		updatedBy = &actor
	}
	record.OverallComplianceScore = score
	record.OverallComplianceStatus = status
	record.UpdatedAt = now.UTC()
	record.LastUpdatedBy = updatedBy
}

// verifyRecordInvariants guards a record before it is persisted.
func verifyRecordInvariants(record *models.StudentComplianceRecord) error {
	if record.OverallComplianceScore < 0 || record.OverallComplianceScore > 100 {
		return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("score %d out of range", record.OverallComplianceScore))
	}
	if expected := ComplianceScore(record); expected != record.OverallComplianceScore {
		return appErrors.Clone(appErrors.ErrInvariantViolation, "overall score does not match items")
	}
	if StatusForScore(record.OverallComplianceScore) != record.OverallComplianceStatus {
		return appErrors.Clone(appErrors.ErrInvariantViolation, "overall status does not match score")
	}
	for _, category := range models.AllCategories {
		items, _ := record.Categories.Items(category)
		for key, item := range items {
			if item.Required && item.Status == "" {
				return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("required item %s/%s has no status", category, key))
			}
			if item.VerificationStatus == models.VerificationApproved && item.Status != models.ItemStatusCompliant {
				return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("approved item %s/%s is not compliant", category, key))
			}
			if item.VerificationStatus == models.VerificationRejected && item.Status != models.ItemStatusNonCompliant {
				return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("rejected item %s/%s is not non-compliant", category, key))
			}
		}
	}
	return nil
}
