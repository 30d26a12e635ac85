package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rto-compliance-api/internal/models"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

func requiredItem(status models.ItemStatus) models.ComplianceItem {
	return models.ComplianceItem{Status: status, Required: true, Priority: models.PriorityMedium}
}

// recordWithScore builds a record with 100 required items of which n are compliant.
func recordWithScore(n int) *models.StudentComplianceRecord {
	record := &models.StudentComplianceRecord{StudentID: "s-1"}
	items, _ := record.Categories.Items(models.CategoryOtherGovernance)
	for i := 0; i < 100; i++ {
		status := models.ItemStatusPending
		if i < n {
			status = models.ItemStatusCompliant
		}
		items[fmt.Sprintf("item_%03d", i)] = requiredItem(status)
	}
	return record
}

func TestStatusForScoreBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  models.ComplianceStatus
	}{
		{100, models.ComplianceStatusCompliant},
		{95, models.ComplianceStatusCompliant},
		{94, models.ComplianceStatusInProgress},
		{70, models.ComplianceStatusInProgress},
		{69, models.ComplianceStatusPendingReview},
		{50, models.ComplianceStatusPendingReview},
		{49, models.ComplianceStatusNonCompliant},
		{0, models.ComplianceStatusNonCompliant},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("score_%d", tc.score), func(t *testing.T) {
			assert.Equal(t, tc.want, StatusForScore(tc.score))
		})
	}
}

func TestComplianceScoreBoundaryRecords(t *testing.T) {
	for _, n := range []int{94, 95, 69, 70, 49, 50} {
		record := recordWithScore(n)
		Recompute(record, "tester", time.Now())
		assert.Equal(t, n, record.OverallComplianceScore)
		assert.Equal(t, StatusForScore(n), record.OverallComplianceStatus)
	}
}

func TestComplianceScoreWithoutRequiredItems(t *testing.T) {
	record := &models.StudentComplianceRecord{}
	items, _ := record.Categories.Items(models.CategoryHealthSafety)
	items["first_aid"] = models.ComplianceItem{Status: models.ItemStatusExpired, Required: false}

	assert.Equal(t, 100, ComplianceScore(record))
	assert.Equal(t, 100, ComplianceScore(&models.StudentComplianceRecord{}))
}

func TestComplianceScoreRounds(t *testing.T) {
	record := &models.StudentComplianceRecord{}
	items, _ := record.Categories.Items(models.CategoryDataReporting)
	items["a"] = requiredItem(models.ItemStatusCompliant)
	items["b"] = requiredItem(models.ItemStatusCompliant)
	items["c"] = requiredItem(models.ItemStatusPending)

	assert.Equal(t, 67, ComplianceScore(record))
}

func TestScenarioFourOfFiveCompliant(t *testing.T) {
	record := &models.StudentComplianceRecord{StudentID: "s-a"}
	items, _ := record.Categories.Items(models.CategoryEnrolmentEligibility)
	items["usi_verified"] = requiredItem(models.ItemStatusCompliant)
	items["enrolment_form"] = requiredItem(models.ItemStatusCompliant)
	items["lln_assessment"] = requiredItem(models.ItemStatusCompliant)
	items["pre_training_review"] = requiredItem(models.ItemStatusCompliant)
	items["proof_of_identity"] = requiredItem(models.ItemStatusExpired)

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	Recompute(record, "officer-1", now)

	assert.Equal(t, 80, record.OverallComplianceScore)
	assert.Equal(t, models.ComplianceStatusInProgress, record.OverallComplianceStatus)
	assert.False(t, IsCategoryCompliant(items))
	assert.Equal(t, now, record.UpdatedAt)
	require.NotNil(t, record.LastUpdatedBy)
	assert.Equal(t, "officer-1", *record.LastUpdatedBy)
}

func TestIsCategoryCompliant(t *testing.T) {
	assert.True(t, IsCategoryCompliant(nil))
	assert.True(t, IsCategoryCompliant(models.ComplianceCategory{
		"a": requiredItem(models.ItemStatusCompliant),
		"b": {Status: models.ItemStatusNonCompliant, Required: false},
	}))
	assert.False(t, IsCategoryCompliant(models.ComplianceCategory{
		"a": requiredItem(models.ItemStatusCompliant),
		"b": requiredItem(models.ItemStatusPending),
	}))
}

func TestCategoryComplianceIsIndependent(t *testing.T) {
	record := &models.StudentComplianceRecord{}
	health, _ := record.Categories.Items(models.CategoryHealthSafety)
	health["police_check"] = requiredItem(models.ItemStatusExpired)
	placement, _ := record.Categories.Items(models.CategoryWorkPlacement)
	placement["logbook"] = requiredItem(models.ItemStatusCompliant)

	result := CategoryCompliance(record)
	assert.False(t, result[models.CategoryHealthSafety])
	assert.True(t, result[models.CategoryWorkPlacement])
	assert.True(t, result[models.CategoryDataReporting])
	assert.Len(t, result, len(models.AllCategories))
}

func TestCategoryCompletionRate(t *testing.T) {
	assert.Equal(t, 100, CategoryCompletionRate(nil))
	assert.Equal(t, 50, CategoryCompletionRate(models.ComplianceCategory{
		"a": requiredItem(models.ItemStatusCompliant),
		"b": requiredItem(models.ItemStatusExpired),
		"c": {Status: models.ItemStatusPending},
	}))
}

func TestRecomputeIsDeterministic(t *testing.T) {
	first := recordWithScore(73)
	second := recordWithScore(73)
	now := time.Now()
	Recompute(first, "a", now)
	Recompute(second, "a", now)
	assert.Equal(t, first.OverallComplianceScore, second.OverallComplianceScore)
	assert.Equal(t, first.OverallComplianceStatus, second.OverallComplianceStatus)
}

func TestRecomputeNormalizesEmptyStatus(t *testing.T) {
	record := &models.StudentComplianceRecord{}
	items, _ := record.Categories.Items(models.CategoryOtherGovernance)
	items["fee_agreement"] = models.ComplianceItem{Required: true}
	items["credit_transfer"] = models.ComplianceItem{}

	Recompute(record, "", time.Now())

	assert.Equal(t, models.ItemStatusPending, items["fee_agreement"].Status)
	assert.Equal(t, models.ItemStatusNotRequired, items["credit_transfer"].Status)
	assert.Nil(t, record.LastUpdatedBy)
	assert.NoError(t, verifyRecordInvariants(record))
}

func TestVerifyRecordInvariants(t *testing.T) {
	t.Run("score drift", func(t *testing.T) {
		record := recordWithScore(80)
		Recompute(record, "a", time.Now())
		record.OverallComplianceScore = 90
		err := verifyRecordInvariants(record)
		assert.ErrorIs(t, err, appErrors.ErrInvariantViolation)
	})
	t.Run("status drift", func(t *testing.T) {
		record := recordWithScore(80)
		Recompute(record, "a", time.Now())
		record.OverallComplianceStatus = models.ComplianceStatusCompliant
		assert.ErrorIs(t, verifyRecordInvariants(record), appErrors.ErrInvariantViolation)
	})
	t.Run("approved but not compliant", func(t *testing.T) {
		record := &models.StudentComplianceRecord{}
		items, _ := record.Categories.Items(models.CategoryDataReporting)
		item := requiredItem(models.ItemStatusPending)
		item.VerificationStatus = models.VerificationApproved
		items["privacy_consent"] = item
		Recompute(record, "a", time.Now())
		assert.ErrorIs(t, verifyRecordInvariants(record), appErrors.ErrInvariantViolation)
	})
	t.Run("consistent", func(t *testing.T) {
		record := recordWithScore(50)
		Recompute(record, "a", time.Now())
		assert.NoError(t, verifyRecordInvariants(record))
	})
}
