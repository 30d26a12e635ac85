package service

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rto-compliance-api/internal/dto"
	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// ExpiryScannerConfig controls the scan windows, in whole days.
type ExpiryScannerConfig struct {
	ExpiryWindowDays   int
	ReminderWindowDays int
}

// ExpiryScanner classifies dated items into expiring, breached and upcoming reminders.
type ExpiryScanner struct {
	cfg    ExpiryScannerConfig
	logger *zap.Logger
}

// NewExpiryScanner constructs a scanner with 30/7 day defaults.
func NewExpiryScanner(cfg ExpiryScannerConfig, logger *zap.Logger) *ExpiryScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExpiryWindowDays <= 0 {
		cfg.ExpiryWindowDays = 30
	}
	if cfg.ReminderWindowDays <= 0 {
		cfg.ReminderWindowDays = 7
	}
	return &ExpiryScanner{cfg: cfg, logger: logger}
}

// DaysUntil returns whole days from now to target, rounding partial days up.
func DaysUntil(target, now time.Time) int {
	days := math.Ceil(target.Sub(now).Hours() / 24)
	if days == 0 {
		// normalise negative zero
		return 0
	}
	return int(days)
}

// Scan evaluates every dated item of the given records against now.
// Items with unusable dates are reported in Flagged and otherwise skipped.
func (s *ExpiryScanner) Scan(records []models.StudentComplianceRecord, now time.Time) dto.ExpiryReport {
	report := dto.ExpiryReport{
		GeneratedAt:        now.UTC(),
		ExpiringDocuments:  []dto.ExpiringDocument{},
		ComplianceBreaches: []dto.ComplianceBreach{},
		UpcomingDeadlines:  []dto.UpcomingDeadline{},
	}
	for i := range records {
		record := &records[i]
		for _, category := range models.AllCategories {
			items, _ := record.Categories.Items(category)
			for _, key := range sortedItemKeys(items) {
				s.scanItem(&report, record, category, key, items[key], now)
			}
		}
	}

	sort.SliceStable(report.ExpiringDocuments, func(i, j int) bool {
		a, b := report.ExpiringDocuments[i], report.ExpiringDocuments[j]
		if a.DaysUntilExpiry != b.DaysUntilExpiry {
			return a.DaysUntilExpiry < b.DaysUntilExpiry
		}
		return a.StudentID < b.StudentID
	})
	sort.SliceStable(report.ComplianceBreaches, func(i, j int) bool {
		a, b := report.ComplianceBreaches[i], report.ComplianceBreaches[j]
		if a.DaysBreach != b.DaysBreach {
			return a.DaysBreach > b.DaysBreach
		}
		return a.StudentID < b.StudentID
	})
	sort.SliceStable(report.UpcomingDeadlines, func(i, j int) bool {
		a, b := report.UpcomingDeadlines[i], report.UpcomingDeadlines[j]
		if a.DaysUntilDue != b.DaysUntilDue {
			return a.DaysUntilDue < b.DaysUntilDue
		}
		return a.StudentID < b.StudentID
	})
	return report
}

func (s *ExpiryScanner) scanItem(report *dto.ExpiryReport, record *models.StudentComplianceRecord, category models.Category, key string, item models.ComplianceItem, now time.Time) {
	if item.ExpiryDate != nil {
		switch {
		case item.ExpiryDate.IsZero():
			s.flag(report, record, category, key, "expiry date is empty")
		case item.IssueDate != nil && item.ExpiryDate.Before(*item.IssueDate):
			s.flag(report, record, category, key, "expiry date precedes issue date")
		default:
			days := DaysUntil(*item.ExpiryDate, now)
			switch {
			case days < 0:
				report.ComplianceBreaches = append(report.ComplianceBreaches, dto.ComplianceBreach{
					StudentID:   record.StudentID,
					StudentName: record.StudentName,
					Category:    category,
					ItemKey:     key,
					Title:       item.Title,
					Status:      item.Status,
					Priority:    item.Priority,
					ExpiryDate:  item.ExpiryDate.UTC(),
					DaysBreach:  -days,
				})
			case days <= s.cfg.ExpiryWindowDays:
				report.ExpiringDocuments = append(report.ExpiringDocuments, dto.ExpiringDocument{
					StudentID:       record.StudentID,
					StudentName:     record.StudentName,
					Category:        category,
					ItemKey:         key,
					Title:           item.Title,
					Status:          item.Status,
					Priority:        item.Priority,
					ExpiryDate:      item.ExpiryDate.UTC(),
					DaysUntilExpiry: days,
				})
			}
		}
	}

	if item.Status != models.ItemStatusPending || item.NextReminderDue == nil {
		return
	}
	if item.NextReminderDue.IsZero() {
		s.flag(report, record, category, key, "reminder date is empty")
		return
	}
	days := DaysUntil(*item.NextReminderDue, now)
	if days < 0 || days > s.cfg.ReminderWindowDays {
		return
	}
	report.UpcomingDeadlines = append(report.UpcomingDeadlines, dto.UpcomingDeadline{
		StudentID:    record.StudentID,
		StudentName:  record.StudentName,
		Category:     category,
		ItemKey:      key,
		Title:        item.Title,
		Priority:     item.Priority,
		DueDate:      item.NextReminderDue.UTC(),
		DaysUntilDue: days,
	})
}

func (s *ExpiryScanner) flag(report *dto.ExpiryReport, record *models.StudentComplianceRecord, category models.Category, key, reason string) {
	s.logger.Warn("skipping compliance item with malformed dates",
		zap.String("student_id", record.StudentID),
		zap.String("category", string(category)),
		zap.String("item_key", key),
		zap.String("reason", reason),
	)
	report.Flagged = append(report.Flagged, dto.FlaggedItem{
		StudentID: record.StudentID,
		Category:  category,
		ItemKey:   key,
		Reason:    reason,
	})
}

func sortedItemKeys(items models.ComplianceCategory) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
