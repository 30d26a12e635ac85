package dto

import (
	"time"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// CreateAlertRequest payload for raising a manual alert.
type CreateAlertRequest struct {
	StudentID     string               `json:"studentId"`
	DashboardType models.DashboardType `json:"dashboardType" validate:"required,dashboard_type"`
	Category      models.Category      `json:"category" validate:"required,category"`
	ItemKey       string               `json:"itemKey"`
	Title         string               `json:"title" validate:"required,max=200"`
	Message       string               `json:"message" validate:"required,max=4000"`
	Severity      models.AlertSeverity `json:"severity" validate:"required,severity"`
	DueDate       *time.Time           `json:"dueDate"`
}

// ResolveAlertRequest carries optional resolution notes.
type ResolveAlertRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// AlertQuery mirrors supported listing filters.
type AlertQuery struct {
	Status        []models.AlertStatus
	Severity      []models.AlertSeverity
	DashboardType models.DashboardType
	Category      models.Category
	StudentID     string
	Page          int
	PageSize      int
}

// EscalationResult summarises one escalation sweep.
type EscalationResult struct {
	ProcessedAt time.Time `json:"processedAt" yaml:"processedAt"`
	Candidates  int       `json:"candidates" yaml:"candidates"`
	Escalated   []string  `json:"escalated" yaml:"escalated"`
	Skipped     int       `json:"skipped" yaml:"skipped"`
}

// AlertSyncResult summarises alert creation from an expiry scan.
type AlertSyncResult struct {
	Created         []string `json:"created" yaml:"created"`
	AlreadyOpen     int      `json:"alreadyOpen" yaml:"alreadyOpen"`
	FlaggedItems    int      `json:"flaggedItems" yaml:"flaggedItems"`
	ScannedFindings int      `json:"scannedFindings" yaml:"scannedFindings"`
}
