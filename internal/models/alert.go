package models

import "time"

// AlertSeverity ranks an alert.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// IsValid reports whether the severity is a known value.
func (s AlertSeverity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// AlertStatus is a lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusEscalated    AlertStatus = "escalated"
)

// IsValid reports whether the status is a known value.
func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusEscalated:
		return true
	default:
		return false
	}
}

// Open reports whether the alert still needs attention.
func (s AlertStatus) Open() bool {
	return s != AlertStatusResolved
}

// AlertType classifies the condition that raised the alert.
type AlertType string

const (
	AlertTypeDocumentExpiring AlertType = "document_expiring"
	AlertTypeComplianceBreach AlertType = "compliance_breach"
	AlertTypeDeadlineUpcoming AlertType = "deadline_upcoming"
	AlertTypeManual           AlertType = "manual"
)

// DashboardType is the entity type an alert is surfaced on.
type DashboardType string

const (
	DashboardStudent  DashboardType = "student"
	DashboardTrainer  DashboardType = "trainer"
	DashboardProvider DashboardType = "provider"
	DashboardRTO      DashboardType = "rto"
)

// AllDashboardTypes lists entity types in display order.
var AllDashboardTypes = []DashboardType{DashboardStudent, DashboardTrainer, DashboardProvider, DashboardRTO}

// IsValid reports whether the dashboard type is known.
func (d DashboardType) IsValid() bool {
	switch d {
	case DashboardStudent, DashboardTrainer, DashboardProvider, DashboardRTO:
		return true
	default:
		return false
	}
}

// ComplianceAlert is a time-bounded notification about a detected condition.
type ComplianceAlert struct {
	ID              string        `db:"id" json:"id"`
	StudentID       *string       `db:"student_id" json:"studentId,omitempty"`
	DashboardType   DashboardType `db:"dashboard_type" json:"dashboardType"`
	Category        Category      `db:"category" json:"category"`
	ItemKey         *string       `db:"item_key" json:"itemKey,omitempty"`
	Type            AlertType     `db:"type" json:"type"`
	Title           string        `db:"title" json:"title"`
	Message         string        `db:"message" json:"message"`
	Severity        AlertSeverity `db:"severity" json:"severity"`
	Status          AlertStatus   `db:"status" json:"status"`
	EscalationLevel int           `db:"escalation_level" json:"escalationLevel"`
	DueDate         *time.Time    `db:"due_date" json:"dueDate,omitempty"`
	AcknowledgedAt  *time.Time    `db:"acknowledged_at" json:"acknowledgedAt,omitempty"`
	AcknowledgedBy  *string       `db:"acknowledged_by" json:"acknowledgedBy,omitempty"`
	ResolvedAt      *time.Time    `db:"resolved_at" json:"resolvedAt,omitempty"`
	ResolvedBy      *string       `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolutionNotes *string       `db:"resolution_notes" json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

// AlertFilter constrains alert listings.
type AlertFilter struct {
	Status        []AlertStatus
	Severity      []AlertSeverity
	DashboardType DashboardType
	Category      Category
	StudentID     string
	Page          int
	PageSize      int
}

// AlertKey identifies the condition an alert was raised for, used to avoid duplicates.
type AlertKey struct {
	StudentID string
	Category  Category
	ItemKey   string
	Type      AlertType
}
