package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/rto-compliance-api/internal/models"
)

// CreateComplianceRecordRequest opens a compliance record for an enrolled student.
type CreateComplianceRecordRequest struct {
	StudentID        string            `json:"studentId" validate:"required"`
	StudentName      string            `json:"studentName" validate:"required"`
	RTOID            string            `json:"rtoId"`
	ProviderID       string            `json:"providerId"`
	CourseCode       string            `json:"courseCode"`
	CurrentPlacement *models.Placement `json:"currentPlacement"`
}

// UpdateComplianceItemRequest patches one item. Nil fields are left untouched.
//
// OverallComplianceScore and OverallComplianceStatus exist only so that attempts to set derived
// fields are detected and rejected.
type UpdateComplianceItemRequest struct {
	Status                  *models.ItemStatus `json:"status" validate:"omitempty,item_status"`
	Required                *bool              `json:"required"`
	Priority                *models.Priority   `json:"priority" validate:"omitempty,priority"`
	IssueDate               *time.Time         `json:"issueDate"`
	ExpiryDate              *time.Time         `json:"expiryDate"`
	NextReminderDue         *time.Time         `json:"nextReminderDue"`
	DocumentURL             *string            `json:"documentUrl" validate:"omitempty,url"`
	Notes                   *string            `json:"notes" validate:"omitempty,max=2000"`
	OverallComplianceScore  json.RawMessage    `json:"overallComplianceScore,omitempty"`
	OverallComplianceStatus json.RawMessage    `json:"overallComplianceStatus,omitempty"`
}

// VerifyDocumentRequest records a human verifier decision.
type VerifyDocumentRequest struct {
	Decision models.VerificationStatus `json:"decision" validate:"required,verification_status"`
	Notes    string                    `json:"notes" validate:"max=2000"`
}

// BulkItemUpdate addresses one item inside a bulk update.
type BulkItemUpdate struct {
	Category models.Category             `json:"category" validate:"required"`
	ItemKey  string                      `json:"itemKey" validate:"required"`
	Patch    UpdateComplianceItemRequest `json:"patch"`
}

// BulkUpdateRequest applies several item patches to one record atomically.
type BulkUpdateRequest struct {
	Updates []BulkItemUpdate `json:"updates" validate:"required,min=1,max=100,dive"`
}

// ComplianceRecordQuery mirrors supported listing filters.
type ComplianceRecordQuery struct {
	Status     models.ComplianceStatus
	RTOID      string
	ProviderID string
	Page       int
	PageSize   int
}

// ExpiringDocument is an item expiring inside the configured window.
type ExpiringDocument struct {
	StudentID       string            `json:"studentId" yaml:"studentId"`
	StudentName     string            `json:"studentName" yaml:"studentName"`
	Category        models.Category   `json:"category" yaml:"category"`
	ItemKey         string            `json:"itemKey" yaml:"itemKey"`
	Title           string            `json:"title,omitempty" yaml:"title,omitempty"`
	Status          models.ItemStatus `json:"status" yaml:"status"`
	Priority        models.Priority   `json:"priority" yaml:"priority"`
	ExpiryDate      time.Time         `json:"expiryDate" yaml:"expiryDate"`
	DaysUntilExpiry int               `json:"daysUntilExpiry" yaml:"daysUntilExpiry"`
}

// ComplianceBreach is an item whose expiry date has passed.
type ComplianceBreach struct {
	StudentID   string            `json:"studentId" yaml:"studentId"`
	StudentName string            `json:"studentName" yaml:"studentName"`
	Category    models.Category   `json:"category" yaml:"category"`
	ItemKey     string            `json:"itemKey" yaml:"itemKey"`
	Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
	Status      models.ItemStatus `json:"status" yaml:"status"`
	Priority    models.Priority   `json:"priority" yaml:"priority"`
	ExpiryDate  time.Time         `json:"expiryDate" yaml:"expiryDate"`
	DaysBreach  int               `json:"daysBreach" yaml:"daysBreach"`
}

// UpcomingDeadline is a pending item whose reminder falls due soon.
type UpcomingDeadline struct {
	StudentID    string          `json:"studentId" yaml:"studentId"`
	StudentName  string          `json:"studentName" yaml:"studentName"`
	Category     models.Category `json:"category" yaml:"category"`
	ItemKey      string          `json:"itemKey" yaml:"itemKey"`
	Title        string          `json:"title,omitempty" yaml:"title,omitempty"`
	Priority     models.Priority `json:"priority" yaml:"priority"`
	DueDate      time.Time       `json:"dueDate" yaml:"dueDate"`
	DaysUntilDue int             `json:"daysUntilDue" yaml:"daysUntilDue"`
}

// FlaggedItem is an item the scanner could not evaluate.
type FlaggedItem struct {
	StudentID string          `json:"studentId" yaml:"studentId"`
	Category  models.Category `json:"category" yaml:"category"`
	ItemKey   string          `json:"itemKey" yaml:"itemKey"`
	Reason    string          `json:"reason" yaml:"reason"`
}

// ExpiryReport is the output of a full expiry/breach scan.
type ExpiryReport struct {
	GeneratedAt        time.Time          `json:"generatedAt" yaml:"generatedAt"`
	ExpiringDocuments  []ExpiringDocument `json:"expiringDocuments" yaml:"expiringDocuments"`
	ComplianceBreaches []ComplianceBreach `json:"complianceBreaches" yaml:"complianceBreaches"`
	UpcomingDeadlines  []UpcomingDeadline `json:"upcomingDeadlines" yaml:"upcomingDeadlines"`
	Flagged            []FlaggedItem      `json:"flagged,omitempty" yaml:"flagged,omitempty"`
}
