package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ItemStatus is the state of a single compliance requirement.
type ItemStatus string

const (
	ItemStatusCompliant    ItemStatus = "compliant"
	ItemStatusNonCompliant ItemStatus = "non_compliant"
	ItemStatusPending      ItemStatus = "pending"
	ItemStatusExpired      ItemStatus = "expired"
	ItemStatusNotRequired  ItemStatus = "not_required"
)

// IsValid reports whether the status is a known value.
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusCompliant, ItemStatusNonCompliant, ItemStatusPending, ItemStatusExpired, ItemStatusNotRequired:
		return true
	default:
		return false
	}
}

// Priority ranks how urgent a requirement is. It drives alert severity, not score weight.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// IsValid reports whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// VerificationStatus is the outcome of a human document review.
type VerificationStatus string

const (
	VerificationApproved VerificationStatus = "approved"
	VerificationPending  VerificationStatus = "pending"
	VerificationRejected VerificationStatus = "rejected"
)

// IsValid reports whether the verification status is a known value.
func (v VerificationStatus) IsValid() bool {
	switch v {
	case VerificationApproved, VerificationPending, VerificationRejected:
		return true
	default:
		return false
	}
}

// ComplianceStatus is the derived overall label for a student.
type ComplianceStatus string

const (
	ComplianceStatusCompliant     ComplianceStatus = "compliant"
	ComplianceStatusNonCompliant  ComplianceStatus = "non_compliant"
	ComplianceStatusInProgress    ComplianceStatus = "in_progress"
	ComplianceStatusPendingReview ComplianceStatus = "pending_review"
)

// IsValid reports whether the compliance status is a known value.
func (s ComplianceStatus) IsValid() bool {
	switch s {
	case ComplianceStatusCompliant, ComplianceStatusNonCompliant, ComplianceStatusInProgress, ComplianceStatusPendingReview:
		return true
	default:
		return false
	}
}

// PlacementStatus tracks a work placement.
type PlacementStatus string

const (
	PlacementActive     PlacementStatus = "active"
	PlacementCompleted  PlacementStatus = "completed"
	PlacementSuspended  PlacementStatus = "suspended"
	PlacementTerminated PlacementStatus = "terminated"
	PlacementPending    PlacementStatus = "pending"
)

// ComplianceItem is one trackable requirement instance for a student.
type ComplianceItem struct {
	Title              string             `json:"title,omitempty"`
	Status             ItemStatus         `json:"status"`
	Required           bool               `json:"required"`
	Priority           Priority           `json:"priority"`
	IssueDate          *time.Time         `json:"issueDate,omitempty"`
	ExpiryDate         *time.Time         `json:"expiryDate,omitempty"`
	NextReminderDue    *time.Time         `json:"nextReminderDue,omitempty"`
	VerificationStatus VerificationStatus `json:"verificationStatus,omitempty"`
	VerifiedBy         *string            `json:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time         `json:"verifiedAt,omitempty"`
	DocumentURL        *string            `json:"documentUrl,omitempty"`
	Notes              *string            `json:"notes,omitempty"`
	UpdatedAt          *time.Time         `json:"updatedAt,omitempty"`
}

// Normalize applies the item invariants: required items never carry an empty status.
func (i *ComplianceItem) Normalize() {
	if i.Status == "" {
		if i.Required {
			i.Status = ItemStatusPending
		} else {
			i.Status = ItemStatusNotRequired
		}
	}
	if i.Priority == "" {
		i.Priority = PriorityMedium
	}
}

// ComplianceCategory maps item keys to their current state within one category.
type ComplianceCategory map[string]ComplianceItem

// Placement summarises the current work placement of a student.
type Placement struct {
	HostEmployer   string          `json:"hostEmployer,omitempty"`
	HoursRequired  int             `json:"hoursRequired"`
	HoursCompleted int             `json:"hoursCompleted"`
	Status         PlacementStatus `json:"status"`
	StartDate      *time.Time      `json:"startDate,omitempty"`
	EndDate        *time.Time      `json:"endDate,omitempty"`
}

// Value implements driver.Valuer so placements persist as JSONB.
func (p Placement) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *Placement) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// ComplianceCategories holds the six fixed category maps of a record.
type ComplianceCategories struct {
	EnrolmentEligibility ComplianceCategory `json:"enrolmentEligibility"`
	WorkPlacement        ComplianceCategory `json:"workPlacement"`
	AttendanceProgress   ComplianceCategory `json:"attendanceProgress"`
	HealthSafety         ComplianceCategory `json:"healthSafety"`
	DataReporting        ComplianceCategory `json:"dataReporting"`
	OtherGovernance      ComplianceCategory `json:"otherGovernance"`
}

// Value implements driver.Valuer so categories persist as JSONB.
func (c ComplianceCategories) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *ComplianceCategories) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// Items returns the item map for a category. The returned map is shared with the record.
func (c *ComplianceCategories) Items(category Category) (ComplianceCategory, error) {
	ptr, err := c.slot(category)
	if err != nil {
		return nil, err
	}
	if *ptr == nil {
		*ptr = ComplianceCategory{}
	}
	return *ptr, nil
}

func (c *ComplianceCategories) slot(category Category) (*ComplianceCategory, error) {
	switch category {
	case CategoryEnrolmentEligibility:
		return &c.EnrolmentEligibility, nil
	case CategoryWorkPlacement:
		return &c.WorkPlacement, nil
	case CategoryAttendanceProgress:
		return &c.AttendanceProgress, nil
	case CategoryHealthSafety:
		return &c.HealthSafety, nil
	case CategoryDataReporting:
		return &c.DataReporting, nil
	case CategoryOtherGovernance:
		return &c.OtherGovernance, nil
	default:
		return nil, fmt.Errorf("unknown compliance category %q", category)
	}
}

// Clone deep-copies the category maps so callers can mutate without aliasing.
func (c ComplianceCategories) Clone() ComplianceCategories {
	out := ComplianceCategories{}
	for _, category := range AllCategories {
		src, _ := c.Items(category)
		dst, _ := out.Items(category)
		for key, item := range src {
			dst[key] = item
		}
	}
	return out
}

// StudentComplianceRecord is the aggregate root for a student's compliance state.
type StudentComplianceRecord struct {
	ID                      string               `db:"id" json:"id"`
	StudentID               string               `db:"student_id" json:"studentId"`
	StudentName             string               `db:"student_name" json:"studentName"`
	RTOID                   *string              `db:"rto_id" json:"rtoId,omitempty"`
	ProviderID              *string              `db:"provider_id" json:"providerId,omitempty"`
	CourseCode              *string              `db:"course_code" json:"courseCode,omitempty"`
	Categories              ComplianceCategories `db:"categories" json:"categories"`
	OverallComplianceScore  int                  `db:"overall_compliance_score" json:"overallComplianceScore"`
	OverallComplianceStatus ComplianceStatus     `db:"overall_compliance_status" json:"overallComplianceStatus"`
	CurrentPlacement        *Placement           `db:"current_placement" json:"currentPlacement,omitempty"`
	LastUpdatedBy           *string              `db:"last_updated_by" json:"lastUpdatedBy,omitempty"`
	Version                 int                  `db:"version" json:"version"`
	CreatedAt               time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time            `db:"updated_at" json:"updatedAt"`
}

// StudentComplianceFilter constrains record listings.
type StudentComplianceFilter struct {
	Status     ComplianceStatus
	RTOID      string
	ProviderID string
	Page       int
	PageSize   int
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON source type %T", src)
	}
}
