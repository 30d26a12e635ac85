package models

// Category identifies one of the six fixed compliance categories.
type Category string

const (
	CategoryEnrolmentEligibility Category = "enrolment_eligibility"
	CategoryWorkPlacement        Category = "work_placement"
	CategoryAttendanceProgress   Category = "attendance_progress"
	CategoryHealthSafety         Category = "health_safety"
	CategoryDataReporting        Category = "data_reporting"
	CategoryOtherGovernance      Category = "other_governance"
)

// AllCategories lists categories in display order.
var AllCategories = []Category{
	CategoryEnrolmentEligibility,
	CategoryWorkPlacement,
	CategoryAttendanceProgress,
	CategoryHealthSafety,
	CategoryDataReporting,
	CategoryOtherGovernance,
}

// IsValid reports whether the category is one of the fixed six.
func (c Category) IsValid() bool {
	_, ok := CategoryItemKeys[c]
	return ok
}

// ItemDefinition describes a requirement in the static membership table.
type ItemDefinition struct {
	Key      string
	Title    string
	Required bool
	Priority Priority
	Expires  bool
}

// CategoryItemKeys is the static membership table: which requirement keys belong to which category.
var CategoryItemKeys = map[Category][]ItemDefinition{
	CategoryEnrolmentEligibility: {
		{Key: "usi_verified", Title: "Unique Student Identifier verified", Required: true, Priority: PriorityCritical},
		{Key: "enrolment_form", Title: "Signed enrolment form", Required: true, Priority: PriorityHigh},
		{Key: "proof_of_identity", Title: "Proof of identity", Required: true, Priority: PriorityHigh, Expires: true},
		{Key: "visa_status", Title: "Visa status check", Required: false, Priority: PriorityHigh, Expires: true},
		{Key: "lln_assessment", Title: "Language, literacy and numeracy assessment", Required: true, Priority: PriorityMedium},
		{Key: "pre_training_review", Title: "Pre-training review", Required: true, Priority: PriorityMedium},
	},
	CategoryWorkPlacement: {
		{Key: "placement_agreement", Title: "Placement agreement", Required: true, Priority: PriorityHigh, Expires: true},
		{Key: "host_insurance", Title: "Host employer insurance certificate", Required: true, Priority: PriorityCritical, Expires: true},
		{Key: "supervisor_details", Title: "Supervisor details", Required: true, Priority: PriorityMedium},
		{Key: "logbook", Title: "Placement logbook", Required: true, Priority: PriorityMedium},
		{Key: "site_induction", Title: "Site induction", Required: false, Priority: PriorityLow},
	},
	CategoryAttendanceProgress: {
		{Key: "attendance_rate", Title: "Attendance above threshold", Required: true, Priority: PriorityMedium},
		{Key: "course_progress", Title: "Satisfactory course progress", Required: true, Priority: PriorityHigh},
		{Key: "intervention_plan", Title: "Intervention plan", Required: false, Priority: PriorityMedium},
	},
	CategoryHealthSafety: {
		{Key: "working_with_children", Title: "Working with children check", Required: true, Priority: PriorityCritical, Expires: true},
		{Key: "police_check", Title: "National police check", Required: true, Priority: PriorityCritical, Expires: true},
		{Key: "first_aid", Title: "First aid certificate", Required: false, Priority: PriorityMedium, Expires: true},
		{Key: "immunisation_record", Title: "Immunisation record", Required: false, Priority: PriorityMedium, Expires: true},
		{Key: "whs_induction", Title: "WHS induction", Required: true, Priority: PriorityHigh},
	},
	CategoryDataReporting: {
		{Key: "avetmiss_data", Title: "AVETMISS data complete", Required: true, Priority: PriorityHigh},
		{Key: "privacy_consent", Title: "Privacy consent", Required: true, Priority: PriorityMedium},
		{Key: "survey_completed", Title: "Learner survey completed", Required: false, Priority: PriorityLow},
	},
	CategoryOtherGovernance: {
		{Key: "fee_agreement", Title: "Fee agreement", Required: true, Priority: PriorityMedium},
		{Key: "complaints_acknowledged", Title: "Complaints policy acknowledged", Required: false, Priority: PriorityLow},
		{Key: "credit_transfer", Title: "Credit transfer decision", Required: false, Priority: PriorityLow},
	},
}

// LookupItemDefinition resolves an item key within a category.
func LookupItemDefinition(category Category, key string) (ItemDefinition, bool) {
	for _, def := range CategoryItemKeys[category] {
		if def.Key == key {
			return def, true
		}
	}
	return ItemDefinition{}, false
}
