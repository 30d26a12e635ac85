package models

import "time"

// Audit actions recorded for compliance mutations.
const (
	AuditActionItemUpdate       = "COMPLIANCE_ITEM_UPDATE"
	AuditActionBulkUpdate       = "COMPLIANCE_BULK_UPDATE"
	AuditActionDocumentVerify   = "DOCUMENT_VERIFY"
	AuditActionRecordCreate     = "COMPLIANCE_RECORD_CREATE"
	AuditActionAlertCreate      = "ALERT_CREATE"
	AuditActionAlertAcknowledge = "ALERT_ACKNOWLEDGE"
	AuditActionAlertResolve     = "ALERT_RESOLVE"
	AuditActionAlertEscalate    = "ALERT_ESCALATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Audit actions recorded for operator-triggered batch runs.
const (
	AuditActionEscalationSweep = "ESCALATION_SWEEP_RUN"
	AuditActionAlertSync       = "ALERT_SYNC_RUN"
	AuditActionHeatmapSnapshot = "HEATMAP_SNAPSHOT_CAPTURE"
)
