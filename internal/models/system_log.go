package models

import "time"

// SystemLog actions.
const (
	ActionLeadsImported        = "LEADS_IMPORTED"
	ActionLeadCreated          = "LEAD_CREATED"
	ActionLeadsPurged          = "LEADS_PURGED"
	ActionLeadsAssignedHead    = "LEADS_ASSIGNED_HEAD"
	ActionLeadsAssignedTeacher = "LEADS_ASSIGNED_TEACHER"
	ActionLeadsSmartRouted     = "LEADS_SMART_ROUTED"
	ActionLeadClassified       = "LEAD_CLASSIFIED"
	ActionCallRecorded         = "CALL_RECORDED"
	ActionAuditTriggered       = "AUDIT_TRIGGERED"
	ActionAuditResponded       = "AUDIT_RESPONDED"
	ActionAuditDecided         = "AUDIT_DECIDED"
	ActionStaffRegistered      = "STAFF_REGISTERED"
	ActionStaffCreated         = "STAFF_CREATED"
	ActionStaffApproved        = "STAFF_APPROVED"
	ActionStaffRejected        = "STAFF_REJECTED"
	ActionStaffRevoked         = "STAFF_REVOKED"
	ActionForwardedExported    = "FORWARDED_EXPORTED"
	ActionLogin                = "LOGIN"
)

// SystemLog is an append-only activity record.
type SystemLog struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	ActorName string    `db:"actor_name" json:"actor_name"`
	Action    string    `db:"action" json:"action"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SystemLogFilter narrows log listings.
type SystemLogFilter struct {
	ActorID  string
	Action   string
	Page     int
	PageSize int
}
