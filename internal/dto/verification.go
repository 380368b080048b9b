package dto

import "time"

// AuditResponseRequest is the teacher's self-report for a sampled call.
type AuditResponseRequest struct {
	ReportedDuration int       `json:"reported_duration" validate:"gte=0"`
	ReportedDate     time.Time `json:"reported_date"`
	EvidenceRef      string    `json:"evidence_ref" validate:"required,max=512"`
}

// AuditDecisionRequest is a reviewer's verdict.
type AuditDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason   string `json:"reason" validate:"max=1000"`
}

// EvidenceUploadResponse returns the stored reference.
type EvidenceUploadResponse struct {
	EvidenceRef string `json:"evidence_ref"`
}

// EvidenceURLResponse returns a presigned download link.
type EvidenceURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
