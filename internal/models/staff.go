package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StaffRole represents the available roles for the RBAC system.
type StaffRole string

const (
	RoleSuperAdmin     StaffRole = "SUPERADMIN"
	RoleAdmin          StaffRole = "ADMIN"
	RoleDepartmentHead StaffRole = "DEPARTMENT_HEAD"
	RoleTeacher        StaffRole = "TEACHER"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleDepartmentHead, RoleTeacher:
		return true
	default:
		return false
	}
}

// Central reports whether r is an institution-wide role without a department.
func (r StaffRole) Central() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// ApprovalStatus tracks registration review.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Staff is a member of the admissions team.
type Staff struct {
	ID             string                 `db:"id" json:"id"`
	Name           string                 `db:"name" json:"name"`
	Email          string                 `db:"email" json:"email"`
	PasswordHash   string                 `db:"password_hash" json:"-"`
	Role           StaffRole              `db:"role" json:"role"`
	Department     *Department            `db:"department" json:"department,omitempty"`
	ApprovalStatus ApprovalStatus         `db:"approval_status" json:"approval_status"`
	ApprovedBy     *string                `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt     *time.Time             `db:"approved_at" json:"approved_at,omitempty"`
	Challenge      *VerificationChallenge `db:"challenge" json:"challenge,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updated_at"`
}

// Approved reports whether the member may join assignment pools.
func (s *Staff) Approved() bool {
	return s != nil && s.ApprovalStatus == ApprovalApproved
}

// InDepartment reports whether the member belongs to dept.
func (s *Staff) InDepartment(dept Department) bool {
	return s != nil && s.Department != nil && *s.Department == dept
}

// ChallengeStatus returns the audit state, none when no challenge exists.
func (s *Staff) ChallengeStatus() ChallengeStatus {
	if s == nil || s.Challenge == nil || s.Challenge.Status == "" {
		return ChallengeNone
	}
	return s.Challenge.Status
}

// WithRedactedChallenge returns a copy of s whose challenge hides the recorded call facts.
func (s Staff) WithRedactedChallenge() Staff {
	s.Challenge = s.Challenge.Redacted()
	return s
}

// StaffPatch is a merge-patch over staff columns.
type StaffPatch struct {
	Name           *string
	Role           *StaffRole
	Department     *Department
	ApprovalStatus *ApprovalStatus
	ApprovedBy     *string
	ApprovedAt     *time.Time
}

// StaffFilter captures filtering criteria for listing staff.
type StaffFilter struct {
	Role           *StaffRole
	Department     *Department
	ApprovalStatus *ApprovalStatus
	Search         string
	Page           int
	PageSize       int
}

// ChallengeStatus is the per-teacher audit state.
type ChallengeStatus string

const (
	ChallengeNone      ChallengeStatus = "none"
	ChallengePending   ChallengeStatus = "pending"
	ChallengeResponded ChallengeStatus = "responded"
	ChallengeApproved  ChallengeStatus = "approved"
	ChallengeRejected  ChallengeStatus = "rejected"
)

// VerificationChallenge compares a sampled call's recorded facts with the teacher's self-report.
type VerificationChallenge struct {
	Status           ChallengeStatus `json:"status"`
	LeadID           string          `json:"lead_id"`
	LeadName         string          `json:"lead_name"`
	LeadPhone        string          `json:"lead_phone"`
	ActualDuration   int             `json:"actual_duration,omitempty"`
	ActualTimestamp  *time.Time      `json:"actual_timestamp,omitempty"`
	ReportedDuration *int            `json:"reported_duration,omitempty"`
	ReportedDate     *time.Time      `json:"reported_date,omitempty"`
	EvidenceRef      string          `json:"evidence_ref,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	TriggeredBy      string          `json:"triggered_by"`
	TriggeredAt      time.Time       `json:"triggered_at"`
	RespondedAt      *time.Time      `json:"responded_at,omitempty"`
	DecidedBy        *string         `json:"decided_by,omitempty"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
}

// Value marshals the challenge to JSON for the JSONB column.
func (c VerificationChallenge) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal verification challenge: %w", err)
	}
	return data, nil
}

// Scan unmarshals the JSONB column.
func (c *VerificationChallenge) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*c = VerificationChallenge{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for VerificationChallenge", value)
	}
	if len(data) == 0 {
		*c = VerificationChallenge{}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal verification challenge: %w", err)
	}
	return nil
}

// Redacted drops the recorded duration and call time the teacher is asked to report.
func (c *VerificationChallenge) Redacted() *VerificationChallenge {
	if c == nil {
		return nil
	}
	out := *c
	out.ActualDuration = 0
	out.ActualTimestamp = nil
	return &out
}
