package dto

import "github.com/noah-isme/admission-leads-api/internal/models"

// AssignHeadRequest moves leads to one department head.
type AssignHeadRequest struct {
	LeadIDs []string `json:"lead_ids" validate:"required,min=1,dive,required"`
	HeadID  string   `json:"head_id" validate:"required"`
}

// AssignTeacherRequest moves leads to one teacher.
type AssignTeacherRequest struct {
	LeadIDs   []string `json:"lead_ids" validate:"required,min=1,dive,required"`
	TeacherID string   `json:"teacher_id" validate:"required"`
}

// AutoDistributeRequest spreads leads across the approved heads.
type AutoDistributeRequest struct {
	LeadIDs []string `json:"lead_ids" validate:"dive,required"`
}

// AutoDistributeTeachersRequest spreads leads across a department's approved teachers.
type AutoDistributeTeachersRequest struct {
	LeadIDs    []string `json:"lead_ids" validate:"dive,required"`
	Department string   `json:"department" validate:"required,department"`
}

// AssignmentResult reports the outcome of a distribution operation.
type AssignmentResult struct {
	Moved       int                            `json:"moved"`
	PerAssignee map[string]int                 `json:"per_assignee"`
	Unrouted    map[models.Department][]string `json:"unrouted,omitempty"`
	Missing     []string                       `json:"missing,omitempty"`
}
