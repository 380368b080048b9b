package models

import (
	"strings"
	"time"
)

// Department enumerates the institutional branches a lead can be routed to.
type Department string

const (
	DepartmentComputerTechnology    Department = "Computer Technology"
	DepartmentInformationTechnology Department = "Information Technology"
	DepartmentMechanical            Department = "Mechanical Engineering"
	DepartmentCivil                 Department = "Civil Engineering"
	DepartmentElectrical            Department = "Electrical Engineering"
	DepartmentElectronicsTelecom    Department = "Electronics & Telecommunication"
	DepartmentAutomobile            Department = "Automobile Engineering"
)

// Departments lists every branch in display order.
var Departments = []Department{
	DepartmentComputerTechnology,
	DepartmentInformationTechnology,
	DepartmentMechanical,
	DepartmentCivil,
	DepartmentElectrical,
	DepartmentElectronicsTelecom,
	DepartmentAutomobile,
}

// Valid reports whether d is a known branch.
func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDepartment matches raw case-insensitively against the known branches.
func ParseDepartment(raw string) (Department, bool) {
	raw = strings.TrimSpace(raw)
	for _, known := range Departments {
		if strings.EqualFold(raw, string(known)) {
			return known, true
		}
	}
	return "", false
}

// LeadStage is the pipeline position of a lead.
type LeadStage string

const (
	StageUnassigned LeadStage = "UNASSIGNED"
	StageAssigned   LeadStage = "ASSIGNED"
	StageTargeted   LeadStage = "TARGETED"
	StageDiscarded  LeadStage = "DISCARDED"
	StageForwarded  LeadStage = "FORWARDED"
	StageNoAction   LeadStage = "NO_ACTION"
)

// Stages lists every stage in pipeline order.
var Stages = []LeadStage{StageUnassigned, StageAssigned, StageTargeted, StageDiscarded, StageForwarded, StageNoAction}

// Valid reports whether s is a known stage.
func (s LeadStage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a classification outcome.
func (s LeadStage) Terminal() bool {
	switch s {
	case StageTargeted, StageDiscarded, StageForwarded, StageNoAction:
		return true
	default:
		return false
	}
}

// LeadResponse is the outcome a caller records after a call.
type LeadResponse string

const (
	ResponseInterested    LeadResponse = "Interested"
	ResponseNotInterested LeadResponse = "Not Interested"
	ResponseConfused      LeadResponse = "Confused"
	ResponseNotResponding LeadResponse = "Not Responding"
	ResponseNotReachable  LeadResponse = "Not Reachable"
	ResponseSchoolStage   LeadResponse = "11th/12th"
	ResponseOthers        LeadResponse = "Others"
)

// Responses lists every classification option.
var Responses = []LeadResponse{
	ResponseInterested,
	ResponseNotInterested,
	ResponseConfused,
	ResponseNotResponding,
	ResponseNotReachable,
	ResponseSchoolStage,
	ResponseOthers,
}

var stageForResponse = map[LeadResponse]LeadStage{
	ResponseInterested:    StageTargeted,
	ResponseConfused:      StageTargeted,
	ResponseNotInterested: StageDiscarded,
	ResponseNotResponding: StageDiscarded,
	ResponseNotReachable:  StageDiscarded,
	ResponseSchoolStage:   StageForwarded,
	ResponseOthers:        StageNoAction,
}

// StageForResponse returns the stage a classification moves a lead to.
func StageForResponse(r LeadResponse) (LeadStage, bool) {
	stage, ok := stageForResponse[r]
	return stage, ok
}

// Lead is a prospective student moving through the admission pipeline.
type Lead struct {
	ID                string        `db:"id" json:"id"`
	Name              string        `db:"name" json:"name"`
	Phone             string        `db:"phone" json:"phone"`
	Source            string        `db:"source" json:"source"`
	Department        Department    `db:"department" json:"department"`
	Stage             LeadStage     `db:"stage" json:"stage"`
	Response          *LeadResponse `db:"response" json:"response,omitempty"`
	CallVerified      bool          `db:"call_verified" json:"call_verified"`
	CallTimestamp     *time.Time    `db:"call_timestamp" json:"call_timestamp,omitempty"`
	CallDuration      int           `db:"call_duration" json:"call_duration"`
	AssignedHeadID    *string       `db:"assigned_head_id" json:"assigned_head_id,omitempty"`
	AssignedTeacherID *string       `db:"assigned_teacher_id" json:"assigned_teacher_id,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// LeadPatch is a merge-patch: only non-nil fields are written.
type LeadPatch struct {
	Name              *string
	Phone             *string
	Source            *string
	Department        *Department
	Stage             *LeadStage
	Response          *LeadResponse
	CallVerified      *bool
	CallTimestamp     *time.Time
	CallDuration      *int
	AssignedHeadID    *string
	AssignedTeacherID *string
	// ClearAssignedTeacher nulls assigned_teacher_id; ignored when AssignedTeacherID is set.
	ClearAssignedTeacher bool
}

// Empty reports whether the patch writes nothing.
func (p LeadPatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Source == nil && p.Department == nil &&
		p.Stage == nil && p.Response == nil && p.CallVerified == nil && p.CallTimestamp == nil &&
		p.CallDuration == nil && p.AssignedHeadID == nil && p.AssignedTeacherID == nil && !p.ClearAssignedTeacher
}

// LeadUpsert pairs an id with the fields to merge into it.
type LeadUpsert struct {
	ID    string
	Patch LeadPatch
}

// LeadFilter narrows lead listings.
type LeadFilter struct {
	Stage             *LeadStage
	Department        *Department
	AssignedHeadID    *string
	AssignedTeacherID *string
	CallVerified      *bool
	Search            string
	Page              int
	PageSize          int
}

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Key   string `db:"key" json:"key"`
	Total int    `db:"total" json:"total"`
}
