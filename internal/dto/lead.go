package dto

import "github.com/noah-isme/admission-leads-api/internal/models"

// ImportLeadRow is one raw spreadsheet row.
type ImportLeadRow struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	SourceFile string `json:"source_file"`
}

// ImportLeadsRequest carries a batch of rows to normalise and insert.
type ImportLeadsRequest struct {
	Rows []ImportLeadRow `json:"rows" validate:"required,min=1,max=5000,dive"`
}

// RejectedRow explains why an import row was skipped.
type RejectedRow struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportLeadsResult summarises an import.
type ImportLeadsResult struct {
	Received   int           `json:"received"`
	Accepted   int           `json:"accepted"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Rejected   []RejectedRow `json:"rejected"`
}

// CreateLeadRequest adds a single lead by hand.
type CreateLeadRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Source     string `json:"source" validate:"omitempty,max=200"`
	Department string `json:"department" validate:"omitempty,department"`
}

// PurgeLeadsRequest lists lead ids to delete.
type PurgeLeadsRequest struct {
	LeadIDs []string `json:"lead_ids" validate:"required,min=1,dive,required"`
}

// PurgeLeadsResult reports how many leads were deleted.
type PurgeLeadsResult struct {
	Deleted int `json:"deleted"`
}

// ClassifyRequest records the outcome of a call.
type ClassifyRequest struct {
	Response   string `json:"response" validate:"required,lead_response"`
	Department string `json:"department" validate:"omitempty,department"`
}

// BoardLead is a lead joined with its assignee names.
type BoardLead struct {
	models.Lead
	HeadName    string `json:"head_name"`
	TeacherName string `json:"teacher_name"`
}

// LeadStats holds dashboard counters.
type LeadStats struct {
	Total        int            `json:"total"`
	ByStage      map[string]int `json:"by_stage"`
	ByDepartment map[string]int `json:"by_department"`
	ByHead       map[string]int `json:"by_head"`
	ByTeacher    map[string]int `json:"by_teacher"`
}
