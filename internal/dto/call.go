package dto

import "time"

// StartCallRequest opens a call session on a lead.
type StartCallRequest struct {
	LeadID string `json:"lead_id" validate:"required"`
}

// CallSessionView is the externally visible state of a call session.
type CallSessionView struct {
	LeadID         string     `json:"lead_id,omitempty"`
	Active         bool       `json:"active"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
}

// DialLink is the telephony handoff for the lead's phone.
type DialLink struct {
	URI   string `json:"uri"`
	E164  string `json:"e164,omitempty"`
	Valid bool   `json:"valid"`
}

// StartCallResponse pairs the new session with the dial link.
type StartCallResponse struct {
	Session CallSessionView `json:"session"`
	Dial    DialLink        `json:"dial"`
}
