package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

type callService interface {
	Start(ctx context.Context, actor models.Actor, leadID string) (*dto.StartCallResponse, error)
	End(ctx context.Context, actor models.Actor) (*dto.CallSessionView, error)
	Status(actor models.Actor) dto.CallSessionView
	Teardown(actorID string)
}

// CallHandler drives the caller's call session.
type CallHandler struct {
	calls callService
}

// NewCallHandler constructs CallHandler.
func NewCallHandler(calls callService) *CallHandler {
	return &CallHandler{calls: calls}
}

// Start godoc
// @Summary Start a call on a lead
// @Description Replaces any running session and returns a tel: dial link
// @Tags Calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.StartCallRequest true "Lead"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calls/start [post]
func (h *CallHandler) Start(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.StartCallRequest
	if !bindJSON(c, &req, "invalid call payload") {
		return
	}
	if strings.TrimSpace(req.LeadID) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lead_id is required"))
		return
	}
	res, err := h.calls.Start(c.Request.Context(), actor, req.LeadID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// End godoc
// @Summary End the running call
// @Description Freezes the timer and records the duration on the lead
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calls/end [post]
func (h *CallHandler) End(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.calls.End(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Status godoc
// @Summary Current call session
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /calls/session [get]
func (h *CallHandler) Status(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	response.OK(c, h.calls.Status(actor))
}

// Discard godoc
// @Summary Discard the call session without recording it
// @Tags Calls
// @Security BearerAuth
// @Success 204
// @Router /calls/session [delete]
func (h *CallHandler) Discard(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	h.calls.Teardown(actor.ID)
	response.NoContent(c)
}
