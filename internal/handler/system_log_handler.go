package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

type systemLogService interface {
	List(ctx context.Context, actor models.Actor, filter models.SystemLogFilter) ([]models.SystemLog, *models.Pagination, error)
}

// SystemLogHandler exposes the activity history.
type SystemLogHandler struct {
	logs systemLogService
}

// NewSystemLogHandler constructs SystemLogHandler.
func NewSystemLogHandler(logs systemLogService) *SystemLogHandler {
	return &SystemLogHandler{logs: logs}
}

// List godoc
// @Summary List system logs
// @Tags System
// @Produce json
// @Security BearerAuth
// @Param actor_id query string false "Actor"
// @Param action query string false "Action"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /system-logs [get]
func (h *SystemLogHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.SystemLogFilter{
		ActorID: strings.TrimSpace(c.Query("actor_id")),
		Action:  c.Query("action"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	logs, pagination, err := h.logs.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
