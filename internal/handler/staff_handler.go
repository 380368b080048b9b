package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

type staffService interface {
	Register(ctx context.Context, req dto.RegisterStaffRequest) (*models.Staff, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateStaffRequest) (*models.Staff, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.Staff, error)
	Reject(ctx context.Context, actor models.Actor, id string) (*models.Staff, error)
	Revoke(ctx context.Context, actor models.Actor, id string) error
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error)
}

// StaffHandler exposes the staff directory.
type StaffHandler struct {
	staff staffService
}

// NewStaffHandler constructs StaffHandler.
func NewStaffHandler(staff staffService) *StaffHandler {
	return &StaffHandler{staff: staff}
}

// Register godoc
// @Summary Self-register as head or teacher
// @Description Creates a PENDING account that an administrator must approve
// @Tags Staff
// @Accept json
// @Produce json
// @Param payload body dto.RegisterStaffRequest true "Registration"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /staff/register [post]
func (h *StaffHandler) Register(c *gin.Context) {
	var req dto.RegisterStaffRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}
	staff, err := h.staff.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, staff)
}

// List godoc
// @Summary List staff
// @Tags Staff
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role"
// @Param department query string false "Department"
// @Param status query string false "Approval status"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /staff [get]
func (h *StaffHandler) List(c *gin.Context) {
	var filter models.StaffFilter
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role := models.StaffRole(strings.ToUpper(raw))
		if !role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
			return
		}
		filter.Role = &role
	}
	if raw := c.Query("department"); raw != "" {
		dept, ok := models.ParseDepartment(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown department"))
			return
		}
		filter.Department = &dept
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.ApprovalStatus(strings.ToUpper(raw))
		filter.ApprovalStatus = &status
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)

	staff, pagination, err := h.staff.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, pagination)
}

// Create godoc
// @Summary Create an approved staff account
// @Tags Staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /staff [post]
func (h *StaffHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateStaffRequest
	if !bindJSON(c, &req, "invalid staff payload") {
		return
	}
	staff, err := h.staff.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, staff)
}

// Approve godoc
// @Summary Approve a pending registration
// @Tags Staff
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /staff/{id}/approve [post]
func (h *StaffHandler) Approve(c *gin.Context) {
	h.review(c, h.staff.Approve)
}

// Reject godoc
// @Summary Reject a pending registration
// @Tags Staff
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /staff/{id}/reject [post]
func (h *StaffHandler) Reject(c *gin.Context) {
	h.review(c, h.staff.Reject)
}

func (h *StaffHandler) review(c *gin.Context, fn func(context.Context, models.Actor, string) (*models.Staff, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	staff, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, staff)
}

// Revoke godoc
// @Summary Revoke a staff account
// @Description Deletes the account; leads assigned to it keep their history
// @Tags Staff
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /staff/{id} [delete]
func (h *StaffHandler) Revoke(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.staff.Revoke(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
