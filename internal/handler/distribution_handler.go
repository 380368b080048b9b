package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

type distributionService interface {
	AssignToDepartmentHead(ctx context.Context, actor models.Actor, leadIDs []string, headID string) (*dto.AssignmentResult, error)
	AutoDistributeToDepartmentHeads(ctx context.Context, actor models.Actor, leadIDs []string) (*dto.AssignmentResult, error)
	AssignToTeacher(ctx context.Context, actor models.Actor, leadIDs []string, teacherID string) (*dto.AssignmentResult, error)
	AutoDistributeToTeachers(ctx context.Context, actor models.Actor, leadIDs []string, department models.Department) (*dto.AssignmentResult, error)
	SmartRouteByInterest(ctx context.Context, actor models.Actor, leadIDs []string) (*dto.AssignmentResult, error)
}

// DistributionHandler moves leads between pools.
type DistributionHandler struct {
	service distributionService
}

// NewDistributionHandler constructs DistributionHandler.
func NewDistributionHandler(service distributionService) *DistributionHandler {
	return &DistributionHandler{service: service}
}

// AssignHead godoc
// @Summary Assign leads to a department head
// @Tags Distribution
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignHeadRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /distribution/heads [post]
func (h *DistributionHandler) AssignHead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AssignHeadRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	h.respond(c, func(ctx context.Context) (*dto.AssignmentResult, error) {
		return h.service.AssignToDepartmentHead(ctx, actor, req.LeadIDs, req.HeadID)
	})
}

// AutoHeads godoc
// @Summary Round-robin leads across approved heads
// @Description An empty lead_ids list distributes every unassigned lead
// @Tags Distribution
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AutoDistributeRequest true "Lead ids"
// @Success 200 {object} response.Envelope
// @Router /distribution/heads/auto [post]
func (h *DistributionHandler) AutoHeads(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AutoDistributeRequest
	if !bindJSON(c, &req, "invalid distribution payload") {
		return
	}
	h.respond(c, func(ctx context.Context) (*dto.AssignmentResult, error) {
		return h.service.AutoDistributeToDepartmentHeads(ctx, actor, req.LeadIDs)
	})
}

// AssignTeacher godoc
// @Summary Assign leads to a teacher
// @Tags Distribution
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignTeacherRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /distribution/teachers [post]
func (h *DistributionHandler) AssignTeacher(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AssignTeacherRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	h.respond(c, func(ctx context.Context) (*dto.AssignmentResult, error) {
		return h.service.AssignToTeacher(ctx, actor, req.LeadIDs, req.TeacherID)
	})
}

// AutoTeachers godoc
// @Summary Round-robin leads across a department's teachers
// @Tags Distribution
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AutoDistributeTeachersRequest true "Lead ids and department"
// @Success 200 {object} response.Envelope
// @Router /distribution/teachers/auto [post]
func (h *DistributionHandler) AutoTeachers(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AutoDistributeTeachersRequest
	if !bindJSON(c, &req, "invalid distribution payload") {
		return
	}
	dept, ok := models.ParseDepartment(req.Department)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown department"))
		return
	}
	h.respond(c, func(ctx context.Context) (*dto.AssignmentResult, error) {
		return h.service.AutoDistributeToTeachers(ctx, actor, req.LeadIDs, dept)
	})
}

// SmartRoute godoc
// @Summary Route leads to heads by their department of interest
// @Tags Distribution
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AutoDistributeRequest true "Lead ids"
// @Success 200 {object} response.Envelope
// @Router /distribution/smart-route [post]
func (h *DistributionHandler) SmartRoute(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AutoDistributeRequest
	if !bindJSON(c, &req, "invalid routing payload") {
		return
	}
	h.respond(c, func(ctx context.Context) (*dto.AssignmentResult, error) {
		return h.service.SmartRouteByInterest(ctx, actor, req.LeadIDs)
	})
}

func (h *DistributionHandler) respond(c *gin.Context, run func(ctx context.Context) (*dto.AssignmentResult, error)) {
	res, err := run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
