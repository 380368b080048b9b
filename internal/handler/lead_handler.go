package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/middleware"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

type leadService interface {
	Import(ctx context.Context, actor models.Actor, req dto.ImportLeadsRequest) (*dto.ImportLeadsResult, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateLeadRequest) (*models.Lead, error)
	Purge(ctx context.Context, actor models.Actor, req dto.PurgeLeadsRequest) (*dto.PurgeLeadsResult, error)
	Board(ctx context.Context, actor models.Actor, filter models.LeadFilter) ([]dto.BoardLead, *models.Pagination, error)
}

type statsReader interface {
	LeadStats(ctx context.Context) (*dto.LeadStats, bool, error)
}

type leadClassifier interface {
	Classify(ctx context.Context, actor models.Actor, leadID string, req dto.ClassifyRequest) (*models.Lead, error)
}

// LeadHandler exposes intake, board and classification endpoints.
type LeadHandler struct {
	leads      leadService
	stats      statsReader
	classifier leadClassifier
}

// NewLeadHandler constructs LeadHandler.
func NewLeadHandler(leads leadService, stats statsReader, classifier leadClassifier) *LeadHandler {
	return &LeadHandler{leads: leads, stats: stats, classifier: classifier}
}

// Board godoc
// @Summary Lead board
// @Description Heads see their department's leads, teachers see leads assigned to them
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param stage query string false "Stage"
// @Param department query string false "Department"
// @Param head_id query string false "Assigned head"
// @Param teacher_id query string false "Assigned teacher"
// @Param verified query bool false "Call verified"
// @Param search query string false "Search by name or phone"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leads [get]
func (h *LeadHandler) Board(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter, err := leadFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	leads, pagination, err := h.leads.Board(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leads, pagination)
}

func leadFilterFromQuery(c *gin.Context) (models.LeadFilter, error) {
	var filter models.LeadFilter
	if raw := strings.TrimSpace(c.Query("stage")); raw != "" {
		stage := models.LeadStage(strings.ToUpper(raw))
		if !stage.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown stage")
		}
		filter.Stage = &stage
	}
	if raw := c.Query("department"); raw != "" {
		dept, ok := models.ParseDepartment(raw)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown department")
		}
		filter.Department = &dept
	}
	if id := strings.TrimSpace(c.Query("head_id")); id != "" {
		filter.AssignedHeadID = &id
	}
	if id := strings.TrimSpace(c.Query("teacher_id")); id != "" {
		filter.AssignedTeacherID = &id
	}
	if raw := c.Query("verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "verified must be a boolean")
		}
		filter.CallVerified = &verified
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	return filter, nil
}

// Create godoc
// @Summary Add a single lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateLeadRequest true "Lead"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateLeadRequest
	if !bindJSON(c, &req, "invalid lead payload") {
		return
	}
	lead, err := h.leads.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lead)
}

// Import godoc
// @Summary Import spreadsheet rows
// @Description Normalises phones, drops duplicates and inserts the rest as UNASSIGNED
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ImportLeadsRequest true "Rows"
// @Success 200 {object} response.Envelope
// @Router /leads/import [post]
func (h *LeadHandler) Import(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ImportLeadsRequest
	if !bindJSON(c, &req, "invalid import payload") {
		return
	}
	res, err := h.leads.Import(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Purge godoc
// @Summary Delete leads by id
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.PurgeLeadsRequest true "Lead ids"
// @Success 200 {object} response.Envelope
// @Router /leads [delete]
func (h *LeadHandler) Purge(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.PurgeLeadsRequest
	if !bindJSON(c, &req, "invalid purge payload") {
		return
	}
	res, err := h.leads.Purge(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Stats godoc
// @Summary Lead counters
// @Description Totals by stage, department, head and teacher. Served from cache when warm.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /leads/stats [get]
func (h *LeadHandler) Stats(c *gin.Context) {
	stats, cacheHit, err := h.stats.LeadStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Classify godoc
// @Summary Record a call outcome
// @Description Requires a verified call of at least the configured minimum duration
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param payload body dto.ClassifyRequest true "Outcome"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /leads/{id}/classify [post]
func (h *LeadHandler) Classify(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ClassifyRequest
	if !bindJSON(c, &req, "invalid classification payload") {
		return
	}
	lead, err := h.classifier.Classify(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lead)
}
