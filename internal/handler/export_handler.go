package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/internal/service"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

type forwardExportService interface {
	CreateJob(ctx context.Context, actor models.Actor, req dto.ForwardExportRequest) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, actor models.Actor, id string) (*dto.ExportJobResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ForwardDownload, error)
}

// ExportHandler exposes the forwarded-queue export.
type ExportHandler struct {
	service forwardExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(service forwardExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Create godoc
// @Summary Queue an export of FORWARDED leads
// @Tags Exports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ForwardExportRequest true "Format and recipients"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /exports/forwarded [post]
func (h *ExportHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ForwardExportRequest
	if !bindJSON(c, &req, "invalid export payload") {
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/jobs/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	job, err := h.service.GetStatus(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, job)
}

// Download godoc
// @Summary Download a finished export
// @Description The token in the path is the signed link returned by the job status
// @Tags Exports
// @Produce application/pdf
// @Produce text/csv
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read export"))
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Header("Expires", download.ExpiresAt.UTC().Format(http.TimeFormat))
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.FileName),
		"Last-Modified":       info.ModTime().UTC().Format(http.TimeFormat),
	})
}
