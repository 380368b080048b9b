package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

const maxEvidenceBytes = 20 << 20

type verificationService interface {
	Challenge(ctx context.Context, actor models.Actor, teacherID string) (*models.VerificationChallenge, error)
	TriggerAudit(ctx context.Context, actor models.Actor, teacherID string) (*models.VerificationChallenge, error)
	SubmitResponse(ctx context.Context, actor models.Actor, teacherID string, req dto.AuditResponseRequest) (*models.VerificationChallenge, error)
	Decide(ctx context.Context, actor models.Actor, teacherID string, req dto.AuditDecisionRequest) (*models.VerificationChallenge, error)
	UploadEvidence(ctx context.Context, actor models.Actor, fileName, contentType string, r io.Reader, size int64) (*dto.EvidenceUploadResponse, error)
	EvidenceURL(ctx context.Context, actor models.Actor, teacherID string) (*dto.EvidenceURLResponse, error)
}

// VerificationHandler exposes the call audit workflow.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs VerificationHandler.
func NewVerificationHandler(service verificationService) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// Challenge godoc
// @Summary Current audit challenge for a teacher
// @Tags Verification
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /verification/{teacherId} [get]
func (h *VerificationHandler) Challenge(c *gin.Context) {
	h.run(c, func(ctx context.Context, actor models.Actor) (interface{}, error) {
		return h.service.Challenge(ctx, actor, c.Param("teacherId"))
	})
}

// Trigger godoc
// @Summary Sample one verified call for audit
// @Tags Verification
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /verification/{teacherId}/trigger [post]
func (h *VerificationHandler) Trigger(c *gin.Context) {
	h.run(c, func(ctx context.Context, actor models.Actor) (interface{}, error) {
		return h.service.TriggerAudit(ctx, actor, c.Param("teacherId"))
	})
}

// Respond godoc
// @Summary Submit the teacher's audit response
// @Tags Verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Param payload body dto.AuditResponseRequest true "Response"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verification/{teacherId}/respond [post]
func (h *VerificationHandler) Respond(c *gin.Context) {
	var req dto.AuditResponseRequest
	if !bindJSON(c, &req, "invalid audit response") {
		return
	}
	h.run(c, func(ctx context.Context, actor models.Actor) (interface{}, error) {
		return h.service.SubmitResponse(ctx, actor, c.Param("teacherId"), req)
	})
}

// Decide godoc
// @Summary Approve or reject an audit response
// @Tags Verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Param payload body dto.AuditDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verification/{teacherId}/decide [post]
func (h *VerificationHandler) Decide(c *gin.Context) {
	var req dto.AuditDecisionRequest
	if !bindJSON(c, &req, "invalid audit decision") {
		return
	}
	h.run(c, func(ctx context.Context, actor models.Actor) (interface{}, error) {
		return h.service.Decide(ctx, actor, c.Param("teacherId"), req)
	})
}

// UploadEvidence godoc
// @Summary Upload audit evidence
// @Description Stores the file and returns a reference for the audit response
// @Tags Verification
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Evidence file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /verification/evidence [post]
func (h *VerificationHandler) UploadEvidence(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEvidenceBytes)
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read upload"))
		return
	}
	defer file.Close()

	res, err := h.service.UploadEvidence(c.Request.Context(), actor, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// EvidenceURL godoc
// @Summary Presigned link to a teacher's evidence
// @Tags Verification
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verification/{teacherId}/evidence [get]
func (h *VerificationHandler) EvidenceURL(c *gin.Context) {
	h.run(c, func(ctx context.Context, actor models.Actor) (interface{}, error) {
		return h.service.EvidenceURL(ctx, actor, c.Param("teacherId"))
	})
}

func (h *VerificationHandler) run(c *gin.Context, fn func(ctx context.Context, actor models.Actor) (interface{}, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
