package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
)

type fakeVerification struct {
	teacherID string
	decision  string
	fileName  string
	content   string
}

func (f *fakeVerification) Challenge(_ context.Context, _ models.Actor, teacherID string) (*models.VerificationChallenge, error) {
	f.teacherID = teacherID
	return &models.VerificationChallenge{LeadID: "lead-1"}, nil
}

func (f *fakeVerification) TriggerAudit(_ context.Context, _ models.Actor, teacherID string) (*models.VerificationChallenge, error) {
	f.teacherID = teacherID
	return &models.VerificationChallenge{LeadID: "lead-1"}, nil
}

func (f *fakeVerification) SubmitResponse(_ context.Context, _ models.Actor, teacherID string, _ dto.AuditResponseRequest) (*models.VerificationChallenge, error) {
	f.teacherID = teacherID
	return &models.VerificationChallenge{LeadID: "lead-1"}, nil
}

func (f *fakeVerification) Decide(_ context.Context, _ models.Actor, teacherID string, req dto.AuditDecisionRequest) (*models.VerificationChallenge, error) {
	f.teacherID = teacherID
	f.decision = req.Decision
	return &models.VerificationChallenge{LeadID: "lead-1"}, nil
}

func (f *fakeVerification) UploadEvidence(_ context.Context, _ models.Actor, fileName, _ string, r io.Reader, _ int64) (*dto.EvidenceUploadResponse, error) {
	raw, _ := io.ReadAll(r)
	f.fileName = fileName
	f.content = string(raw)
	return &dto.EvidenceUploadResponse{EvidenceRef: "evidence/t1/" + fileName}, nil
}

func (f *fakeVerification) EvidenceURL(_ context.Context, _ models.Actor, teacherID string) (*dto.EvidenceURLResponse, error) {
	f.teacherID = teacherID
	return &dto.EvidenceURLResponse{URL: "https://minio.local/evidence", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestVerificationDecideUsesPathTeacher(t *testing.T) {
	svc := &fakeVerification{}
	c, rec := newContext(http.MethodPost, "/verification/t1/decide", dto.AuditDecisionRequest{Decision: "approved"})
	c.Params = gin.Params{{Key: "teacherId", Value: "t1"}}
	withClaims(c, "admin-1", models.RoleAdmin, nil)

	NewVerificationHandler(svc).Decide(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", svc.teacherID)
	assert.Equal(t, "approved", svc.decision)
}

func TestVerificationTriggerRequiresActor(t *testing.T) {
	svc := &fakeVerification{}
	c, rec := newContext(http.MethodPost, "/verification/t1/trigger", nil)
	c.Params = gin.Params{{Key: "teacherId", Value: "t1"}}

	NewVerificationHandler(svc).Trigger(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.teacherID)
}

func TestVerificationUploadEvidence(t *testing.T) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "recording.m4a")
	require.NoError(t, err)
	_, _ = part.Write([]byte("audio-bytes"))
	require.NoError(t, writer.Close())

	svc := &fakeVerification{}
	c, rec := newContext(http.MethodPost, "/verification/evidence", nil)
	c.Request, _ = http.NewRequest(http.MethodPost, "/verification/evidence", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	withClaims(c, "t1", models.RoleTeacher, deptRef(models.DepartmentCivil))

	NewVerificationHandler(svc).UploadEvidence(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "recording.m4a", svc.fileName)
	assert.Equal(t, "audio-bytes", svc.content)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "evidence/t1/recording.m4a")
}

func TestVerificationUploadRequiresFile(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/verification/evidence", map[string]string{})
	withClaims(c, "t1", models.RoleTeacher, deptRef(models.DepartmentCivil))

	NewVerificationHandler(&fakeVerification{}).UploadEvidence(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
