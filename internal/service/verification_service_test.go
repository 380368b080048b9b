package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/objectstore"
)

type fixedPicker int

func (p fixedPicker) Pick(int) int { return int(p) }

type evidenceStub struct {
	maxSize int64
	stored  map[string]string
}

func (e *evidenceStub) Validate(contentType string, size int64) error {
	if size > e.maxSize {
		return errors.New("file too large")
	}
	return nil
}

func (e *evidenceStub) Put(ctx context.Context, owner, fileName, contentType string, r io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := "evidence/" + owner + "/" + fileName
	e.stored[key] = string(data)
	return key, nil
}

func (e *evidenceStub) PresignGet(ctx context.Context, key string) (*objectstore.PresignedURL, error) {
	return &objectstore.PresignedURL{URL: "https://files.example.edu/" + key, Key: key, ExpiresAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}, nil
}

func newVerificationFixture(t *testing.T) (*VerificationService, *memStaffStore, *evidenceStub) {
	t.Helper()
	called := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	leads := newMemLeadStore(
		models.Lead{ID: "lead-1", Name: "ASHA", Phone: "9876500001", CallVerified: true, CallDuration: 31, CallTimestamp: &called, AssignedTeacherID: strPtr("teacher-1")},
		models.Lead{ID: "lead-2", Name: "RAVI", Phone: "9876500002", CallVerified: true, CallDuration: 47, CallTimestamp: &called, AssignedTeacherID: strPtr("teacher-1")},
		models.Lead{ID: "lead-3", Name: "MEERA", Phone: "9876500003", CallVerified: false, AssignedTeacherID: strPtr("teacher-1")},
	)
	staff := newMemStaffStore(
		approvedStaff("teacher-1", models.RoleTeacher, models.DepartmentCivil),
		approvedStaff("teacher-2", models.RoleTeacher, models.DepartmentCivil),
		approvedStaff("head-1", models.RoleDepartmentHead, models.DepartmentCivil),
	)
	evidence := &evidenceStub{maxSize: 1024, stored: map[string]string{}}
	recorder, _, _ := newTestRecorder()
	svc := NewVerificationService(staff, leads, evidence, fixedPicker(1), nil, recorder, nil, nil, 20*time.Second)
	return svc, staff, evidence
}

func validResponse() dto.AuditResponseRequest {
	return dto.AuditResponseRequest{
		ReportedDuration: 45,
		ReportedDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EvidenceRef:      "evidence/teacher-1/screenshot.png",
	}
}

func TestVerificationLifecycle(t *testing.T) {
	svc, staff, _ := newVerificationFixture(t)
	ctx := context.Background()
	head := headActor("head-1", models.DepartmentCivil)
	teacher := teacherActor("teacher-1", models.DepartmentCivil)

	challenge, err := svc.Challenge(ctx, teacher, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeNone, challenge.Status)

	challenge, err = svc.TriggerAudit(ctx, head, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengePending, challenge.Status)
	assert.Equal(t, "lead-2", challenge.LeadID)
	assert.Equal(t, 47, challenge.ActualDuration)
	assert.Equal(t, "head-1", challenge.TriggeredBy)

	challenge, err = svc.SubmitResponse(ctx, teacher, "teacher-1", validResponse())
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeResponded, challenge.Status)
	require.NotNil(t, challenge.ReportedDuration)
	assert.Equal(t, 45, *challenge.ReportedDuration)

	challenge, err = svc.Decide(ctx, head, "teacher-1", dto.AuditDecisionRequest{Decision: "rejected", Reason: "screenshot unreadable"})
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeRejected, challenge.Status)
	assert.Empty(t, challenge.EvidenceRef)
	assert.Nil(t, challenge.ReportedDuration)
	assert.Equal(t, "screenshot unreadable", challenge.RejectionReason)

	challenge, err = svc.SubmitResponse(ctx, teacher, "teacher-1", validResponse())
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeResponded, challenge.Status)
	assert.Empty(t, challenge.RejectionReason)

	challenge, err = svc.Decide(ctx, adminActor(), "teacher-1", dto.AuditDecisionRequest{Decision: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeApproved, challenge.Status)
	require.NotNil(t, challenge.DecidedBy)
	assert.Equal(t, "admin-1", *challenge.DecidedBy)

	stored := staff.get("teacher-1")
	require.NotNil(t, stored.Challenge)
	assert.Equal(t, models.ChallengeApproved, stored.Challenge.Status)

	_, err = svc.SubmitResponse(ctx, teacher, "teacher-1", validResponse())
	assert.ErrorIs(t, err, appErrors.ErrInvalidChallengeState)
}

func TestTriggerAuditWithoutVerifiedCalls(t *testing.T) {
	svc, _, _ := newVerificationFixture(t)
	_, err := svc.TriggerAudit(context.Background(), adminActor(), "teacher-2")
	assert.ErrorIs(t, err, appErrors.ErrNoVerifiedCalls)

	_, err = svc.TriggerAudit(context.Background(), headActor("head-9", models.DepartmentMechanical), "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.TriggerAudit(context.Background(), adminActor(), "head-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSubmitResponseValidation(t *testing.T) {
	svc, _, _ := newVerificationFixture(t)
	ctx := context.Background()
	teacher := teacherActor("teacher-1", models.DepartmentCivil)
	_, err := svc.TriggerAudit(ctx, adminActor(), "teacher-1")
	require.NoError(t, err)

	short := validResponse()
	short.ReportedDuration = 19
	_, err = svc.SubmitResponse(ctx, teacher, "teacher-1", short)
	assert.ErrorIs(t, err, appErrors.ErrCallTooShort)

	noEvidence := validResponse()
	noEvidence.EvidenceRef = "   "
	_, err = svc.SubmitResponse(ctx, teacher, "teacher-1", noEvidence)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	noDate := validResponse()
	noDate.ReportedDate = time.Time{}
	_, err = svc.SubmitResponse(ctx, teacher, "teacher-1", noDate)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.SubmitResponse(ctx, teacherActor("teacher-2", models.DepartmentCivil), "teacher-1", validResponse())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDecideRequiresResponseAndReason(t *testing.T) {
	svc, _, _ := newVerificationFixture(t)
	ctx := context.Background()
	_, err := svc.TriggerAudit(ctx, adminActor(), "teacher-1")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, adminActor(), "teacher-1", dto.AuditDecisionRequest{Decision: "approved"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidChallengeState)

	_, err = svc.Decide(ctx, adminActor(), "teacher-1", dto.AuditDecisionRequest{Decision: "rejected"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Decide(ctx, adminActor(), "teacher-1", dto.AuditDecisionRequest{Decision: "maybe"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEvidenceUploadAndPresign(t *testing.T) {
	svc, _, evidence := newVerificationFixture(t)
	ctx := context.Background()
	teacher := teacherActor("teacher-1", models.DepartmentCivil)

	_, err := svc.UploadEvidence(ctx, adminActor(), "shot.png", "image/png", strings.NewReader("png"), 3)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.UploadEvidence(ctx, teacher, "huge.png", "image/png", strings.NewReader("x"), 4096)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	uploaded, err := svc.UploadEvidence(ctx, teacher, "shot.png", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "evidence/teacher-1/shot.png", uploaded.EvidenceRef)
	assert.Equal(t, "png", evidence.stored[uploaded.EvidenceRef])

	_, err = svc.EvidenceURL(ctx, adminActor(), "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.TriggerAudit(ctx, adminActor(), "teacher-1")
	require.NoError(t, err)
	req := validResponse()
	req.EvidenceRef = uploaded.EvidenceRef
	_, err = svc.SubmitResponse(ctx, teacher, "teacher-1", req)
	require.NoError(t, err)

	url, err := svc.EvidenceURL(ctx, headActor("head-1", models.DepartmentCivil), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.edu/evidence/teacher-1/shot.png", url.URL)
}

func TestEvidenceUnavailableWithoutStore(t *testing.T) {
	svc := NewVerificationService(newMemStaffStore(), newMemLeadStore(), nil, nil, nil, nil, nil, nil, 0)
	_, err := svc.UploadEvidence(context.Background(), teacherActor("t", models.DepartmentCivil), "a.png", "image/png", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestTeacherNeverSeesRecordedCallFacts(t *testing.T) {
	svc, staff, _ := newVerificationFixture(t)
	ctx := context.Background()
	teacher := teacherActor("teacher-1", models.DepartmentCivil)
	head := headActor("head-1", models.DepartmentCivil)

	_, err := svc.TriggerAudit(ctx, head, "teacher-1")
	require.NoError(t, err)

	own, err := svc.Challenge(ctx, teacher, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengePending, own.Status)
	assert.Equal(t, "lead-2", own.LeadID)
	assert.Zero(t, own.ActualDuration)
	assert.Nil(t, own.ActualTimestamp)

	responded, err := svc.SubmitResponse(ctx, teacher, "teacher-1", validResponse())
	require.NoError(t, err)
	assert.Zero(t, responded.ActualDuration)
	assert.Nil(t, responded.ActualTimestamp)

	audited, err := svc.Challenge(ctx, head, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 47, audited.ActualDuration)
	require.NotNil(t, audited.ActualTimestamp)

	stored := staff.get("teacher-1")
	require.NotNil(t, stored.Challenge)
	assert.Equal(t, 47, stored.Challenge.ActualDuration)
}
