package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/objectstore"
)

type verificationStaffStore interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	SaveChallenge(ctx context.Context, id string, challenge *models.VerificationChallenge) error
}

type verifiedCallLister interface {
	ListVerifiedByTeacher(ctx context.Context, teacherID string) ([]models.Lead, error)
}

type evidenceStore interface {
	Validate(contentType string, size int64) error
	Put(ctx context.Context, owner, fileName, contentType string, r io.Reader, size int64) (string, error)
	PresignGet(ctx context.Context, key string) (*objectstore.PresignedURL, error)
}

// Picker selects an index in [0, n).
type Picker interface {
	Pick(n int) int
}

// RandomPicker samples uniformly.
type RandomPicker struct{}

// Pick implements Picker.
func (RandomPicker) Pick(n int) int { return rand.IntN(n) }

// VerificationService runs the call audit cycle: trigger, teacher response, reviewer decision.
type VerificationService struct {
	staff       verificationStaffStore
	leads       verifiedCallLister
	evidence    evidenceStore
	picker      Picker
	validator   *validator.Validate
	recorder    *ActivityRecorder
	metrics     *MetricsService
	logger      *zap.Logger
	minDuration time.Duration
	now         func() time.Time
}

// NewVerificationService constructs the service. evidence may be nil when object storage is disabled.
func NewVerificationService(staff verificationStaffStore, leads verifiedCallLister, evidence evidenceStore, picker Picker, validate *validator.Validate, recorder *ActivityRecorder, metrics *MetricsService, logger *zap.Logger, minDuration time.Duration) *VerificationService {
	if picker == nil {
		picker = RandomPicker{}
	}
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if minDuration <= 0 {
		minDuration = 20 * time.Second
	}
	return &VerificationService{
		staff:       staff,
		leads:       leads,
		evidence:    evidence,
		picker:      picker,
		validator:   validate,
		recorder:    recorder,
		metrics:     metrics,
		logger:      logger,
		minDuration: minDuration,
		now:         time.Now,
	}
}

// Challenge returns the teacher's current challenge, a none-status value when absent.
func (s *VerificationService) Challenge(ctx context.Context, actor models.Actor, teacherID string) (*models.VerificationChallenge, error) {
	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	auditor := actor.CanAudit(teacher)
	if actor.ID != teacher.ID && !auditor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view this teacher's audit")
	}
	if teacher.Challenge == nil {
		return &models.VerificationChallenge{Status: models.ChallengeNone}, nil
	}
	if !auditor {
		return teacher.Challenge.Redacted(), nil
	}
	return teacher.Challenge, nil
}

// TriggerAudit samples one of the teacher's verified calls and opens a pending challenge.
func (s *VerificationService) TriggerAudit(ctx context.Context, actor models.Actor, teacherID string) (*models.VerificationChallenge, error) {
	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAudit(teacher) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot audit this teacher")
	}
	calls, err := s.leads.ListVerifiedByTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load verified calls")
	}
	if len(calls) == 0 {
		return nil, appErrors.ErrNoVerifiedCalls
	}

	idx := s.picker.Pick(len(calls))
	if idx < 0 || idx >= len(calls) {
		idx = 0
	}
	sampled := calls[idx]
	challenge := &models.VerificationChallenge{
		Status:          models.ChallengePending,
		LeadID:          sampled.ID,
		LeadName:        sampled.Name,
		LeadPhone:       sampled.Phone,
		ActualDuration:  sampled.CallDuration,
		ActualTimestamp: sampled.CallTimestamp,
		TriggeredBy:     actor.ID,
		TriggeredAt:     s.now().UTC(),
	}
	if err := s.save(ctx, teacher.ID, challenge); err != nil {
		return nil, err
	}
	s.metrics.RecordAudit(challenge.Status)
	s.recorder.Record(ctx, actor, models.ActionAuditTriggered, fmt.Sprintf("%s sampled %s", teacher.Name, sampled.Name))
	s.recorder.Changed(ctx, changefeed.CollectionStaff)
	return challenge, nil
}

// SubmitResponse stores the teacher's self-report for the pending or rejected challenge.
func (s *VerificationService) SubmitResponse(ctx context.Context, actor models.Actor, teacherID string, req dto.AuditResponseRequest) (*models.VerificationChallenge, error) {
	if actor.ID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the audited teacher can respond")
	}
	req.EvidenceRef = strings.TrimSpace(req.EvidenceRef)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid audit response")
	}
	if req.ReportedDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reported_date is required")
	}
	if time.Duration(req.ReportedDuration)*time.Second < s.minDuration {
		return nil, appErrors.Clone(appErrors.ErrCallTooShort,
			fmt.Sprintf("reported duration must be at least %ds", int(s.minDuration/time.Second)))
	}

	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	switch teacher.ChallengeStatus() {
	case models.ChallengePending, models.ChallengeRejected:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidChallengeState, "no open challenge to respond to")
	}

	challenge := *teacher.Challenge
	reported := req.ReportedDuration
	reportedDate := req.ReportedDate.UTC()
	respondedAt := s.now().UTC()
	challenge.Status = models.ChallengeResponded
	challenge.ReportedDuration = &reported
	challenge.ReportedDate = &reportedDate
	challenge.EvidenceRef = req.EvidenceRef
	challenge.RejectionReason = ""
	challenge.RespondedAt = &respondedAt

	if err := s.save(ctx, teacher.ID, &challenge); err != nil {
		return nil, err
	}
	s.metrics.RecordAudit(challenge.Status)
	s.recorder.Record(ctx, actor, models.ActionAuditResponded, fmt.Sprintf("reported %ds for %s", reported, challenge.LeadName))
	s.recorder.Changed(ctx, changefeed.CollectionStaff)
	return challenge.Redacted(), nil
}

// Decide approves or rejects a responded challenge.
func (s *VerificationService) Decide(ctx context.Context, actor models.Actor, teacherID string, req dto.AuditDecisionRequest) (*models.VerificationChallenge, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid audit decision")
	}
	decision := models.ChallengeStatus(req.Decision)
	if decision == models.ChallengeRejected && req.Reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}

	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAudit(teacher) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot audit this teacher")
	}
	if teacher.ChallengeStatus() != models.ChallengeResponded {
		return nil, appErrors.Clone(appErrors.ErrInvalidChallengeState, "challenge has no response to decide on")
	}

	challenge := *teacher.Challenge
	decidedAt := s.now().UTC()
	decidedBy := actor.ID
	challenge.Status = decision
	challenge.DecidedBy = &decidedBy
	challenge.DecidedAt = &decidedAt
	if decision == models.ChallengeRejected {
		challenge.RejectionReason = req.Reason
		challenge.EvidenceRef = ""
		challenge.ReportedDuration = nil
	} else {
		challenge.RejectionReason = ""
	}

	if err := s.save(ctx, teacher.ID, &challenge); err != nil {
		return nil, err
	}
	s.metrics.RecordAudit(challenge.Status)
	s.recorder.Record(ctx, actor, models.ActionAuditDecided, fmt.Sprintf("%s %s", teacher.Name, decision))
	s.recorder.Changed(ctx, changefeed.CollectionStaff)
	return &challenge, nil
}

// UploadEvidence stores an evidence file under the actor's folder and returns its reference.
func (s *VerificationService) UploadEvidence(ctx context.Context, actor models.Actor, fileName, contentType string, r io.Reader, size int64) (*dto.EvidenceUploadResponse, error) {
	if s.evidence == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "evidence storage is not configured")
	}
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers upload call evidence")
	}
	if err := s.evidence.Validate(contentType, size); err != nil {
		return nil, appErrors.Invalid(err, err.Error())
	}
	key, err := s.evidence.Put(ctx, actor.ID, fileName, contentType, r, size)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store evidence")
	}
	return &dto.EvidenceUploadResponse{EvidenceRef: key}, nil
}

// EvidenceURL presigns the evidence attached to the teacher's challenge for a reviewer.
func (s *VerificationService) EvidenceURL(ctx context.Context, actor models.Actor, teacherID string) (*dto.EvidenceURLResponse, error) {
	if s.evidence == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "evidence storage is not configured")
	}
	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAudit(teacher) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot audit this teacher")
	}
	if teacher.Challenge == nil || teacher.Challenge.EvidenceRef == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no evidence submitted")
	}
	presigned, err := s.evidence.PresignGet(ctx, teacher.Challenge.EvidenceRef)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to presign evidence")
	}
	return &dto.EvidenceURLResponse{URL: presigned.URL, ExpiresAt: presigned.ExpiresAt}, nil
}

func (s *VerificationService) loadTeacher(ctx context.Context, id string) (*models.Staff, error) {
	teacher, err := s.staff.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "audits apply to teachers only")
	}
	return teacher, nil
}

func (s *VerificationService) save(ctx context.Context, teacherID string, challenge *models.VerificationChallenge) error {
	if err := s.staff.SaveChallenge(ctx, teacherID, challenge); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Internal(err, "failed to save challenge")
	}
	return nil
}

