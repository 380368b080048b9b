package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
)

type classificationLeadStore interface {
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	Upsert(ctx context.Context, id string, patch models.LeadPatch) (int, error)
}

type sessionRegistry interface {
	Current(actorID string) (dto.CallSessionView, bool)
	Teardown(actorID string)
}

// ClassificationService applies call outcomes to leads through the stage table.
type ClassificationService struct {
	leads       classificationLeadStore
	sessions    sessionRegistry
	validator   *validator.Validate
	recorder    *ActivityRecorder
	metrics     *MetricsService
	logger      *zap.Logger
	minDuration time.Duration
	now         func() time.Time
}

// NewClassificationService constructs the service.
func NewClassificationService(leads classificationLeadStore, sessions sessionRegistry, validate *validator.Validate, recorder *ActivityRecorder, metrics *MetricsService, logger *zap.Logger, minDuration time.Duration) *ClassificationService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if minDuration <= 0 {
		minDuration = 20 * time.Second
	}
	return &ClassificationService{
		leads:       leads,
		sessions:    sessions,
		validator:   validate,
		recorder:    recorder,
		metrics:     metrics,
		logger:      logger,
		minDuration: minDuration,
		now:         time.Now,
	}
}

// Classify records the response for the lead under actor's call session.
func (s *ClassificationService) Classify(ctx context.Context, actor models.Actor, leadID string, req dto.ClassifyRequest) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid classification payload")
	}
	response := models.LeadResponse(req.Response)
	stage, _ := models.StageForResponse(response)

	var department *models.Department
	if response == models.ResponseInterested {
		dept, ok := models.ParseDepartment(req.Department)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department is required for Interested")
		}
		department = &dept
	}

	lead, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Internal(err, "failed to load lead")
	}
	if !canWorkLead(actor, lead) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lead is not assigned to you")
	}

	session, ok := s.sessions.Current(actor.ID)
	if !ok || session.LeadID != lead.ID {
		return nil, appErrors.ErrNoActiveCall
	}
	if time.Duration(session.ElapsedSeconds)*time.Second < s.minDuration {
		return nil, appErrors.Clone(appErrors.ErrCallTooShort,
			fmt.Sprintf("call lasted %ds, at least %ds required", session.ElapsedSeconds, int(s.minDuration/time.Second)))
	}

	verified := true
	at := s.now().UTC()
	duration := session.ElapsedSeconds
	patch := models.LeadPatch{
		Stage:         &stage,
		Response:      &response,
		CallVerified:  &verified,
		CallTimestamp: &at,
		CallDuration:  &duration,
		Department:    department,
	}
	if _, err := s.leads.Upsert(ctx, lead.ID, patch); err != nil {
		return nil, appErrors.Internal(err, "failed to classify lead")
	}
	s.sessions.Teardown(actor.ID)

	lead.Stage = stage
	lead.Response = &response
	lead.CallVerified = true
	lead.CallTimestamp = &at
	lead.CallDuration = duration
	if department != nil {
		lead.Department = *department
	}
	lead.UpdatedAt = at

	s.metrics.RecordClassification(stage)
	s.recorder.Record(ctx, actor, models.ActionLeadClassified, fmt.Sprintf("%s: %s -> %s", lead.Name, response, stage))
	s.recorder.Changed(ctx, changefeed.CollectionLeads)
	return lead, nil
}
