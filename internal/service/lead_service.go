package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/phone"
)

const (
	assigneeUnassigned = "unassigned"
	assigneeUnknown    = "unknown"
)

type leadIntakeStore interface {
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error)
	Create(ctx context.Context, lead *models.Lead) error
	InsertIfAbsent(ctx context.Context, leads []models.Lead) (int, error)
	DeleteMany(ctx context.Context, ids []string) (int, error)
}

type staffLister interface {
	ListAll(ctx context.Context) ([]models.Staff, error)
}

// LeadServiceConfig tunes import normalisation.
type LeadServiceConfig struct {
	DefaultDepartment models.Department
	ImportNamespace   uuid.UUID
	PhoneRegion       string
	PhoneLength       int
}

// LeadService handles lead intake, purge and the board view.
type LeadService struct {
	leads     leadIntakeStore
	staff     staffLister
	validator *validator.Validate
	recorder  *ActivityRecorder
	logger    *zap.Logger
	cfg       LeadServiceConfig
	now       func() time.Time
}

// NewLeadService constructs the service.
func NewLeadService(leads leadIntakeStore, staff staffLister, validate *validator.Validate, recorder *ActivityRecorder, logger *zap.Logger, cfg LeadServiceConfig) *LeadService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.DefaultDepartment.Valid() {
		cfg.DefaultDepartment = models.DepartmentComputerTechnology
	}
	if cfg.ImportNamespace == uuid.Nil {
		cfg.ImportNamespace = uuid.NameSpaceOID
	}
	return &LeadService{leads: leads, staff: staff, validator: validate, recorder: recorder, logger: logger, cfg: cfg, now: time.Now}
}

// StableLeadID returns the row id when present, otherwise a name-based UUID of source and phone.
func StableLeadID(namespace uuid.UUID, rowID, sourceFile, digits string) string {
	if id := strings.TrimSpace(rowID); id != "" {
		return id
	}
	return uuid.NewSHA1(namespace, []byte(strings.TrimSpace(sourceFile)+"|"+digits)).String()
}

// Import normalises rows and inserts the ones not already present. Existing leads are untouched.
func (s *LeadService) Import(ctx context.Context, actor models.Actor, req dto.ImportLeadsRequest) (*dto.ImportLeadsResult, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can import leads")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid import payload")
	}

	result := &dto.ImportLeadsResult{Received: len(req.Rows), Rejected: []dto.RejectedRow{}}
	now := s.now().UTC()
	seen := make(map[string]struct{}, len(req.Rows))
	batch := make([]models.Lead, 0, len(req.Rows))
	for i, row := range req.Rows {
		digits, ok := phone.Normalize(row.Phone, s.cfg.PhoneRegion, s.cfg.PhoneLength)
		if digits == "" {
			result.Rejected = append(result.Rejected, dto.RejectedRow{Index: i, Reason: "phone is empty"})
			continue
		}
		if !ok {
			result.Rejected = append(result.Rejected, dto.RejectedRow{Index: i, Reason: fmt.Sprintf("phone must have %d digits", s.cfg.PhoneLength)})
			continue
		}
		id := StableLeadID(s.cfg.ImportNamespace, row.ID, row.SourceFile, digits)
		if _, dup := seen[id]; dup {
			result.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		batch = append(batch, models.Lead{
			ID:         id,
			Name:       strings.ToUpper(strings.TrimSpace(row.Name)),
			Phone:      digits,
			Source:     strings.TrimSpace(row.SourceFile),
			Department: s.cfg.DefaultDepartment,
			Stage:      models.StageUnassigned,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	result.Accepted = len(batch)
	if len(batch) == 0 {
		return result, nil
	}

	inserted, err := s.leads.InsertIfAbsent(ctx, batch)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to import leads")
	}
	result.Inserted = inserted
	result.Duplicates += len(batch) - inserted

	s.recorder.Record(ctx, actor, models.ActionLeadsImported,
		fmt.Sprintf("%d received, %d inserted, %d duplicates, %d rejected", result.Received, inserted, result.Duplicates, len(result.Rejected)))
	if inserted > 0 {
		s.recorder.Changed(ctx, changefeed.CollectionLeads)
	}
	return result, nil
}

// Create adds one lead by hand.
func (s *LeadService) Create(ctx context.Context, actor models.Actor, req dto.CreateLeadRequest) (*models.Lead, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can add leads")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid lead payload")
	}
	digits, ok := phone.Normalize(req.Phone, s.cfg.PhoneRegion, s.cfg.PhoneLength)
	if digits == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phone must contain digits")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("phone must have %d digits", s.cfg.PhoneLength))
	}
	department := s.cfg.DefaultDepartment
	if dept, ok := models.ParseDepartment(req.Department); ok {
		department = dept
	}

	now := s.now().UTC()
	lead := &models.Lead{
		ID:         uuid.NewString(),
		Name:       strings.ToUpper(strings.TrimSpace(req.Name)),
		Phone:      digits,
		Source:     strings.TrimSpace(req.Source),
		Department: department,
		Stage:      models.StageUnassigned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if lead.Source == "" {
		lead.Source = "manual"
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, appErrors.Internal(err, "failed to create lead")
	}
	s.recorder.Record(ctx, actor, models.ActionLeadCreated, lead.Name)
	s.recorder.Changed(ctx, changefeed.CollectionLeads)
	return lead, nil
}

// Purge deletes leads by id.
func (s *LeadService) Purge(ctx context.Context, actor models.Actor, req dto.PurgeLeadsRequest) (*dto.PurgeLeadsResult, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can purge leads")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid purge payload")
	}
	deleted, err := s.leads.DeleteMany(ctx, compactIDs(req.LeadIDs))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to purge leads")
	}
	s.recorder.Record(ctx, actor, models.ActionLeadsPurged, fmt.Sprintf("%d leads deleted", deleted))
	if deleted > 0 {
		s.recorder.Changed(ctx, changefeed.CollectionLeads)
	}
	return &dto.PurgeLeadsResult{Deleted: deleted}, nil
}

// Board lists leads visible to actor joined with assignee names.
func (s *LeadService) Board(ctx context.Context, actor models.Actor, filter models.LeadFilter) ([]dto.BoardLead, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleDepartmentHead:
		id := actor.ID
		filter.AssignedHeadID = &id
	case models.RoleTeacher:
		id := actor.ID
		filter.AssignedTeacherID = &id
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	leads, total, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list leads")
	}
	staff, err := s.staff.ListAll(ctx)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load staff")
	}
	names := make(map[string]string, len(staff))
	for _, member := range staff {
		names[member.ID] = member.Name
	}

	board := make([]dto.BoardLead, len(leads))
	for i, lead := range leads {
		board[i] = dto.BoardLead{
			Lead:        lead,
			HeadName:    assigneeName(names, lead.AssignedHeadID),
			TeacherName: assigneeName(names, lead.AssignedTeacherID),
		}
	}
	return board, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func assigneeName(names map[string]string, id *string) string {
	if id == nil || *id == "" {
		return assigneeUnassigned
	}
	if name, ok := names[*id]; ok {
		return name
	}
	return assigneeUnknown
}
