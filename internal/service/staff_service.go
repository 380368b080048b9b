package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
)

type staffDirectoryRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Staff, error)
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error)
	Create(ctx context.Context, staff *models.Staff) error
	Update(ctx context.Context, id string, patch models.StaffPatch) error
	Delete(ctx context.Context, id string) error
}

// StaffService manages the staff directory and registration approvals.
type StaffService struct {
	repo      staffDirectoryRepository
	validator *validator.Validate
	recorder  *ActivityRecorder
	logger    *zap.Logger
	now       func() time.Time
	hashCost  int
}

// NewStaffService constructs the service.
func NewStaffService(repo staffDirectoryRepository, validate *validator.Validate, recorder *ActivityRecorder, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = dto.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, validator: validate, recorder: recorder, logger: logger, now: time.Now, hashCost: bcrypt.DefaultCost}
}

// Register records a self-registration in PENDING state.
func (s *StaffService) Register(ctx context.Context, req dto.RegisterStaffRequest) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid registration payload")
	}
	staff, err := s.build(ctx, req.Name, req.Email, req.Password, models.StaffRole(req.Role), req.Department)
	if err != nil {
		return nil, err
	}
	staff.ApprovalStatus = models.ApprovalPending

	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, appErrors.Internal(err, "failed to register staff")
	}
	s.recorder.Record(ctx, models.ActorFromStaff(staff), models.ActionStaffRegistered, fmt.Sprintf("%s registered as %s", staff.Email, staff.Role))
	s.recorder.Changed(ctx, changefeed.CollectionStaff)
	return staff, nil
}

// Create adds a pre-approved account on behalf of an administrator.
func (s *StaffService) Create(ctx context.Context, actor models.Actor, req dto.CreateStaffRequest) (*models.Staff, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can create staff")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid staff payload")
	}
	role := models.StaffRole(req.Role)
	if role.Central() && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can create administrators")
	}
	staff, err := s.build(ctx, req.Name, req.Email, req.Password, role, req.Department)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	approver := actor.ID
	staff.ApprovalStatus = models.ApprovalApproved
	staff.ApprovedBy = &approver
	staff.ApprovedAt = &now

	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, appErrors.Internal(err, "failed to create staff")
	}
	s.recorder.Record(ctx, actor, models.ActionStaffCreated, fmt.Sprintf("%s as %s", staff.Email, staff.Role))
	s.recorder.Changed(ctx, changefeed.CollectionStaff)
	return staff, nil
}

// Approve admits a pending or rejected registration into the pools.
func (s *StaffService) Approve(ctx context.Context, actor models.Actor, id string) (*models.Staff, error) {
	return s.review(ctx, actor, id, models.ApprovalApproved, models.ActionStaffApproved)
}

// Reject declines a registration.
func (s *StaffService) Reject(ctx context.Context, actor models.Actor, id string) (*models.Staff, error) {
	return s.review(ctx, actor, id, models.ApprovalRejected, models.ActionStaffRejected)
}

// Revoke deletes a staff account. Leads still referencing it render as unknown.
func (s *StaffService) Revoke(ctx context.Context, actor models.Actor, id string) error {
	if !actor.Admin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can revoke staff")
	}
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrValidation, "cannot revoke your own account")
	}
	target, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can revoke a superadmin")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return appErrors.Internal(err, "failed to revoke staff")
	}
	s.recorder.Record(ctx, actor, models.ActionStaffRevoked, target.Email)
	s.recorder.Changed(ctx, changefeed.CollectionStaff)
	return nil
}

// List returns a filtered page of the directory.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list staff")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *StaffService) review(ctx context.Context, actor models.Actor, id string, status models.ApprovalStatus, action string) (*models.Staff, error) {
	if !actor.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can review registrations")
	}
	target, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.ApprovalStatus == status {
		return target, nil
	}

	now := s.now().UTC()
	reviewer := actor.ID
	patch := models.StaffPatch{ApprovalStatus: &status, ApprovedBy: &reviewer, ApprovedAt: &now}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Internal(err, "failed to update approval")
	}
	target.ApprovalStatus = status
	target.ApprovedBy = &reviewer
	target.ApprovedAt = &now
	target.UpdatedAt = now

	s.recorder.Record(ctx, actor, action, target.Email)
	s.recorder.Changed(ctx, changefeed.CollectionStaff)
	return target, nil
}

func (s *StaffService) find(ctx context.Context, id string) (*models.Staff, error) {
	staff, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Internal(err, "failed to load staff")
	}
	return staff, nil
}

// build validates the role/department pairing, checks email uniqueness and hashes the password.
func (s *StaffService) build(ctx context.Context, name, email, password string, role models.StaffRole, rawDept string) (*models.Staff, error) {
	var department *models.Department
	if role.Central() {
		if strings.TrimSpace(rawDept) != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "administrators do not belong to a department")
		}
	} else {
		dept, ok := models.ParseDepartment(rawDept)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department is required for department heads and teachers")
		}
		department = &dept
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	now := s.now().UTC()
	return &models.Staff{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Department:   department,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
