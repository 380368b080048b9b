package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
)

type fakeStaff struct {
	filter   models.StaffFilter
	reviewed string
	revoked  string
	err      error
}

func (f *fakeStaff) Register(_ context.Context, req dto.RegisterStaffRequest) (*models.Staff, error) {
	return &models.Staff{ID: "s1", Email: req.Email, ApprovalStatus: models.ApprovalPending}, f.err
}

func (f *fakeStaff) Create(_ context.Context, _ models.Actor, req dto.CreateStaffRequest) (*models.Staff, error) {
	return &models.Staff{ID: "s2", Email: req.Email}, f.err
}

func (f *fakeStaff) Approve(_ context.Context, _ models.Actor, id string) (*models.Staff, error) {
	f.reviewed = "approve:" + id
	return &models.Staff{ID: id, ApprovalStatus: models.ApprovalApproved}, nil
}

func (f *fakeStaff) Reject(_ context.Context, _ models.Actor, id string) (*models.Staff, error) {
	f.reviewed = "reject:" + id
	return &models.Staff{ID: id, ApprovalStatus: models.ApprovalRejected}, nil
}

func (f *fakeStaff) Revoke(_ context.Context, _ models.Actor, id string) error {
	f.revoked = id
	return f.err
}

func (f *fakeStaff) List(_ context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	f.filter = filter
	return []models.Staff{}, &models.Pagination{Page: 1, PageSize: 50}, nil
}

func TestStaffRegisterCreated(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/staff/register", dto.RegisterStaffRequest{Name: "T", Email: "t@example.edu", Password: "longenough", Role: "TEACHER", Department: "Civil Engineering"})
	NewStaffHandler(&fakeStaff{}).Register(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestStaffRegisterConflict(t *testing.T) {
	svc := &fakeStaff{err: appErrors.Clone(appErrors.ErrConflict, "email already registered")}
	c, rec := newContext(http.MethodPost, "/staff/register", dto.RegisterStaffRequest{Email: "t@example.edu"})
	NewStaffHandler(svc).Register(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStaffListFilter(t *testing.T) {
	svc := &fakeStaff{}
	c, rec := newContext(http.MethodGet, "/staff?role=teacher&department=Civil%20Engineering&status=pending", nil)
	withClaims(c, "admin-1", models.RoleAdmin, nil)

	NewStaffHandler(svc).List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.Role)
	assert.Equal(t, models.RoleTeacher, *svc.filter.Role)
	require.NotNil(t, svc.filter.ApprovalStatus)
	assert.Equal(t, models.ApprovalPending, *svc.filter.ApprovalStatus)
	require.NotNil(t, svc.filter.Department)
	assert.Equal(t, models.DepartmentCivil, *svc.filter.Department)
}

func TestStaffListRejectsUnknownRole(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/staff?role=janitor", nil)
	withClaims(c, "admin-1", models.RoleAdmin, nil)
	NewStaffHandler(&fakeStaff{}).List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaffReviewAndRevoke(t *testing.T) {
	svc := &fakeStaff{}
	h := NewStaffHandler(svc)

	c, rec := newContext(http.MethodPost, "/staff/s9/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "s9"}}
	withClaims(c, "admin-1", models.RoleAdmin, nil)
	h.Approve(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approve:s9", svc.reviewed)

	c, _ = newContext(http.MethodPost, "/staff/s9/reject", nil)
	c.Params = gin.Params{{Key: "id", Value: "s9"}}
	withClaims(c, "admin-1", models.RoleAdmin, nil)
	h.Reject(c)
	assert.Equal(t, "reject:s9", svc.reviewed)

	c, _ = newContext(http.MethodDelete, "/staff/s9", nil)
	c.Params = gin.Params{{Key: "id", Value: "s9"}}
	withClaims(c, "admin-1", models.RoleAdmin, nil)
	h.Revoke(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "s9", svc.revoked)
}

func TestStaffRevokeInternalError(t *testing.T) {
	svc := &fakeStaff{err: errors.New("db down")}
	c, rec := newContext(http.MethodDelete, "/staff/s9", nil)
	c.Params = gin.Params{{Key: "id", Value: "s9"}}
	withClaims(c, "admin-1", models.RoleAdmin, nil)

	NewStaffHandler(svc).Revoke(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
