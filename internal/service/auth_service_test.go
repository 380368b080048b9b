package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
)

func staffWithPassword(t *testing.T, id string, role models.StaffRole, status models.ApprovalStatus, password string) models.Staff {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	member := approvedStaff(id, role, models.DepartmentCivil)
	member.ApprovalStatus = status
	member.PasswordHash = string(hash)
	return member
}

func newAuthFixture(t *testing.T, members ...models.Staff) (*AuthService, *memLogStore) {
	t.Helper()
	recorder, logs, _ := newTestRecorder()
	svc := NewAuthService(newMemStaffStore(members...), nil, recorder, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "admission-leads-api",
	})
	return svc, logs
}

func TestAuthServiceLoginIssuesToken(t *testing.T) {
	member := staffWithPassword(t, "teacher-1", models.RoleTeacher, models.ApprovalApproved, "s3cret-pass")
	svc, logs := newAuthFixture(t, member)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: " teacher-1@example.edu ", Password: "s3cret-pass", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "teacher-1", resp.Staff.ID)
	assert.Equal(t, models.RoleTeacher, resp.Staff.Role)
	assert.Contains(t, logs.actions(), models.ActionLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, "admission-leads-api", claims.Issuer)
	require.NotNil(t, claims.Department)
	assert.Equal(t, models.DepartmentCivil, *claims.Actor().Department)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	pending := staffWithPassword(t, "pending-1", models.RoleTeacher, models.ApprovalPending, "s3cret-pass")
	rejected := staffWithPassword(t, "rejected-1", models.RoleTeacher, models.ApprovalRejected, "s3cret-pass")
	approved := staffWithPassword(t, "head-1", models.RoleDepartmentHead, models.ApprovalApproved, "s3cret-pass")
	svc, _ := newAuthFixture(t, pending, rejected, approved)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "head-1@example.edu", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "ghost@example.edu", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "pending-1@example.edu", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, appErrors.ErrAccountPending)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "rejected-1@example.edu", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	member := staffWithPassword(t, "admin-1", models.RoleAdmin, models.ApprovalApproved, "s3cret-pass")
	svc, _ := newAuthFixture(t, member)

	issued := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin-1@example.edu", Password: "s3cret-pass"})
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{UserID: "admin-1"})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	svc.now = func() time.Time { return issued }
	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceMeSurfacesRevokedAccount(t *testing.T) {
	member := staffWithPassword(t, "teacher-1", models.RoleTeacher, models.ApprovalApproved, "s3cret-pass")
	called := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	member.Challenge = &models.VerificationChallenge{Status: models.ChallengePending, LeadID: "lead-1", ActualDuration: 42, ActualTimestamp: &called}
	svc, _ := newAuthFixture(t, member)

	staff, err := svc.Me(context.Background(), models.Actor{ID: "teacher-1"})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1@example.edu", staff.Email)
	require.NotNil(t, staff.Challenge)
	assert.Equal(t, models.ChallengePending, staff.Challenge.Status)
	assert.Zero(t, staff.Challenge.ActualDuration)
	assert.Nil(t, staff.Challenge.ActualTimestamp)

	_, err = svc.Me(context.Background(), models.Actor{ID: "gone"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
