package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-api/internal/config"
	"github.com/spec-kit/helpdesk-api/internal/domain"
	"github.com/spec-kit/helpdesk-api/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-api/pkg/util/errorutil"
)

func newAuthService() *AuthService {
	store := memory.NewStore()
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, store.Repositories().Users)
}

func TestSignupAndLogin(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Name: "Ada", Email: " Ada@Example.com ", Password: "secret1", Role: "Agent"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, domain.RoleAgent, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	result, err := svc.Login(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)

	claims, err := svc.TokenManager().ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{UserID: user.ID, Role: domain.RoleAgent}, claims.Principal())
}

func TestSignupDefaultsRoleAndRejectsDuplicates(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)

	_, err = svc.Signup(ctx, SignupInput{Name: "Bob", Email: "BOB@example.com", Password: "secret1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestSignupValidation(t *testing.T) {
	svc := newAuthService()

	_, err := svc.Signup(context.Background(), SignupInput{Email: "nope", Password: "x", Role: "root"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "role")
}

func TestLoginFailures(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	_, err := svc.Signup(ctx, SignupInput{Name: "Cy", Email: "cy@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = svc.Login(ctx, "cy@example.com", "wrong-pass")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = svc.Login(ctx, "ghost@example.com", "secret1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}
