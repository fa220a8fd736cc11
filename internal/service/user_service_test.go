package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sportlearn-api/internal/models"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{}
	audit := &memAudit{}
	svc := NewUserService(repo, &stubProvider{}, audit, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), adminActor, CreateUserRequest{
		Email:    "Coach@Example.com",
		FullName: "Coach Carter",
		Role:     "coach",
		Password: "long-enough",
	})
	require.NoError(t, err)
	assert.Equal(t, "coach@example.com", user.Email)
	assert.Equal(t, models.RoleCoach, user.Role)
	assert.Empty(t, user.PasswordHash)

	stored := repo.users[user.ID]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("long-enough")))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionUserCreate, audit.logs[0].Action)

	_, err = svc.Create(context.Background(), adminActor, CreateUserRequest{
		Email: "coach@example.com", FullName: "Dup", Role: "coach", Password: "long-enough",
	})
	assert.Equal(t, appErrors.ErrConflict.Code, codeOf(err))

	_, err = svc.Create(context.Background(), adminActor, CreateUserRequest{
		Email: "x@example.com", FullName: "X", Role: "teacher", Password: "long-enough",
	})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
}

func TestUserServiceSetRole(t *testing.T) {
	provider := &stubProvider{}
	audit := &memAudit{}
	svc := NewUserService(&mockUserRepo{}, provider, audit, nil, nil)

	require.NoError(t, svc.SetRole(context.Background(), adminActor, "u9", models.SetRoleRequest{Role: "coach"}))
	assert.Equal(t, models.RoleCoach, provider.roles["u9"])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRoleChange, audit.logs[0].Action)
	assert.Equal(t, "u9", *audit.logs[0].ResourceID)
	assert.Equal(t, adminActor.ID, *audit.logs[0].UserID)

	err := svc.SetRole(context.Background(), adminActor, adminActor.ID, models.SetRoleRequest{Role: "student"})
	assert.Equal(t, appErrors.ErrConflict.Code, codeOf(err))

	err = svc.SetRole(context.Background(), adminActor, "u9", models.SetRoleRequest{Role: "owner"})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	provider.roleErr = appErrors.Wrap(errors.New("timeout"), appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, "down")
	err = svc.SetRole(context.Background(), adminActor, "u9", models.SetRoleRequest{Role: "parent"})
	assert.Equal(t, appErrors.ErrProviderUnavailable.Code, codeOf(err))
	assert.Len(t, audit.logs, 1)
}

func TestUserServiceListAndGet(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "a@example.com", PasswordHash: "hash", Role: models.RoleStudent},
	}}
	svc := NewUserService(repo, &stubProvider{}, nil, nil, nil)

	role := models.RoleStudent
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].PasswordHash)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, pagination)
	assert.Equal(t, &role, repo.listCalls[0].Role)

	user, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))
}
