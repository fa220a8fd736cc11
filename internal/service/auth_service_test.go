package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	findErr   error
	lastLogin map[string]time.Time
	listCalls []models.UserFilter
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrDocumentNotFound
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, repository.ErrDocumentNotFound
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listCalls = append(m.listCalls, filter)
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func hashPassword(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newLoginFixture(t *testing.T) (*AuthService, *mockUserRepo, *memAudit, *JWTIdentityProvider) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"a1": {ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin, EmailVerified: true, PasswordHash: hashPassword(t, "secret-pass")},
		"s1": {ID: "s1", Email: "student@example.com", Role: models.RoleStudent, EmailVerified: true, PasswordHash: hashPassword(t, "secret-pass")},
		"s2": {ID: "s2", Email: "new@example.com", Role: models.RoleStudent, PasswordHash: hashPassword(t, "secret-pass")},
	}}
	provider := newTestJWTProvider(&stubIdentityUsers{users: repo.users}, time.Now())
	audit := &memAudit{}
	svc := NewAuthService(repo, provider, audit, testGuardPaths, nil, zap.NewNop())
	return svc, repo, audit, provider
}

func TestAuthServiceLogin(t *testing.T) {
	svc, repo, audit, provider := newLoginFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "secret-pass", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "/admin", resp.Landing)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.InDelta(t, time.Hour.Seconds(), float64(resp.ExpiresIn), 2)
	assert.Contains(t, repo.lastLogin, "a1")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLogin, audit.logs[0].Action)
	assert.Equal(t, "10.0.0.1", audit.logs[0].IPAddress)

	identity, err := provider.VerifyToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", identity.ID)

	resp, err = svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", resp.Landing)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, repo, _, _ := newLoginFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "secret-pass"})
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "new@example.com", Password: "secret-pass"})
	assert.Equal(t, appErrors.ErrForbidden.Code, codeOf(err))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	repo.users["s1"].Disabled = true
	_, err = svc.Login(ctx, models.LoginRequest{Email: "student@example.com", Password: "secret-pass"})
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))

	repo.findErr = errors.New("db down")
	_, err = svc.Login(ctx, models.LoginRequest{Email: "admin@example.com", Password: "secret-pass"})
	assert.Equal(t, appErrors.ErrInternal.Code, codeOf(err))
}

func TestAuthServiceLoginWithExternalProvider(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, nil, nil, testGuardPaths, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "x"})
	assert.Equal(t, appErrors.ErrForbidden.Code, codeOf(err))
}

func TestAuthServiceSession(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, nil, nil, testGuardPaths, nil, nil)

	assert.Equal(t, models.SessionState{Landing: "/login"}, svc.Session(nil))
	assert.Equal(t, models.SessionState{Authenticated: true, UserID: "c1", Role: models.RoleCoach, Landing: "/dashboard"},
		svc.Session(&models.Identity{ID: "c1", Role: models.RoleCoach}))
}
