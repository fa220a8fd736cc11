package service

import (
	"context"
	"errors"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

type stubProvider struct {
	identity *models.Identity
	err      error
	roles    map[string]models.Role
	roleErr  error
	tokens   []string
}

func (s *stubProvider) VerifyToken(_ context.Context, token string) (*models.Identity, error) {
	s.tokens = append(s.tokens, token)
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

func (s *stubProvider) SetRoleClaims(_ context.Context, uid string, role models.Role) error {
	if s.roleErr != nil {
		return s.roleErr
	}
	if s.roles == nil {
		s.roles = make(map[string]models.Role)
	}
	s.roles[uid] = role
	return nil
}

func TestExtractBearer(t *testing.T) {
	token, present := ExtractBearer("Bearer abc.def")
	assert.True(t, present)
	assert.Equal(t, "abc.def", token)

	token, present = ExtractBearer("bearer   xyz ")
	assert.True(t, present)
	assert.Equal(t, "xyz", token)

	_, present = ExtractBearer("")
	assert.False(t, present)

	token, present = ExtractBearer("Basic dXNlcjpwYXNz")
	assert.True(t, present)
	assert.Empty(t, token)

	token, present = ExtractBearer("Bearer")
	assert.True(t, present)
	assert.Empty(t, token)
}

func TestCredentialValidatorValidate(t *testing.T) {
	provider := &stubProvider{identity: &models.Identity{ID: "u1", Role: models.RoleParent}}
	v := NewCredentialValidator(provider, zap.NewNop())

	identity, err := v.Validate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, []string{"token"}, provider.tokens)
}

func TestCredentialValidatorEmptyToken(t *testing.T) {
	provider := &stubProvider{}
	v := NewCredentialValidator(provider, nil)

	_, err := v.Validate(context.Background(), "  ")
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))
	assert.Empty(t, provider.tokens)
}

func TestCredentialValidatorRejectsUnknownRoleOrSubject(t *testing.T) {
	v := NewCredentialValidator(&stubProvider{identity: &models.Identity{ID: "u1", Role: "superuser"}}, nil)
	_, err := v.Validate(context.Background(), "token")
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))

	v = NewCredentialValidator(&stubProvider{identity: &models.Identity{Role: models.RoleAdmin}}, nil)
	_, err = v.Validate(context.Background(), "token")
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))
}

func TestCredentialValidatorClassifiesProviderErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"expired":     {err: appErrors.Clone(appErrors.ErrExpiredCredential, "expired"), want: appErrors.ErrExpiredCredential.Code},
		"invalid":     {err: appErrors.ErrInvalidCredential, want: appErrors.ErrInvalidCredential.Code},
		"unavailable": {err: appErrors.ErrProviderUnavailable, want: appErrors.ErrProviderUnavailable.Code},
		"untyped":     {err: errors.New("dial tcp: timeout"), want: appErrors.ErrProviderUnavailable.Code},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := NewCredentialValidator(&stubProvider{err: tc.err}, zap.NewNop())
			_, err := v.Validate(context.Background(), "token")
			require.Error(t, err)
			assert.Equal(t, tc.want, codeOf(err))
		})
	}
}

type stubCasdoorClient struct {
	claims    *casdoorsdk.Claims
	parseErr  error
	user      *casdoorsdk.User
	getErr    error
	updated   *casdoorsdk.User
	columns   []string
	updateOK  bool
	updateErr error
}

func (s *stubCasdoorClient) ParseJwtToken(string) (*casdoorsdk.Claims, error) {
	return s.claims, s.parseErr
}

func (s *stubCasdoorClient) GetUserByUserId(string) (*casdoorsdk.User, error) {
	return s.user, s.getErr
}

func (s *stubCasdoorClient) UpdateUserForColumns(user *casdoorsdk.User, columns []string) (bool, error) {
	s.updated = user
	s.columns = columns
	return s.updateOK, s.updateErr
}

func TestCasdoorProviderVerifyToken(t *testing.T) {
	client := &stubCasdoorClient{claims: &casdoorsdk.Claims{User: casdoorsdk.User{
		Id: "cd-1", Email: "coach@example.com", Type: "Teacher", EmailVerified: true,
	}}}
	p := &CasdoorIdentityProvider{client: client}

	identity, err := p.VerifyToken(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, &models.Identity{ID: "cd-1", Email: "coach@example.com", Role: models.RoleCoach, EmailVerified: true}, identity)

	client.claims.User.IsForbidden = true
	_, err = p.VerifyToken(context.Background(), "token")
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))

	client.parseErr = errors.New("token is expired")
	_, err = p.VerifyToken(context.Background(), "token")
	assert.Equal(t, appErrors.ErrExpiredCredential.Code, codeOf(err))

	client.parseErr = errors.New("signature is invalid")
	_, err = p.VerifyToken(context.Background(), "token")
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, codeOf(err))
}

func TestCasdoorProviderSetRoleClaims(t *testing.T) {
	client := &stubCasdoorClient{user: &casdoorsdk.User{Id: "cd-1", Type: "normal-user"}, updateOK: true}
	p := &CasdoorIdentityProvider{client: client}

	require.NoError(t, p.SetRoleClaims(context.Background(), "cd-1", models.RoleParent))
	assert.Equal(t, "parent", client.updated.Type)
	assert.Equal(t, []string{"type"}, client.columns)

	client.updateOK = false
	err := p.SetRoleClaims(context.Background(), "cd-1", models.RoleParent)
	assert.Equal(t, appErrors.ErrProviderUnavailable.Code, codeOf(err))

	client.user = nil
	err = p.SetRoleClaims(context.Background(), "cd-1", models.RoleParent)
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))
}

func TestCasdoorRoleMapping(t *testing.T) {
	assert.Equal(t, models.RoleAdmin, casdoorRole(&casdoorsdk.User{IsAdmin: true, Type: "student"}))
	assert.Equal(t, models.RoleAdmin, casdoorRole(&casdoorsdk.User{Type: "Administrator"}))
	assert.Equal(t, models.RoleParent, casdoorRole(&casdoorsdk.User{Type: "guardian"}))
	assert.Equal(t, models.RoleStudent, casdoorRole(&casdoorsdk.User{Type: "normal-user"}))
}
