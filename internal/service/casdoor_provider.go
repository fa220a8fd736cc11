package service

import (
	"context"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

// casdoorClient is the subset of *casdoorsdk.Client the provider relies on.
type casdoorClient interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
	UpdateUserForColumns(user *casdoorsdk.User, columns []string) (bool, error)
}

// CasdoorIdentityProvider delegates identity to a Casdoor deployment. The role lives in the
// casdoor user "type" column.
type CasdoorIdentityProvider struct {
	client casdoorClient
}

// NewCasdoorIdentityProvider builds a provider from configuration.
func NewCasdoorIdentityProvider(cfg config.CasdoorConfig) *CasdoorIdentityProvider {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorIdentityProvider{client: client}
}

// VerifyToken parses the casdoor-signed token locally against the configured certificate.
func (p *CasdoorIdentityProvider) VerifyToken(_ context.Context, token string) (*models.Identity, error) {
	claims, err := p.client.ParseJwtToken(token)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "expired") {
			return nil, appErrors.Clone(appErrors.ErrExpiredCredential, "access token expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidCredential.Code, appErrors.ErrInvalidCredential.Status, "invalid access token")
	}
	if claims == nil || claims.User.Id == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "invalid access token")
	}
	if claims.User.IsForbidden || claims.User.IsDeleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential revoked")
	}

	return &models.Identity{
		ID:            claims.User.Id,
		Email:         claims.User.Email,
		Role:          casdoorRole(&claims.User),
		EmailVerified: claims.User.EmailVerified,
	}, nil
}

// SetRoleClaims writes role into the casdoor user type.
func (p *CasdoorIdentityProvider) SetRoleClaims(_ context.Context, uid string, role models.Role) error {
	user, err := p.client.GetUserByUserId(uid)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, "failed to load casdoor user")
	}
	if user == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}

	user.Type = string(role)
	ok, err := p.client.UpdateUserForColumns(user, []string{"type"})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, "failed to update casdoor user")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrProviderUnavailable, "casdoor rejected the role update")
	}
	return nil
}

func casdoorRole(user *casdoorsdk.User) models.Role {
	if user.IsAdmin {
		return models.RoleAdmin
	}
	switch strings.ToLower(strings.TrimSpace(user.Type)) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "coach", "teacher", "instructor":
		return models.RoleCoach
	case "parent", "guardian":
		return models.RoleParent
	default:
		return models.RoleStudent
	}
}
