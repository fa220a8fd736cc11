package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

// IdentityProvider is the external identity service. Implementations return typed
// *appErrors.Error values: InvalidCredential, ExpiredCredential or ProviderUnavailable.
type IdentityProvider interface {
	VerifyToken(ctx context.Context, token string) (*models.Identity, error)
	SetRoleClaims(ctx context.Context, uid string, role models.Role) error
}

// ExtractBearer pulls the token out of an Authorization header value.
// It reports false when the header is absent; a present but malformed header yields ("", true).
func ExtractBearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}

// CredentialValidator verifies bearer credentials and extracts the caller identity.
type CredentialValidator struct {
	provider IdentityProvider
	logger   *zap.Logger
}

// NewCredentialValidator wraps an identity provider.
func NewCredentialValidator(provider IdentityProvider, logger *zap.Logger) *CredentialValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialValidator{provider: provider, logger: logger}
}

// Validate returns the identity behind token. Failures are always *appErrors.Error with one of
// the InvalidCredential, ExpiredCredential or ProviderUnavailable codes.
func (v *CredentialValidator) Validate(ctx context.Context, token string) (*models.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "malformed bearer credential")
	}

	identity, err := v.provider.VerifyToken(ctx, token)
	if err != nil {
		return nil, v.classify(err)
	}
	if identity == nil || identity.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential carries no subject")
	}
	if !identity.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential carries an unknown role")
	}
	return identity, nil
}

func (v *CredentialValidator) classify(err error) error {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrInvalidCredential.Code, appErrors.ErrExpiredCredential.Code:
		return appErr
	case appErrors.ErrProviderUnavailable.Code:
		v.logger.Warn("identity provider unavailable", zap.Error(err))
		return appErr
	default:
		v.logger.Error("identity provider failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, appErrors.ErrProviderUnavailable.Message)
	}
}
