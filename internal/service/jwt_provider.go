package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

type identityUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role, validAfter time.Time) error
}

// JWTIdentityProvider issues and verifies HS256 access tokens backed by the users collection.
type JWTIdentityProvider struct {
	secret []byte
	issuer string
	expiry time.Duration
	users  identityUserStore
	now    func() time.Time
}

// NewJWTIdentityProvider constructs the local identity provider.
func NewJWTIdentityProvider(cfg config.JWTConfig, users identityUserStore) *JWTIdentityProvider {
	expiry := cfg.Expiration
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &JWTIdentityProvider{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		expiry: expiry,
		users:  users,
		now:    time.Now,
	}
}

// Issue signs an access token for user.
func (p *JWTIdentityProvider) Issue(user *models.User) (string, time.Time, error) {
	now := p.now().UTC()
	expiresAt := now.Add(p.expiry)
	claims := models.TokenClaims{
		UserID:        user.ID,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken validates signature, expiry and revocation.
func (p *JWTIdentityProvider) VerifyToken(ctx context.Context, token string) (*models.Identity, error) {
	claims := &models.TokenClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrExpiredCredential, "access token expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidCredential.Code, appErrors.ErrInvalidCredential.Status, "invalid access token")
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "invalid access token")
	}

	user, err := p.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential subject no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, "failed to check credential revocation")
	}
	if user.Disabled {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential revoked")
	}
	// A role change inside the same second as issuance is invisible to iat.
	if claims.Role != user.Role {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential revoked")
	}
	if user.TokensValidAfter != nil && claims.IssuedAt != nil {
		// iat has second precision.
		if claims.IssuedAt.Time.Before(user.TokensValidAfter.Truncate(time.Second)) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential revoked")
		}
	}

	return &models.Identity{
		ID:            claims.UserID,
		Email:         claims.Email,
		Role:          claims.Role,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// SetRoleClaims changes the stored role and revokes every token issued before now, so the
// user's next request must re-authenticate to pick up the new role.
func (p *JWTIdentityProvider) SetRoleClaims(ctx context.Context, uid string, role models.Role) error {
	if err := p.users.UpdateRole(ctx, uid, role, p.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, "failed to update role claims")
	}
	return nil
}
