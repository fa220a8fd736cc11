package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type tokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

// AuthService provides the local sign-in flow and session introspection.
type AuthService struct {
	repo      authUserRepository
	issuer    tokenIssuer
	audit     auditRecorder
	paths     GuardPaths
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService. issuer is nil when an external provider owns
// sign-in, in which case Login is refused.
func NewAuthService(repo authUserRepository, issuer tokenIssuer, audit auditRecorder, paths GuardPaths, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, issuer: issuer, audit: audit, paths: paths, validator: validate, logger: logger, now: time.Now}
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if s.issuer == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "sign in through the configured identity provider")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if user.Disabled {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "invalid email or password")
	}
	if !user.EmailVerified {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "email address is not verified")
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	if s.audit != nil {
		if err := s.audit.Create(ctx, &models.AuditLog{
			UserID:     &user.ID,
			Action:     models.AuditActionLogin,
			Resource:   "auth",
			ResourceID: &user.ID,
			NewValues:  []byte(`{"status":"success"}`),
			IPAddress:  req.IP,
			UserAgent:  req.UserAgent,
			CreatedAt:  now,
		}); err != nil {
			s.logger.Warn("failed to record login audit log", zap.Error(err))
		}
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(expiresAt.Sub(now).Seconds()),
		IssuedAt:    now,
		Landing:     s.paths.Landing(user.Identity()),
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
	}, nil
}

// Session reports the caller's authentication state for client route guards.
func (s *AuthService) Session(identity *models.Identity) models.SessionState {
	if identity == nil {
		return models.SessionState{Landing: s.paths.Login}
	}
	return models.SessionState{
		Authenticated: true,
		UserID:        identity.ID,
		Role:          identity.Role,
		Landing:       s.paths.Landing(identity),
	}
}
