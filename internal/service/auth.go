// Package service holds account logic shared by the HTTP handlers and the
// seed command: login, registration, role changes and token revocation.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/governance/audit"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/repository"
)

// DefaultMinPasswordLength applies when AuthConfig leaves it unset.
const DefaultMinPasswordLength = 6

// AccountStore is the profile persistence the auth service needs.
type AccountStore interface {
	GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateProfile(ctx context.Context, p repository.CreateProfileParams) (*domain.Profile, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.Profile, error)
}

// AuthConfig configures hashing, token issue and self-registration.
type AuthConfig struct {
	JWT               middleware.JWTConfig
	BcryptCost        int
	MinPasswordLength int
	// OpenRegistrationRole is the only role an anonymous caller may register
	// with. Other roles need an actor holding manage_users.
	OpenRegistrationRole domain.Role
}

// AuthService authenticates accounts and issues tokens.
type AuthService struct {
	store AccountStore
	cfg   AuthConfig
	audit *audit.Logger

	// dummyHash is compared against when the email is unknown so that both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

// NewAuthService creates the service. auditLogger may be nil.
func NewAuthService(store AccountStore, cfg AuthConfig, auditLogger *audit.Logger) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if cfg.OpenRegistrationRole == "" {
		cfg.OpenRegistrationRole = domain.RoleOperator
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)
	if err != nil {
		dummy = nil
	}
	return &AuthService{store: store, cfg: cfg, audit: auditLogger, dummyHash: dummy}
}

// LoginResult is the body of a successful login or registration.
type LoginResult struct {
	Message   string             `json:"message"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      domain.UserSummary `json:"user"`
}

func errInvalidCredentials() *apperrors.AppError {
	return apperrors.Unauthorized(apperrors.CodeInvalidCredentials, "invalid email or password")
}

// IsBcryptHash reports whether a stored credential is a bcrypt hash rather
// than a legacy plaintext password.
func IsBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords fail identically. A correct legacy plaintext password is
// re-hashed and stored; if that write fails the login still succeeds.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "email and password are required")
	}

	profile, err := s.store.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if s.dummyHash != nil {
				_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			}
			logger.Warn("login failed: invalid credentials")
			return nil, errInvalidCredentials()
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "An internal error occurred", http.StatusInternalServerError)
	}

	migrated := false
	if IsBcryptHash(profile.PasswordHash) {
		if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
			logger.Warn("login failed: invalid credentials", zap.String("user_id", profile.ID))
			return nil, errInvalidCredentials()
		}
	} else {
		if profile.PasswordHash == "" ||
			subtle.ConstantTimeCompare([]byte(profile.PasswordHash), []byte(password)) != 1 {
			logger.Warn("login failed: invalid credentials", zap.String("user_id", profile.ID))
			return nil, errInvalidCredentials()
		}
		migrated = s.migratePassword(ctx, profile, password)
	}

	result, err := s.issue(profile, "Login successful")
	if err != nil {
		return nil, err
	}

	logger.Info("user logged in",
		zap.String("user_id", profile.ID),
		zap.String("role", string(profile.Role)),
	)
	s.audit.LogLogin(ctx, profile.ID, profile.Email, migrated)
	return result, nil
}

func (s *AuthService) migratePassword(ctx context.Context, profile *domain.Profile, password string) bool {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		logger.Error("hash legacy password failed", zap.String("user_id", profile.ID), zap.Error(err))
		return false
	}
	if err := s.store.UpdatePassword(ctx, profile.ID, string(hash)); err != nil {
		logger.Error("persist migrated password failed", zap.String("user_id", profile.ID), zap.Error(err))
		return false
	}
	logger.Info("migrated legacy password to bcrypt", zap.String("user_id", profile.ID))
	return true
}

func (s *AuthService) issue(profile *domain.Profile, message string) (*LoginResult, error) {
	token, expiresAt, err := middleware.GenerateToken(s.cfg.JWT, profile.ID, profile.Email, string(profile.Role))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "An internal error occurred", http.StatusInternalServerError)
	}
	return &LoginResult{
		Message:   message,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      profile.Summary(),
	}, nil
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

// Register creates an account and logs it in. actor is the authenticated
// caller, or nil for self-registration.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, actor *middleware.Principal) (*LoginResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.Role) == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "email, password and role are required")
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < s.cfg.MinPasswordLength {
		return nil, apperrors.Validation("password",
			fmt.Sprintf("password must be at least %d characters long", s.cfg.MinPasswordLength))
	}
	if len(req.Password) > MaxPasswordBytes {
		return nil, apperrors.Validation("password",
			fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}

	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}
	if role != s.cfg.OpenRegistrationRole {
		if actor == nil {
			return nil, apperrors.Unauthorized(apperrors.CodeAuthRequired,
				"registering a "+string(role)+" account requires authentication")
		}
		if !domain.DefaultPermissions().Has(actor.Role, domain.PermManageUsers) {
			return nil, middleware.ErrMissingPermission(domain.PermManageUsers, actor.Role)
		}
	}

	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "An internal error occurred", http.StatusInternalServerError)
	}
	if exists {
		return nil, apperrors.Conflict(apperrors.CodeEmailRegistered, "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "An internal error occurred", http.StatusInternalServerError)
	}

	profile, err := s.store.CreateProfile(ctx, repository.CreateProfileParams{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if _, ok := repository.UniqueViolation(err); ok {
			return nil, apperrors.Conflict(apperrors.CodeEmailRegistered, "email already registered")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "An internal error occurred", http.StatusInternalServerError)
	}

	result, err := s.issue(profile, "Registration successful")
	if err != nil {
		return nil, err
	}

	logger.Info("user registered",
		zap.String("user_id", profile.ID),
		zap.String("role", string(role)),
		zap.String("actor", actorID),
	)
	s.audit.LogRegister(ctx, profile.ID, profile.Email, string(role), actorID)
	return result, nil
}

// ChangeRole sets a user's role. The change applies to the user's next
// request because Authenticate reloads the role from storage.
func (s *AuthService) ChangeRole(ctx context.Context, userID, rawRole, actorID string) (*domain.Profile, error) {
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "An internal error occurred", http.StatusInternalServerError)
	}
	if current.Role == role {
		return current, nil
	}

	updated, err := s.store.UpdateRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "An internal error occurred", http.StatusInternalServerError)
	}

	logger.Info("user role changed",
		zap.String("user_id", userID),
		zap.String("from", string(current.Role)),
		zap.String("to", string(role)),
		zap.String("actor", actorID),
	)
	s.audit.LogRoleChange(ctx, userID, string(current.Role), string(role), actorID)
	return updated, nil
}

// LoadPrincipal implements middleware.PrincipalLoader.
func (s *AuthService) LoadPrincipal(ctx context.Context, userID string) (*middleware.Principal, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, middleware.ErrPrincipalNotFound
		}
		if repository.InvalidTextRepresentation(err) {
			// A token subject that is not a UUID cannot name an account.
			return nil, middleware.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return &middleware.Principal{
		UserID:   profile.ID,
		Email:    profile.Email,
		FullName: profile.FullName,
		Role:     profile.Role,
	}, nil
}
