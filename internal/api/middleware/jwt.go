package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
)

var (
	// ErrTokenRevoked is returned for a token whose jti was revoked at logout.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrJWTSigningKeyMissing is returned when no key is configured.
	ErrJWTSigningKeyMissing = errors.New("jwt signing key is not configured")

	// ErrPrincipalNotFound is returned by a PrincipalLoader when the token's
	// user no longer exists.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrRevocationUnavailable wraps failures of the revocation store.
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
)

// DefaultTokenTTL is used when JWTConfig.ExpiresIn is not set.
const DefaultTokenTTL = 7 * 24 * time.Hour

// JWTClaims carries the identity the token was issued for. Role is advisory:
// Authenticate re-reads it from the database.
type JWTClaims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTConfig holds JWT signing configuration.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are accepted in addition to SigningKey, so tokens
	// signed before a key rotation stay valid until they expire.
	VerificationKeys  [][]byte
	Issuer            string
	Audience          string
	ExpiresIn         time.Duration
	RevocationChecker RevocationChecker
}

// GenerateToken creates a signed HS256 token for the given user.
func GenerateToken(cfg JWTConfig, userID, email, role string) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, ErrJWTSigningKeyMissing
	}
	ttl := cfg.ExpiresIn
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	jti, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	claims := JWTClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    cfg.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies signature, expiry, issuer and audience, then
// consults the revocation checker.
func (cfg JWTConfig) ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: %w", jwt.ErrTokenUnverifiable, ErrJWTSigningKeyMissing)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	keys := append([][]byte{cfg.SigningKey}, cfg.VerificationKeys...)
	var lastErr error
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, opts...)
		if err != nil {
			lastErr = err
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				continue
			}
			return nil, err
		}
		if !token.Valid {
			return nil, jwt.ErrTokenInvalidClaims
		}
		if err := cfg.checkRevoked(ctx, claims.ID); err != nil {
			return nil, err
		}
		return claims, nil
	}
	return nil, lastErr
}

func (cfg JWTConfig) checkRevoked(ctx context.Context, tokenID string) error {
	if cfg.RevocationChecker == nil || tokenID == "" {
		return nil
	}
	revoked, err := cfg.RevocationChecker.IsRevoked(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("check token revocation: %w: %w", ErrRevocationUnavailable, err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// Principal is the authoritative identity loaded from the database.
type Principal struct {
	UserID   string
	Email    string
	FullName string
	Role     domain.Role
}

// PrincipalLoader resolves a token subject to the stored account.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID string) (*Principal, error)
}

// Authenticate rejects requests without a valid Bearer token for an
// existing user.
func Authenticate(cfg JWTConfig, loader PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if appErr := authenticate(c, cfg, loader); appErr != nil {
			abortWithError(c, appErr)
			return
		}
		c.Next()
	}
}

// OptionalAuthenticate attaches an identity when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalAuthenticate(cfg JWTConfig, loader PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if appErr := authenticate(c, cfg, loader); appErr != nil {
				logger.Debug("ignoring invalid credentials on optional-auth route",
					zap.String("code", appErr.Code),
					zap.String("path", c.FullPath()),
				)
			}
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, cfg JWTConfig, loader PrincipalLoader) *apperrors.AppError {
	tokenString, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return apperrors.Unauthorized(apperrors.CodeAuthRequired, "authentication required")
	}

	claims, err := cfg.ValidateToken(c.Request.Context(), tokenString)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return apperrors.Unauthorized(apperrors.CodeTokenExpired, "token expired")
		case errors.Is(err, ErrTokenRevoked):
			return apperrors.Unauthorized(apperrors.CodeTokenRevoked, "token revoked")
		case errors.Is(err, ErrRevocationUnavailable):
			logger.Error("token revocation check failed", zap.Error(err))
			return apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "authentication temporarily unavailable", http.StatusServiceUnavailable)
		default:
			return apperrors.Unauthorized(apperrors.CodeTokenInvalid, "invalid token")
		}
	}

	principal, err := loader.LoadPrincipal(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return apperrors.Unauthorized(apperrors.CodeUserNotFound, "user no longer exists")
		}
		logger.Error("load principal failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return apperrors.Wrap(err, apperrors.CodeInternal, "an internal error occurred", http.StatusInternalServerError)
	}

	if claims.Role != "" && claims.Role != string(principal.Role) {
		logger.Warn("token role differs from stored role",
			zap.String("user_id", principal.UserID),
			zap.String("token_role", claims.Role),
			zap.String("stored_role", string(principal.Role)),
		)
	}

	setPrincipal(c, principal, claims)
	return nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}
