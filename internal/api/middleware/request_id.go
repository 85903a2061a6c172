package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"plantops.io/mis/internal/domain"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	// AuthenticatedUserHeader echoes the resolved user id on authenticated responses.
	AuthenticatedUserHeader = "X-Authenticated-User"

	ctxKeyRequestID contextKey = "request_id"
	ctxKeyUserID    contextKey = "user_id"
	ctxKeyEmail     contextKey = "email"
	ctxKeyRole      contextKey = "role"
)

// Gin context keys set by Authenticate.
const (
	KeyUserID      = "user_id"
	KeyEmail       = "email"
	KeyRole        = "role"
	KeyPermissions = "permissions"
	KeyPrincipal   = "principal"
	KeyTokenID     = "token_id"
	KeyTokenExpiry = "token_expires_at"
)

// RequestID injects a unique request ID into the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), ctxKeyRequestID, rid),
		)
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// SetUserContext stores authenticated user info in context.
func SetUserContext(ctx context.Context, userID, email string, role domain.Role) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyEmail, email)
	ctx = context.WithValue(ctx, ctxKeyRole, role)
	return ctx
}

// GetUserID extracts user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// GetEmail extracts the user's email from context.
func GetEmail(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyEmail).(string); ok {
		return v
	}
	return ""
}

// GetRole extracts the authoritative role from context.
func GetRole(ctx context.Context) domain.Role {
	if v, ok := ctx.Value(ctxKeyRole).(domain.Role); ok {
		return v
	}
	return ""
}

func setPrincipal(c *gin.Context, p *Principal, claims *JWTClaims) {
	perms := domain.DefaultPermissions().Permissions(p.Role)
	names := make([]string, len(perms))
	for i, perm := range perms {
		names[i] = string(perm)
	}

	c.Set(KeyPrincipal, p)
	c.Set(KeyUserID, p.UserID)
	c.Set(KeyEmail, p.Email)
	c.Set(KeyRole, p.Role)
	c.Set(KeyPermissions, names)
	if claims != nil {
		c.Set(KeyTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(KeyTokenExpiry, claims.ExpiresAt.Time)
		}
	}
	c.Writer.Header().Set(AuthenticatedUserHeader, p.UserID)
	c.Request = c.Request.WithContext(SetUserContext(c.Request.Context(), p.UserID, p.Email, p.Role))
}

// CurrentPrincipal returns the authenticated principal, if any.
func CurrentPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(KeyPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// CurrentToken returns the id and expiry of the token the request carried.
func CurrentToken(c *gin.Context) (string, time.Time, bool) {
	id := c.GetString(KeyTokenID)
	exp, _ := c.Get(KeyTokenExpiry)
	expiresAt, _ := exp.(time.Time)
	return id, expiresAt, id != ""
}
