package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
)

// Authorize reports whether role is on the allow-list.
func Authorize(role domain.Role, allowed ...domain.Role) bool {
	return role != "" && slices.Contains(allowed, role)
}

// RequireRole returns middleware that admits only the listed roles.
// It must run after Authenticate.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	required := make([]string, len(roles))
	for i, r := range roles {
		required[i] = string(r)
	}
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			abortWithError(c, apperrors.Unauthorized(apperrors.CodeAuthRequired, "authentication required"))
			return
		}
		if !Authorize(p.Role, roles...) {
			logger.Warn("access denied",
				zap.String("user_id", p.UserID),
				zap.String("role", string(p.Role)),
				zap.Strings("required_roles", required),
				zap.String("path", c.FullPath()),
			)
			abortWithError(c, apperrors.ErrForbiddenRoles(required, string(p.Role)))
			return
		}
		c.Next()
	}
}

// HasPermission reports whether the authenticated user holds permission.
func HasPermission(c *gin.Context, permission domain.Permission) bool {
	perms, exists := c.Get(KeyPermissions)
	if !exists {
		return false
	}
	permList, ok := perms.([]string)
	return ok && slices.Contains(permList, string(permission))
}

// RequirePermission returns middleware that checks the role's permission set.
// It must run after Authenticate.
func RequirePermission(permission domain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			abortWithError(c, apperrors.Unauthorized(apperrors.CodeAuthRequired, "authentication required"))
			return
		}
		if HasPermission(c, permission) {
			c.Next()
			return
		}
		logger.Warn("access denied",
			zap.String("user_id", p.UserID),
			zap.String("role", string(p.Role)),
			zap.String("permission", string(permission)),
			zap.String("path", c.FullPath()),
		)
		abortWithError(c, ErrMissingPermission(permission, p.Role))
	}
}

// ErrMissingPermission is the 403 for a role lacking permission.
func ErrMissingPermission(permission domain.Permission, role domain.Role) *apperrors.AppError {
	return apperrors.Forbidden(apperrors.CodeForbidden, "access denied, missing permission: "+string(permission)).
		WithParams(map[string]interface{}{
			"required_permission": string(permission),
			"your_role":           string(role),
		})
}
