// Package middleware provides the HTTP middleware chain: request ids,
// authentication, role and permission guards, error rendering, CORS and
// OpenAPI request validation.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
)

// ErrorHandler renders errors pushed with c.Error() as JSON.
// AppErrors keep their code and status. Anything else, and any 5xx, is logged
// with its cause and returned as a generic INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		rid := GetRequestID(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error("Request failed",
					zap.String("request_id", rid),
					zap.String("code", appErr.Code),
					zap.Int("status", appErr.HTTPStatus),
					zap.Error(appErr.Err),
				)
				c.JSON(appErr.HTTPStatus, gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				})
				return
			}
			logger.Warn("Request error",
				zap.String("request_id", rid),
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
			)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		logger.Error("Unhandled request error", zap.String("request_id", rid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperrors.CodeInternal,
			"message": "An internal error occurred",
		})
	}
}
