package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Register handles POST /api/register. An authenticated caller with
// manage_users may create accounts of any role.
func (s *Server) Register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	var actor *middleware.Principal
	if p, ok := middleware.CurrentPrincipal(c); ok {
		actor = p
	}
	result, err := s.auth.Register(c.Request.Context(), req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Logout handles POST /api/logout by revoking the presented token until it
// would have expired anyway.
func (s *Server) Logout(c *gin.Context) {
	tokenID, expiresAt, ok := middleware.CurrentToken(c)
	if ok && s.revoker != nil {
		if err := s.revoker.Revoke(c.Request.Context(), tokenID, expiresAt); err != nil {
			logger.Error("token revocation failed", zap.String("user_id", actorID(c)), zap.Error(err))
			_ = c.Error(apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "logout temporarily unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	s.audit.Record(c.Request.Context(), "user.logout", "profile", actorID(c), actorID(c), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// GetCurrentUser handles GET /api/me.
func (s *Server) GetCurrentUser(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthRequired, "authentication required"))
		return
	}
	profile, err := s.store.GetProfile(c.Request.Context(), p.UserID)
	if err != nil {
		_ = c.Error(storeError(err, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found"), nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        profile,
		"permissions": domain.DefaultPermissions().Permissions(profile.Role),
	})
}

// GetPermissions handles GET /api/permissions.
func (s *Server) GetPermissions(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthRequired, "authentication required"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"role":        p.Role,
		"permissions": domain.DefaultPermissions().Permissions(p.Role),
	})
}
