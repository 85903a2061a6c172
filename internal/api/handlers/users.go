package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type roleRequest struct {
	Role string `json:"role"`
}

// ListUsers handles GET /api/users (admin only).
func (s *Server) ListUsers(c *gin.Context) {
	users, err := s.store.ListProfiles(c.Request.Context())
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUserRole handles PUT /api/users/:id/role. The new role applies from
// the user's next request.
func (s *Server) UpdateUserRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := s.auth.ChangeRole(c.Request.Context(), id, req.Role, actorID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
