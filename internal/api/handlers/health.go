package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plantops.io/mis/internal/pkg/logger"
)

const healthTimeout = 3 * time.Second

// Root handles GET /, reporting whether the database answers.
func (s *Server) Root(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	now := s.now().UTC().Format(time.RFC3339)
	if err := s.store.Ping(ctx); err != nil {
		logger.Error("database ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "error",
			"message":   "MIS API is running but the database is unreachable",
			"timestamp": now,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "MIS API is running and connected to the database",
		"timestamp": now,
	})
}

// Health handles GET /api/health with per-dependency checks.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.checks)+1)
	healthy := true

	if err := s.store.Ping(ctx); err != nil {
		logger.Error("database ping failed", zap.Error(err))
		checks["database"] = "error"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "error"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	body := gin.H{"status": status, "checks": checks}
	if s.workers != nil {
		body["workers"] = s.workers()
	}
	c.JSON(code, body)
}
