package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/config"
)

// newRouter builds the middleware chain: recovery, request ids, CORS, the
// optional OpenAPI request validator and error rendering, then the routes.
func newRouter(cfg *config.Config, server *handlers.Server, loader middleware.PrincipalLoader) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins, cfg.Server.AllowCredentials))

	if cfg.OpenAPI.ValidateRequests {
		validator, err := middleware.NewOpenAPIValidator("")
		if err != nil {
			return nil, fmt.Errorf("openapi validator: %w", err)
		}
		router.Use(validator)
	}
	router.Use(middleware.ErrorHandler())

	server.RegisterRoutes(router, loader)
	return router, nil
}
