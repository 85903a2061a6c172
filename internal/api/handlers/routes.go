package handlers

import (
	"github.com/gin-gonic/gin"

	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/pkg/logger"
)

// RegisterRoutes mounts the API on r. Reads are public and carry the caller's
// identity when a valid token is sent; writes need a token and a permission.
func (s *Server) RegisterRoutes(r gin.IRouter, loader middleware.PrincipalLoader) {
	authn := middleware.Authenticate(s.jwtCfg, loader)
	optional := middleware.OptionalAuthenticate(s.jwtCfg, loader)
	can := func(p domain.Permission) []gin.HandlerFunc {
		return []gin.HandlerFunc{authn, middleware.RequirePermission(p)}
	}
	admin := []gin.HandlerFunc{authn, middleware.RequireRole(domain.RoleAdmin)}
	with := func(guards []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guards...), h)
	}

	r.GET("/", s.Root)

	api := r.Group("/api")
	api.GET("/health", s.Health)

	api.POST("/login", s.Login)
	api.POST("/register", optional, s.Register)
	api.POST("/logout", authn, s.Logout)
	api.GET("/me", authn, s.GetCurrentUser)
	api.GET("/permissions", authn, s.GetPermissions)

	api.GET("/assets", optional, s.ListAssets)
	api.GET("/assets/:id", optional, s.GetAsset)
	api.GET("/qr/:code", optional, s.GetAssetByQR)
	api.POST("/assets", with(can(domain.PermCreateAssets), s.CreateAsset)...)
	api.PUT("/assets/:id", with(can(domain.PermUpdateAssets), s.UpdateAsset)...)
	api.DELETE("/assets/:id", with(admin, s.DeleteAsset)...)

	api.GET("/breakdowns", optional, s.ListBreakdowns)
	api.GET("/breakdowns/:id", optional, s.GetBreakdown)
	api.POST("/breakdowns", with(can(domain.PermCreateBreakdown), s.CreateBreakdown)...)
	api.PUT("/breakdowns/:id", with(can(domain.PermCreateBreakdown), s.UpdateBreakdown)...)
	api.POST("/breakdowns/:id/engineer", with(can(domain.PermUpdateBreakdown), s.UpsertEngineerEntry)...)

	api.GET("/spares", optional, s.ListSpareParts)
	api.GET("/spares/alerts", optional, s.ListReorderAlerts)
	api.GET("/spares/:id", optional, s.GetSparePart)
	api.GET("/spares/:id/transactions", optional, s.ListSpareTransactions)
	api.POST("/spares", with(can(domain.PermCreateSpares), s.CreateSparePart)...)
	api.POST("/spares/transaction", with(can(domain.PermIssueSpares), s.CreateSpareTransaction)...)
	api.PUT("/spares/:id", with(can(domain.PermUpdateSpares), s.UpdateSparePart)...)
	api.DELETE("/spares/:id", with(admin, s.DeleteSparePart)...)

	api.GET("/pm", optional, s.ListPMSchedules)
	api.GET("/pm/:id", optional, s.GetPMSchedule)
	api.POST("/pm", with(can(domain.PermCreatePM), s.CreatePMSchedule)...)
	api.PUT("/pm/:id", with(can(domain.PermUpdatePM), s.UpdatePMSchedule)...)
	api.POST("/pm/:id/complete", with(can(domain.PermUpdatePM), s.CompletePMSchedule)...)
	api.DELETE("/pm/:id", with(admin, s.DeletePMSchedule)...)

	api.GET("/utilities", optional, s.ListUtilityLogs)
	api.POST("/utilities", with(can(domain.PermCreateUtilities), s.CreateUtilityLog)...)

	api.GET("/dashboard/stats", optional, s.GetDashboardStats)
	api.GET("/kpi", with(can(domain.PermViewKPI), s.GetKPI)...)

	api.GET("/users", with(admin, s.ListUsers)...)
	api.PUT("/users/:id/role", with(can(domain.PermManageRoles), s.UpdateUserRole)...)

	logLevel := gin.WrapH(logger.LevelHandler())
	api.GET("/admin/log-level", with(admin, logLevel)...)
	api.PUT("/admin/log-level", with(admin, logLevel)...)
}
