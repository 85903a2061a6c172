// Package handlers implements the MIS REST API on gin.
//
// Handlers push failures with c.Error and leave rendering to
// middleware.ErrorHandler. Routes and their guards are declared in routes.go.
package handlers

import (
	"context"
	"time"

	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/config"
	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/governance/audit"
	"plantops.io/mis/internal/pkg/worker"
	"plantops.io/mis/internal/repository"
	"plantops.io/mis/internal/service"
	"plantops.io/mis/internal/usecase"
)

// Store is the persistence the handlers use. *repository.Store satisfies it.
type Store interface {
	Ping(ctx context.Context) error

	ListAssets(ctx context.Context, f repository.AssetFilter) ([]domain.Asset, error)
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)
	GetAssetByQR(ctx context.Context, code string) (*domain.Asset, error)
	CreateAsset(ctx context.Context, p repository.CreateAssetParams) (*domain.Asset, error)
	UpdateAsset(ctx context.Context, p repository.UpdateAssetParams) (*domain.Asset, error)
	DeleteAsset(ctx context.Context, id string) error

	ListPMSchedules(ctx context.Context, f repository.PMFilter) ([]domain.PMSchedule, error)
	GetPMSchedule(ctx context.Context, id string) (*domain.PMSchedule, error)
	CreatePMSchedule(ctx context.Context, p repository.CreatePMParams) (*domain.PMSchedule, error)
	UpdatePMSchedule(ctx context.Context, p repository.UpdatePMParams) (*domain.PMSchedule, error)
	CompletePMSchedule(ctx context.Context, id string, doneOn domain.Date) (*domain.PMSchedule, error)
	DeletePMSchedule(ctx context.Context, id string) error

	ListBreakdowns(ctx context.Context, f repository.BreakdownFilter) ([]domain.Breakdown, error)
	GetBreakdown(ctx context.Context, id string) (*domain.Breakdown, error)
	CreateOperatorEntry(ctx context.Context, p repository.CreateBreakdownParams) (string, error)
	UpdateBreakdownChecked(ctx context.Context, p repository.UpdateBreakdownParams, check func(from domain.BreakdownStatus) error) error
	UpsertEngineerEntry(ctx context.Context, p repository.UpsertEngineerParams) error
	ListKPIRecords(ctx context.Context, from, to domain.Date) ([]domain.RepairRecord, error)

	ListSpareParts(ctx context.Context, f repository.SpareFilter) ([]domain.SparePart, error)
	GetSparePart(ctx context.Context, id string) (*domain.SparePart, error)
	CreateSparePart(ctx context.Context, p repository.CreateSpareParams) (*domain.SparePart, error)
	UpdateSparePart(ctx context.Context, p repository.UpdateSpareParams) (*domain.SparePart, error)
	DeleteSparePart(ctx context.Context, id string) error
	ListSpareTransactions(ctx context.Context, partID string, limit int) ([]domain.SpareTransaction, error)
	ListReorderAlerts(ctx context.Context, status string) ([]domain.ReorderAlert, error)

	ListUtilityLogs(ctx context.Context, f repository.UtilityFilter) ([]domain.UtilityLog, error)
	InsertUtilityLog(ctx context.Context, p repository.InsertUtilityParams) (*domain.UtilityLog, error)

	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)

	AssetCounts(ctx context.Context) (domain.AssetStats, error)
	PMCounts(ctx context.Context, today domain.Date) (domain.PMStats, error)
	BreakdownCounts(ctx context.Context, today domain.Date) (domain.BreakdownStats, error)
	SpareCounts(ctx context.Context) (domain.SpareStats, error)
	UtilityCounts(ctx context.Context) (domain.UtilityStats, error)
}

// SpareMover executes stock transactions.
type SpareMover interface {
	Execute(ctx context.Context, in usecase.SpareTransactionInput) (*usecase.SpareTransactionResult, error)
}

// HealthCheck reports the state of one optional dependency.
type HealthCheck func(ctx context.Context) error

// Server holds the handler dependencies.
type Server struct {
	store   Store
	auth    *service.AuthService
	revoker service.Revoker
	spares  SpareMover
	audit   *audit.Logger
	pool    *worker.Pool
	jwtCfg  middleware.JWTConfig
	kpi     config.KPIConfig
	checks  map[string]HealthCheck
	workers func() map[string]interface{}
	now     func() time.Time
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Store   Store
	Auth    *service.AuthService
	Revoker service.Revoker
	Spares  SpareMover
	Audit   *audit.Logger
	// Pool runs the dashboard queries concurrently. Nil runs them in turn.
	Pool   *worker.Pool
	JWTCfg middleware.JWTConfig
	KPI    config.KPIConfig
	// HealthChecks are reported by GET /api/health next to the database.
	HealthChecks map[string]HealthCheck
	// WorkerMetrics adds pool occupancy to GET /api/health when set.
	WorkerMetrics func() map[string]interface{}
	Now           func() time.Time
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		store:   deps.Store,
		auth:    deps.Auth,
		revoker: deps.Revoker,
		spares:  deps.Spares,
		audit:   deps.Audit,
		pool:    deps.Pool,
		jwtCfg:  deps.JWTCfg,
		kpi:     deps.KPI,
		checks:  deps.HealthChecks,
		workers: deps.WorkerMetrics,
		now:     now,
	}
}

func (s *Server) today() domain.Date {
	return domain.NewDate(s.now().UTC())
}
