// Package app is the composition root. Bootstrap stays orchestration-only:
// each module owns the wiring of its own domain.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"

	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/app/modules"
	"plantops.io/mis/internal/config"
	"plantops.io/mis/internal/infrastructure"
	"plantops.io/mis/internal/jobs"
	"plantops.io/mis/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Redis   *redis.Client
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	governance, err := modules.NewGovernanceModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init governance module: %w", err)
	}

	ingest := modules.NewIngestModule(infra)
	baseModules := []modules.Module{
		modules.NewMaintenanceModule(infra, ingest.AlertSender()),
		governance,
		ingest,
	}

	workers := river.NewWorkers()
	for _, mod := range baseModules {
		if err := mod.RegisterWorkers(workers); err != nil {
			infra.Close()
			return nil, fmt.Errorf("register %s workers: %w", mod.Name(), err)
		}
	}
	// The PM overdue sweep runs hourly by default and once on startup so the
	// stored status is current after downtime.
	periodic := jobs.PeriodicJobs(cfg.River.PMSweepInterval, cfg.River.RunSweepOnStart)
	if err := infra.InitRiver(workers, periodic); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	sparesModule, err := modules.NewSparesModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init spares module: %w", err)
	}

	allModules := append(baseModules, sparesModule)
	serverDeps := modules.NewServerDeps(cfg, infra, allModules)
	server := handlers.NewServer(serverDeps)

	router, err := newRouter(cfg, server, governance.Auth())
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init router: %w", err)
	}

	return &Application{
		Config:  cfg,
		Router:  router,
		DB:      infra.DB,
		Pools:   infra.Pools,
		Redis:   infra.Redis,
		Modules: allModules,
	}, nil
}
