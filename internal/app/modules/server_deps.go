package modules

import (
	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		JWTCfg:       infra.JWT,
		KPI:          cfg.KPI,
		HealthChecks: map[string]handlers.HealthCheck{},
	}
	if infra.Store != nil {
		deps.Store = infra.Store
	}
	if infra.Pools != nil {
		deps.Pool = infra.Pools.General
		deps.WorkerMetrics = infra.Pools.Metrics
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
