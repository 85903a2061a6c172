package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/usecase"
)

// SparesModule wires stock movements with their in-transaction reorder jobs.
type SparesModule struct {
	transactions *usecase.SpareTransactionUseCase
}

// NewSparesModule creates the spares module after the River client is initialized.
func NewSparesModule(infra *Infrastructure) (*SparesModule, error) {
	if infra == nil || infra.Pool == nil || infra.RiverClient == nil {
		return nil, fmt.Errorf("spares module requires pgx pool and river client")
	}
	return &SparesModule{
		transactions: usecase.NewSpareTransactionUseCase(infra.Pool, infra.RiverClient, infra.AuditLogger),
	}, nil
}

func (m *SparesModule) Name() string { return "spares" }

func (m *SparesModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Spares = m.transactions
}

func (m *SparesModule) RegisterWorkers(_ *river.Workers) error { return nil }

func (m *SparesModule) Shutdown(context.Context) error { return nil }
