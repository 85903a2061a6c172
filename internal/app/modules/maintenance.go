package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/jobs"
	"plantops.io/mis/internal/notification"
)

// MaintenanceModule wires the background maintenance jobs: the PM overdue
// sweep and spare reorder alerts.
type MaintenanceModule struct {
	store    jobs.Store
	triggers *notification.Triggers
}

// NewMaintenanceModule creates the module over the shared store. Job events
// are announced through sender; nil logs only.
func NewMaintenanceModule(infra *Infrastructure, sender notification.Sender) *MaintenanceModule {
	m := &MaintenanceModule{triggers: notification.NewTriggers(sender)}
	if infra != nil && infra.Store != nil {
		m.store = infra.Store
	}
	return m
}

func (m *MaintenanceModule) Name() string { return "maintenance" }

func (m *MaintenanceModule) ContributeServerDeps(_ *handlers.ServerDeps) {}

func (m *MaintenanceModule) RegisterWorkers(workers *river.Workers) error {
	if workers == nil || m.store == nil {
		return fmt.Errorf("maintenance module requires a worker registry and store")
	}
	return jobs.RegisterWorkers(workers, m.store, m.triggers)
}

func (m *MaintenanceModule) Shutdown(context.Context) error { return nil }
