// Package jobs defines the River job types run in the background: the
// periodic PM overdue sweep and spare reorder alerts raised by stock movements.
package jobs

import (
	"fmt"

	"github.com/riverqueue/river"

	"plantops.io/mis/internal/notification"
)

// Store is everything the workers read and write.
type Store interface {
	PMSweepStore
	ReorderAlertStore
}

// RegisterWorkers adds every worker, bound to store, to workers. Events the
// workers raise go to triggers, which may be nil.
func RegisterWorkers(workers *river.Workers, store Store, triggers *notification.Triggers) error {
	if err := river.AddWorkerSafely(workers, NewPMOverdueSweepWorker(store, triggers)); err != nil {
		return fmt.Errorf("register pm_overdue_sweep worker: %w", err)
	}
	if err := river.AddWorkerSafely(workers, NewSpareReorderAlertWorker(store, triggers)); err != nil {
		return fmt.Errorf("register spare_reorder_alert worker: %w", err)
	}
	return nil
}
