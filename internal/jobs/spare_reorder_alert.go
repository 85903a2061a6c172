package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"plantops.io/mis/internal/notification"
	"plantops.io/mis/internal/pkg/logger"
)

// ReorderAlertStore opens reorder alerts.
type ReorderAlertStore interface {
	OpenReorderAlert(ctx context.Context, partID string) (bool, error)
}

// SpareReorderAlertArgs is enqueued in the same transaction as a stock
// movement that leaves a part at or below its reorder level.
type SpareReorderAlertArgs struct {
	PartID       string `json:"part_id"`
	PartCode     string `json:"part_code"`
	BalanceAfter int    `json:"balance_after"`
	ReorderLevel int    `json:"reorder_level"`
}

// Kind returns the job kind identifier.
func (SpareReorderAlertArgs) Kind() string { return "spare_reorder_alert" }

// InsertOpts allows a few retries on transient database errors.
func (SpareReorderAlertArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 5,
	}
}

// SpareReorderAlertWorker records a reorder alert unless one is already open.
type SpareReorderAlertWorker struct {
	river.WorkerDefaults[SpareReorderAlertArgs]
	store    ReorderAlertStore
	triggers *notification.Triggers
}

// NewSpareReorderAlertWorker creates the worker. triggers may be nil.
func NewSpareReorderAlertWorker(store ReorderAlertStore, triggers *notification.Triggers) *SpareReorderAlertWorker {
	return &SpareReorderAlertWorker{store: store, triggers: triggers}
}

// Work opens the alert. The store re-checks the live stock, so a part that
// was restocked before the job ran gets no alert.
func (w *SpareReorderAlertWorker) Work(ctx context.Context, job *river.Job[SpareReorderAlertArgs]) error {
	if w == nil || w.store == nil {
		return fmt.Errorf("spare reorder alert worker is not initialized")
	}
	if job == nil || strings.TrimSpace(job.Args.PartID) == "" {
		return river.JobCancel(fmt.Errorf("spare reorder alert job has no part id"))
	}

	opened, err := w.store.OpenReorderAlert(ctx, job.Args.PartID)
	if err != nil {
		return fmt.Errorf("open reorder alert for part %s: %w", job.Args.PartID, err)
	}
	if !opened {
		return nil
	}
	logger.Info("reorder alert opened",
		zap.String("part_id", job.Args.PartID),
		zap.String("part_code", job.Args.PartCode),
		zap.Int("balance_after", job.Args.BalanceAfter),
		zap.Int("reorder_level", job.Args.ReorderLevel),
	)
	w.triggers.OnReorderLevel(ctx, job.Args.PartID, job.Args.PartCode, job.Args.BalanceAfter, job.Args.ReorderLevel)
	return nil
}
