package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/notification"
	"plantops.io/mis/internal/pkg/logger"
)

// DefaultPMSweepInterval is how often overdue PM schedules are flagged.
const DefaultPMSweepInterval = time.Hour

// PMSweepStore flags PM schedules whose next date has passed.
type PMSweepStore interface {
	MarkOverduePMSchedules(ctx context.Context, asOf domain.Date) (int64, error)
}

// PMOverdueSweepArgs is a periodic job that persists the derived overdue
// status so filters on the stored column stay accurate.
type PMOverdueSweepArgs struct{}

// Kind returns the job kind identifier.
func (PMOverdueSweepArgs) Kind() string { return "pm_overdue_sweep" }

// InsertOpts keeps at most one sweep per interval window.
func (PMOverdueSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: DefaultPMSweepInterval,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// PMOverdueSweepWorker marks scheduled plans overdue.
type PMOverdueSweepWorker struct {
	river.WorkerDefaults[PMOverdueSweepArgs]
	store    PMSweepStore
	triggers *notification.Triggers
	now      func() time.Time
}

// NewPMOverdueSweepWorker creates a sweep worker. triggers may be nil.
func NewPMOverdueSweepWorker(store PMSweepStore, triggers *notification.Triggers) *PMOverdueSweepWorker {
	return &PMOverdueSweepWorker{store: store, triggers: triggers, now: time.Now}
}

// Work flags every scheduled plan due before today.
func (w *PMOverdueSweepWorker) Work(ctx context.Context, _ *river.Job[PMOverdueSweepArgs]) error {
	if w == nil || w.store == nil {
		return fmt.Errorf("pm overdue sweep worker is not initialized")
	}

	today := domain.NewDate(w.now().UTC())
	marked, err := w.store.MarkOverduePMSchedules(ctx, today)
	if err != nil {
		return fmt.Errorf("mark pm schedules overdue as of %s: %w", today, err)
	}

	logger.Info("pm overdue sweep completed",
		zap.Int64("marked_overdue", marked),
		zap.String("as_of", today.String()),
	)
	w.triggers.OnPMOverdue(ctx, marked, today.String())
	return nil
}

// PeriodicJobs returns the recurring jobs. A non-positive interval falls
// back to DefaultPMSweepInterval.
func PeriodicJobs(interval time.Duration, runOnStart bool) []*river.PeriodicJob {
	if interval <= 0 {
		interval = DefaultPMSweepInterval
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return PMOverdueSweepArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		),
	}
}
