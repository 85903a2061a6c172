package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/riverqueue/river"

	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/notification"
	"plantops.io/mis/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

type fakeStore struct {
	asOf    domain.Date
	marked  int64
	opened  []string
	openRet bool
	err     error
}

func (f *fakeStore) MarkOverduePMSchedules(_ context.Context, asOf domain.Date) (int64, error) {
	f.asOf = asOf
	return f.marked, f.err
}

func (f *fakeStore) OpenReorderAlert(_ context.Context, partID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.opened = append(f.opened, partID)
	return f.openRet, nil
}

func TestJobKinds(t *testing.T) {
	t.Parallel()

	if got := (PMOverdueSweepArgs{}).Kind(); got != "pm_overdue_sweep" {
		t.Fatalf("Kind() = %q, want pm_overdue_sweep", got)
	}
	if got := (SpareReorderAlertArgs{}).Kind(); got != "spare_reorder_alert" {
		t.Fatalf("Kind() = %q, want spare_reorder_alert", got)
	}
}

func TestPMOverdueSweepArgsInsertOpts(t *testing.T) {
	t.Parallel()

	opts := (PMOverdueSweepArgs{}).InsertOpts()
	if opts.Queue != river.QueueDefault {
		t.Fatalf("Queue = %q, want %q", opts.Queue, river.QueueDefault)
	}
	if opts.MaxAttempts != 1 {
		t.Fatalf("MaxAttempts = %d, want 1", opts.MaxAttempts)
	}
	if opts.UniqueOpts.ByPeriod != DefaultPMSweepInterval {
		t.Fatalf("UniqueOpts.ByPeriod = %s, want %s", opts.UniqueOpts.ByPeriod, DefaultPMSweepInterval)
	}
}

func TestPMOverdueSweepWorker_UsesTodayUTC(t *testing.T) {
	t.Parallel()

	store := &fakeStore{marked: 3}
	w := NewPMOverdueSweepWorker(store, nil)
	w.now = func() time.Time { return time.Date(2025, 7, 9, 23, 30, 0, 0, time.FixedZone("X", -5*3600)) }

	if err := w.Work(context.Background(), nil); err != nil {
		t.Fatalf("Work() error = %v", err)
	}
	if got := store.asOf.String(); got != "2025-07-10" {
		t.Fatalf("asOf = %s, want 2025-07-10", got)
	}
}

func TestPMOverdueSweepWorker_Errors(t *testing.T) {
	t.Parallel()

	t.Run("nil receiver", func(t *testing.T) {
		var w *PMOverdueSweepWorker
		err := w.Work(context.Background(), nil)
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("Work() error = %v, want not initialized", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("db down")
		w := NewPMOverdueSweepWorker(&fakeStore{err: boom}, nil)
		if err := w.Work(context.Background(), nil); !errors.Is(err, boom) {
			t.Fatalf("Work() error = %v, want %v", err, boom)
		}
	})
}

func TestSpareReorderAlertWorker(t *testing.T) {
	t.Parallel()

	t.Run("opens alert for part", func(t *testing.T) {
		store := &fakeStore{openRet: true}
		w := NewSpareReorderAlertWorker(store, nil)
		job := &river.Job[SpareReorderAlertArgs]{Args: SpareReorderAlertArgs{PartID: "p-1", PartCode: "BRG"}}
		if err := w.Work(context.Background(), job); err != nil {
			t.Fatalf("Work() error = %v", err)
		}
		if len(store.opened) != 1 || store.opened[0] != "p-1" {
			t.Fatalf("opened = %v, want [p-1]", store.opened)
		}
	})

	t.Run("already open is not an error", func(t *testing.T) {
		w := NewSpareReorderAlertWorker(&fakeStore{openRet: false}, nil)
		job := &river.Job[SpareReorderAlertArgs]{Args: SpareReorderAlertArgs{PartID: "p-1"}}
		if err := w.Work(context.Background(), job); err != nil {
			t.Fatalf("Work() error = %v", err)
		}
	})

	t.Run("missing part id cancels", func(t *testing.T) {
		w := NewSpareReorderAlertWorker(&fakeStore{}, nil)
		err := w.Work(context.Background(), &river.Job[SpareReorderAlertArgs]{})
		if err == nil || !strings.Contains(err.Error(), "no part id") {
			t.Fatalf("Work() error = %v, want no part id", err)
		}
	})

	t.Run("store failure retries", func(t *testing.T) {
		boom := errors.New("db down")
		w := NewSpareReorderAlertWorker(&fakeStore{err: boom}, nil)
		job := &river.Job[SpareReorderAlertArgs]{Args: SpareReorderAlertArgs{PartID: "p-1"}}
		if err := w.Work(context.Background(), job); !errors.Is(err, boom) {
			t.Fatalf("Work() error = %v, want %v", err, boom)
		}
	})
}

func TestPeriodicJobsAndWorkers(t *testing.T) {
	t.Parallel()

	if got := len(PeriodicJobs(0, true)); got != 1 {
		t.Fatalf("PeriodicJobs() len = %d, want 1", got)
	}
	workers := river.NewWorkers()
	if err := RegisterWorkers(workers, &fakeStore{}, nil); err != nil {
		t.Fatalf("RegisterWorkers() error = %v", err)
	}
	if err := RegisterWorkers(workers, &fakeStore{}, nil); err == nil {
		t.Fatal("RegisterWorkers() twice should report the duplicate kind")
	}
}

type recordingSender struct {
	sent []notification.Params
}

func (r *recordingSender) Send(_ context.Context, p notification.Params) error {
	r.sent = append(r.sent, p)
	return nil
}

func TestWorkersRaiseNotifications(t *testing.T) {
	t.Parallel()

	t.Run("new reorder alert", func(t *testing.T) {
		rec := &recordingSender{}
		w := NewSpareReorderAlertWorker(&fakeStore{openRet: true}, notification.NewTriggers(rec))
		job := &river.Job[SpareReorderAlertArgs]{Args: SpareReorderAlertArgs{PartID: "p-1", PartCode: "BRG", BalanceAfter: 2, ReorderLevel: 5}}
		if err := w.Work(context.Background(), job); err != nil {
			t.Fatalf("Work() error = %v", err)
		}
		if len(rec.sent) != 1 || rec.sent[0].Type != notification.TypeSpareReorder {
			t.Fatalf("sent = %+v, want one SPARE_REORDER notice", rec.sent)
		}
	})

	t.Run("alert already open", func(t *testing.T) {
		rec := &recordingSender{}
		w := NewSpareReorderAlertWorker(&fakeStore{openRet: false}, notification.NewTriggers(rec))
		job := &river.Job[SpareReorderAlertArgs]{Args: SpareReorderAlertArgs{PartID: "p-1"}}
		if err := w.Work(context.Background(), job); err != nil {
			t.Fatalf("Work() error = %v", err)
		}
		if len(rec.sent) != 0 {
			t.Fatalf("sent = %+v, want none", rec.sent)
		}
	})

	t.Run("overdue sweep", func(t *testing.T) {
		rec := &recordingSender{}
		w := NewPMOverdueSweepWorker(&fakeStore{marked: 4}, notification.NewTriggers(rec))
		if err := w.Work(context.Background(), nil); err != nil {
			t.Fatalf("Work() error = %v", err)
		}
		if len(rec.sent) != 1 || rec.sent[0].Type != notification.TypePMOverdue {
			t.Fatalf("sent = %+v, want one PM_OVERDUE notice", rec.sent)
		}
	})
}
