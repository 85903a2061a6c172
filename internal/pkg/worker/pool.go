// Package worker provides goroutine pool management.
//
// Request fan-out and telemetry ingest never start bare goroutines;
// they submit to one of these ants pools so concurrency stays bounded.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"plantops.io/mis/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool    *ants.Pool
	name    string
	service context.Context
}

// Pools is the worker pool collection.
type Pools struct {
	// General serves request-scoped fan-out (dashboard aggregates).
	General *Pool
	// Ingest serves inbound meter readings.
	Ingest *Pool

	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	GeneralPoolSize int
	IngestPoolSize  int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize: 50,
		IngestPoolSize:  20,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	// Ingest is non-blocking: a flood of readings is dropped rather than
	// stalling the MQTT client's delivery goroutine.
	ingestAnts, err := ants.NewPool(cfg.IngestPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		generalAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		General:       &Pool{pool: generalAnts, name: "general", service: serviceCtx},
		Ingest:        &Pool{pool: ingestAnts, name: "ingest", service: serviceCtx},
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// If ctx is already cancelled, returns ctx.Err() without submitting. Once the
// pools are shutting down it returns ErrPoolClosed.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.serviceDone():
		return ErrPoolClosed
	default:
	}

	err := p.pool.Submit(func() {
		// May have been cancelled while queued.
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		case <-p.serviceDone():
			logger.Debug("Task skipped: service shutting down",
				zap.String("pool", p.name),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

func (p *Pool) serviceDone() <-chan struct{} {
	if p.service == nil {
		return nil
	}
	return p.service.Done()
}

// Group runs fns concurrently on the pool and waits for all of them.
// The first error cancels the shared context and is returned.
func (p *Pool) Group(ctx context.Context, fns ...func(ctx context.Context) error) error {
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, fn := range fns {
		if groupCtx.Err() != nil {
			break
		}
		wg.Add(1)
		fn := fn
		// Submitted directly so wg.Done runs even when the task is skipped.
		err := p.pool.Submit(func() {
			defer wg.Done()
			if groupCtx.Err() != nil {
				return
			}
			if err := fn(groupCtx); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrPoolClosed
			}
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

// Shutdown stops queued work, then waits for running tasks (max 30s).
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.General.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("General pool shutdown timeout", zap.Error(err))
	}
	if err := p.Ingest.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Ingest pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for the health endpoint.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"general": map[string]int{
			"running": p.General.pool.Running(),
			"free":    p.General.pool.Free(),
			"cap":     p.General.pool.Cap(),
		},
		"ingest": map[string]int{
			"running": p.Ingest.pool.Running(),
			"free":    p.Ingest.pool.Free(),
			"cap":     p.Ingest.pool.Cap(),
		},
	}
}
