package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/nemanja-m/protalign/internal/shared/logging"
	"github.com/nemanja-m/protalign/pkg/core"
)

type Config struct {
	Workers     int
	MaxAttempts int
	TaskTimeout time.Duration
}

// Local is an in-process runtime: a fixed pool of worker loops pulling
// tasks from a priority queue, with retries up to MaxAttempts.
type Local struct {
	cfg        Config
	store      TaskStore
	controller *controller
	pool       *Pool

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger logging.Logger
}

var _ core.Runtime = (*Local)(nil)

func NewLocal(cfg Config, logger logging.Logger) *Local {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	store := NewInMemoryTaskStore()
	return &Local{
		cfg:        cfg,
		store:      store,
		controller: newController(store, cfg.MaxAttempts, cfg.Workers, logger),
		pool:       NewPool(cfg.Workers),
		logger:     logger,
	}
}

// Start launches the worker loops. Tasks submitted earlier wait in the queue.
func (l *Local) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		ctx, l.cancel = context.WithCancel(ctx)
		l.pool.Start()
		for i := range l.cfg.Workers {
			w := &worker{
				id:         i,
				controller: l.controller,
				timeout:    l.cfg.TaskTimeout,
				logger:     l.logger,
			}
			if err := l.pool.Submit(func() { w.run(ctx) }); err != nil {
				l.logger.Error("Failed to start worker", "worker", i, "error", err)
			}
		}
		l.logger.Info("Runtime started",
			"workers", l.cfg.Workers,
			"max_attempts", l.cfg.MaxAttempts,
			"task_timeout", l.cfg.TaskTimeout.String(),
		)
	})
}

func (l *Local) Submit(ctx context.Context, spec core.TaskSpec) (core.Handle, error) {
	return l.controller.submit(ctx, spec)
}

func (l *Local) Await(ctx context.Context, h core.Handle) ([]core.Candidate, error) {
	return l.controller.await(ctx, h)
}

// Progress counts tasks of kind by status.
func (l *Local) Progress(kind core.TaskKind) (Progress, error) {
	return l.store.Progress(kind)
}

// Close fails unfinished tasks with ErrClosed, stops the workers and waits
// for them to exit.
func (l *Local) Close() {
	l.closeOnce.Do(func() {
		l.controller.shutdown()
		if l.cancel != nil {
			l.cancel()
			l.pool.Close()
		}
	})
}
