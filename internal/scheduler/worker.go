package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/nemanja-m/protalign/internal/shared/logging"
	"github.com/nemanja-m/protalign/pkg/core"
)

const (
	minBackoff = 5 * time.Millisecond
	maxBackoff = 250 * time.Millisecond
)

type worker struct {
	id         int
	controller *controller
	timeout    time.Duration
	logger     logging.Logger
}

// run pulls tasks until ctx is cancelled. When the queue is empty it sleeps
// with exponential backoff or until the controller signals new work.
func (w *worker) run(ctx context.Context) {
	backoff := minBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r, attempt := w.controller.next()
		if r == nil {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-w.controller.wake:
				timer.Stop()
				backoff = minBackoff
			case <-timer.C:
				backoff = min(backoff*2, maxBackoff)
			}
			continue
		}

		backoff = minBackoff

		w.logger.Debug("Received task",
			"worker", w.id,
			"task_id", r.spec.Name,
			"kind", string(r.spec.Kind),
			"attempt", attempt,
		)

		result, err := w.execute(ctx, r)
		if err != nil {
			w.logger.Warn("Task execution failed", "worker", w.id, "task_id", r.spec.Name, "attempt", attempt, "error", err)
			w.controller.fail(r, err)
			continue
		}
		w.controller.complete(r, result)
	}
}

// execute runs one attempt. The attempt is cancelled when either the
// submitter's context or the worker's context is done.
func (w *worker) execute(ctx context.Context, r *run) ([]core.Candidate, error) {
	taskCtx, cancel := context.WithCancel(r.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if w.timeout > 0 {
		var cancelTimeout context.CancelFunc
		taskCtx, cancelTimeout = context.WithTimeout(taskCtx, w.timeout)
		defer cancelTimeout()
	}
	return runTask(taskCtx, r.spec)
}

// runTask calls the task function, turning a panic into an error.
func runTask(ctx context.Context, spec core.TaskSpec) (result []core.Candidate, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, p)
		}
	}()
	return spec.Run(ctx)
}
