package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/protalign/internal/shared/logging"
	"github.com/nemanja-m/protalign/pkg/core"
)

var (
	ErrUnknownTask  = errors.New("unknown task")
	ErrClosed       = errors.New("runtime closed")
	ErrTaskPanicked = errors.New("task panicked")
)

// run is the in-process state of one submitted task.
type run struct {
	task *Task
	spec core.TaskSpec
	ctx  context.Context
	done chan struct{}

	result []core.Candidate
	err    error
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// controller owns the task lifecycle: queueing, attempts, retries and
// delivery of results to awaiting callers.
type controller struct {
	store       TaskStore
	queue       TaskQueue
	maxAttempts int

	mu     sync.Mutex
	runs   map[uuid.UUID]*run
	closed bool
	wake   chan struct{}

	logger logging.Logger
}

func newController(store TaskStore, maxAttempts, wakeSlots int, logger logging.Logger) *controller {
	return &controller{
		store:       store,
		queue:       NewTaskQueue(),
		maxAttempts: max(maxAttempts, 1),
		runs:        make(map[uuid.UUID]*run),
		wake:        make(chan struct{}, max(wakeSlots, 1)),
		logger:      logger,
	}
}

func (c *controller) submit(ctx context.Context, spec core.TaskSpec) (core.Handle, error) {
	if spec.Run == nil {
		return core.Handle{}, fmt.Errorf("task %s has no run function", spec.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return core.Handle{}, ErrClosed
	}

	task := &Task{
		ID:          uuid.New(),
		Name:        spec.Name,
		Kind:        spec.Kind,
		Status:      TaskStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := c.store.SaveTask(task); err != nil {
		return core.Handle{}, err
	}
	if err := c.queue.Push(task); err != nil {
		return core.Handle{}, err
	}
	c.runs[task.ID] = &run{task: task, spec: spec, ctx: ctx, done: make(chan struct{})}
	c.signal()

	c.logger.Debug("Task submitted",
		"task_id", spec.Name,
		"id", task.ID.String(),
		"kind", string(spec.Kind),
		"queued", c.queue.Len(),
	)
	return core.Handle{ID: task.ID, Name: spec.Name}, nil
}

// next pops the most urgent runnable task and starts a new attempt. It
// returns nil when nothing is queued.
func (c *controller) next() (*run, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		task, err := c.queue.Pop()
		if err != nil {
			return nil, 0
		}
		r, ok := c.runs[task.ID]
		if !ok || r.finished() {
			continue
		}
		if err := r.ctx.Err(); err != nil {
			task.Status = TaskStatusFailed
			task.EndedAt = ptrTimeNow()
			c.finishLocked(r, nil, &core.TaskFailure{Task: task.Name, Attempts: task.Attempt, Err: err})
			continue
		}

		task.Status = TaskStatusRunning
		task.Attempt++
		if task.StartedAt == nil {
			task.StartedAt = ptrTimeNow()
		}
		c.updateLocked(task)
		return r, task.Attempt
	}
}

func (c *controller) complete(r *run, result []core.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.finished() {
		return
	}
	r.task.Status = TaskStatusCompleted
	r.task.EndedAt = ptrTimeNow()
	c.finishLocked(r, result, nil)
}

// fail records a failed attempt and re-queues the task while attempts
// remain. A cancelled submit context is never retried.
func (c *controller) fail(r *run, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.finished() {
		return
	}
	task := r.task
	task.Errors = append(task.Errors, TaskError{
		Attempt:   task.Attempt,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})

	if !c.closed && r.ctx.Err() == nil && task.Attempt < c.maxAttempts {
		task.Status = TaskStatusPending
		c.updateLocked(task)
		if pushErr := c.queue.Push(task); pushErr == nil {
			c.logger.Warn("Retrying task",
				"task_id", task.Name,
				"attempt", task.Attempt,
				"max_attempts", c.maxAttempts,
				"error", err,
			)
			c.signal()
			return
		}
	}

	task.Status = TaskStatusFailed
	task.EndedAt = ptrTimeNow()
	c.finishLocked(r, nil, &core.TaskFailure{Task: task.Name, Attempts: task.Attempt, Err: err})
}

func (c *controller) await(ctx context.Context, h core.Handle) ([]core.Candidate, error) {
	c.mu.Lock()
	r, ok := c.runs[h.ID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, h.ID)
	}

	select {
	case <-r.done:
		return slices.Clone(r.result), r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shutdown rejects new submissions and fails every unfinished task.
func (c *controller) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, r := range c.runs {
		if r.finished() {
			continue
		}
		r.task.Status = TaskStatusFailed
		r.task.EndedAt = ptrTimeNow()
		c.finishLocked(r, nil, &core.TaskFailure{Task: r.task.Name, Attempts: r.task.Attempt, Err: ErrClosed})
	}
}

func (c *controller) finishLocked(r *run, result []core.Candidate, err error) {
	r.result, r.err = result, err
	c.updateLocked(r.task)
	close(r.done)

	if err != nil {
		c.logger.Error("Task failed", "task_id", r.task.Name, "attempts", r.task.Attempt, "error", err)
	} else {
		c.logger.Debug("Task completed",
			"task_id", r.task.Name,
			"attempts", r.task.Attempt,
			"candidates", len(result),
			"duration", r.task.Duration().String(),
		)
	}
}

func (c *controller) updateLocked(task *Task) {
	if err := c.store.UpdateTask(task); err != nil {
		c.logger.Error("Failed to update task", "task_id", task.Name, "error", err)
	}
}

// signal wakes one idle worker without blocking.
func (c *controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
