package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/nemanja-m/protalign/pkg/core"
)

// Sequential runs a task in the goroutine that first awaits it. Results are
// cached, so awaiting the same handle again does not re-run the task.
type Sequential struct {
	maxAttempts int

	mu   sync.Mutex
	runs map[uuid.UUID]*sequentialRun
}

type sequentialRun struct {
	spec core.TaskSpec

	mu     sync.Mutex
	done   bool
	result []core.Candidate
	err    error
}

var _ core.Runtime = (*Sequential)(nil)

func NewSequential(maxAttempts int) *Sequential {
	return &Sequential{
		maxAttempts: max(maxAttempts, 1),
		runs:        make(map[uuid.UUID]*sequentialRun),
	}
}

func (s *Sequential) Submit(_ context.Context, spec core.TaskSpec) (core.Handle, error) {
	if spec.Run == nil {
		return core.Handle{}, fmt.Errorf("task %s has no run function", spec.Name)
	}
	id := uuid.New()

	s.mu.Lock()
	s.runs[id] = &sequentialRun{spec: spec}
	s.mu.Unlock()

	return core.Handle{ID: id, Name: spec.Name}, nil
}

func (s *Sequential) Await(ctx context.Context, h core.Handle) ([]core.Candidate, error) {
	s.mu.Lock()
	r, ok := s.runs[h.ID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, h.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.done {
		result, err := s.attempt(ctx, r.spec)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.result, r.err, r.done = result, err, true
	}
	return slices.Clone(r.result), r.err
}

func (s *Sequential) attempt(ctx context.Context, spec core.TaskSpec) ([]core.Candidate, error) {
	for attempt := 1; ; attempt++ {
		result, err := runTask(ctx, spec)
		if err == nil {
			return result, nil
		}
		if attempt >= s.maxAttempts || ctx.Err() != nil {
			return nil, &core.TaskFailure{Task: spec.Name, Attempts: attempt, Err: err}
		}
	}
}
