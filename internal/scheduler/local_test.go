package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nemanja-m/protalign/internal/shared/logging"
	"github.com/nemanja-m/protalign/pkg/core"
)

func candidates(ids ...string) []core.Candidate {
	out := make([]core.Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, core.Candidate{Score: float64(len(ids) - i), Record: core.Record{ID: id, Residues: "MKV"}})
	}
	return out
}

func newTestLocal(t *testing.T, cfg Config) *Local {
	t.Helper()
	l := NewLocal(cfg, logging.Nop())
	l.Start(context.Background())
	t.Cleanup(l.Close)
	return l
}

func TestLocal_RunsTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLocal(Config{Workers: 3}, logging.Nop())
	l.Start(context.Background())

	ctx := context.Background()
	handles := make([]core.Handle, 0, 10)
	for i := range 10 {
		id := fmt.Sprintf("r%02d", i)
		h, err := l.Submit(ctx, core.TaskSpec{
			Name: fmt.Sprintf("score-%04d", i),
			Kind: core.TaskKindScore,
			Run: func(context.Context) ([]core.Candidate, error) {
				return candidates(id), nil
			},
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	for i, h := range handles {
		got, err := l.Await(ctx, h)
		require.NoError(t, err)
		require.Equal(t, candidates(fmt.Sprintf("r%02d", i)), got)

		// Await is repeatable.
		again, err := l.Await(ctx, h)
		require.NoError(t, err)
		require.Equal(t, got, again)
	}

	progress, err := l.Progress(core.TaskKindScore)
	require.NoError(t, err)
	require.Equal(t, Progress{Total: 10, Completed: 10}, progress)

	l.Close()
}

func TestLocal_RetriesUntilSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	l := NewLocal(Config{Workers: 2, MaxAttempts: 3}, logging.Nop())
	l.Start(context.Background())
	defer l.Close()

	var calls atomic.Int32
	h, err := l.Submit(context.Background(), core.TaskSpec{
		Name: "score-0000",
		Kind: core.TaskKindScore,
		Run: func(context.Context) ([]core.Candidate, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("transient")
			}
			return candidates("a"), nil
		},
	})
	require.NoError(t, err)

	got, err := l.Await(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, candidates("a"), got)
	require.Equal(t, int32(3), calls.Load())

	tasks, err := l.store.ListTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, TaskStatusCompleted, tasks[0].Status)
	require.Equal(t, 3, tasks[0].Attempt)
	require.Len(t, tasks[0].Errors, 2)
}

func TestLocal_PermanentFailure(t *testing.T) {
	l := newTestLocal(t, Config{Workers: 1, MaxAttempts: 2})

	cause := errors.New("bad record")
	var calls atomic.Int32
	h, err := l.Submit(context.Background(), core.TaskSpec{
		Name: "score-0007",
		Kind: core.TaskKindScore,
		Run: func(context.Context) ([]core.Candidate, error) {
			calls.Add(1)
			return nil, cause
		},
	})
	require.NoError(t, err)

	_, err = l.Await(context.Background(), h)
	var failure *core.TaskFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "score-0007", failure.Task)
	require.Equal(t, 2, failure.Attempts)
	require.ErrorIs(t, err, cause)
	require.Equal(t, int32(2), calls.Load())
}

func TestLocal_RecoversPanics(t *testing.T) {
	l := newTestLocal(t, Config{Workers: 1, MaxAttempts: 1})

	h, err := l.Submit(context.Background(), core.TaskSpec{
		Name: "reduce-0000",
		Kind: core.TaskKindReduce,
		Run: func(context.Context) ([]core.Candidate, error) {
			panic("index out of range")
		},
	})
	require.NoError(t, err)

	_, err = l.Await(context.Background(), h)
	require.ErrorIs(t, err, ErrTaskPanicked)

	// The worker survives and keeps serving.
	h, err = l.Submit(context.Background(), core.TaskSpec{
		Name: "reduce-0001",
		Kind: core.TaskKindReduce,
		Run:  func(context.Context) ([]core.Candidate, error) { return candidates("b"), nil },
	})
	require.NoError(t, err)
	got, err := l.Await(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, candidates("b"), got)
}

func TestLocal_TaskTimeout(t *testing.T) {
	l := newTestLocal(t, Config{Workers: 1, MaxAttempts: 2, TaskTimeout: 20 * time.Millisecond})

	var calls atomic.Int32
	h, err := l.Submit(context.Background(), core.TaskSpec{
		Name: "score-0000",
		Kind: core.TaskKindScore,
		Run: func(ctx context.Context) ([]core.Candidate, error) {
			calls.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	require.NoError(t, err)

	_, err = l.Await(context.Background(), h)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(2), calls.Load())
}

func TestLocal_CancelledSubmitIsNotRetried(t *testing.T) {
	l := newTestLocal(t, Config{Workers: 1, MaxAttempts: 5})

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var calls atomic.Int32
	h, err := l.Submit(ctx, core.TaskSpec{
		Name: "score-0000",
		Kind: core.TaskKindScore,
		Run: func(ctx context.Context) ([]core.Candidate, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	require.NoError(t, err)

	<-started
	cancel()

	_, err = l.Await(context.Background(), h)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), calls.Load())
}

func TestLocal_ScoreTasksRunBeforeReduceTasks(t *testing.T) {
	// Tasks are queued before the single worker starts so the queue alone
	// decides the order.
	l := NewLocal(Config{Workers: 1}, logging.Nop())
	defer l.Close()

	var mu sync.Mutex
	var order []string
	record := func(name string) core.TaskFunc {
		return func(context.Context) ([]core.Candidate, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	specs := []core.TaskSpec{
		{Name: "reduce-0000", Kind: core.TaskKindReduce, Run: record("reduce-0000")},
		{Name: "score-0000", Kind: core.TaskKindScore, Run: record("score-0000")},
		{Name: "score-0001", Kind: core.TaskKindScore, Run: record("score-0001")},
	}
	handles := make([]core.Handle, 0, len(specs))
	for _, spec := range specs {
		h, err := l.Submit(context.Background(), spec)
		require.NoError(t, err)
		handles = append(handles, h)
	}

	l.Start(context.Background())
	for _, h := range handles {
		_, err := l.Await(context.Background(), h)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"score-0000", "score-0001", "reduce-0000"}, order)
}

func TestLocal_CloseFailsPendingTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLocal(Config{Workers: 1}, logging.Nop())
	h, err := l.Submit(context.Background(), core.TaskSpec{
		Name: "score-0000",
		Kind: core.TaskKindScore,
		Run:  func(context.Context) ([]core.Candidate, error) { return nil, nil },
	})
	require.NoError(t, err)

	l.Close()

	_, err = l.Await(context.Background(), h)
	require.ErrorIs(t, err, ErrClosed)

	_, err = l.Submit(context.Background(), core.TaskSpec{Name: "late", Run: func(context.Context) ([]core.Candidate, error) { return nil, nil }})
	require.ErrorIs(t, err, ErrClosed)
}

func TestLocal_AwaitErrors(t *testing.T) {
	l := newTestLocal(t, Config{Workers: 1})

	_, err := l.Await(context.Background(), core.Handle{Name: "nope"})
	require.ErrorIs(t, err, ErrUnknownTask)

	_, err = l.Submit(context.Background(), core.TaskSpec{Name: "empty"})
	require.Error(t, err)

	block := make(chan struct{})
	defer close(block)
	h, err := l.Submit(context.Background(), core.TaskSpec{
		Name: "score-0000",
		Kind: core.TaskKindScore,
		Run: func(context.Context) ([]core.Candidate, error) {
			<-block
			return nil, nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Await(ctx, h)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
