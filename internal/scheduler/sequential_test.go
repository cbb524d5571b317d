package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/protalign/pkg/core"
)

func TestSequential(t *testing.T) {
	ctx := context.Background()

	t.Run("runs once and caches", func(t *testing.T) {
		s := NewSequential(1)
		calls := 0
		h, err := s.Submit(ctx, core.TaskSpec{
			Name: "score-0000",
			Kind: core.TaskKindScore,
			Run: func(context.Context) ([]core.Candidate, error) {
				calls++
				return candidates("a", "b"), nil
			},
		})
		require.NoError(t, err)
		require.Equal(t, 0, calls)

		for range 2 {
			got, err := s.Await(ctx, h)
			require.NoError(t, err)
			require.Equal(t, candidates("a", "b"), got)
		}
		require.Equal(t, 1, calls)
	})

	t.Run("retries then fails", func(t *testing.T) {
		s := NewSequential(3)
		cause := errors.New("flaky")
		calls := 0
		h, err := s.Submit(ctx, core.TaskSpec{
			Name: "reduce-0001",
			Run: func(context.Context) ([]core.Candidate, error) {
				calls++
				return nil, cause
			},
		})
		require.NoError(t, err)

		_, err = s.Await(ctx, h)
		var failure *core.TaskFailure
		require.ErrorAs(t, err, &failure)
		require.Equal(t, 3, failure.Attempts)
		require.ErrorIs(t, err, cause)
		require.Equal(t, 3, calls)
	})

	t.Run("recovers panics", func(t *testing.T) {
		s := NewSequential(1)
		h, err := s.Submit(ctx, core.TaskSpec{
			Name: "score-0001",
			Run:  func(context.Context) ([]core.Candidate, error) { panic("boom") },
		})
		require.NoError(t, err)
		_, err = s.Await(ctx, h)
		require.ErrorIs(t, err, ErrTaskPanicked)
	})

	t.Run("unknown handle", func(t *testing.T) {
		_, err := NewSequential(1).Await(ctx, core.Handle{})
		require.ErrorIs(t, err, ErrUnknownTask)
	})
}
