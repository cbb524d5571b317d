package pipeline

import (
	"context"
	"errors"
	"math"

	"github.com/nemanja-m/protalign/pkg/core"
	"github.com/nemanja-m/protalign/pkg/scoring"
	"github.com/nemanja-m/protalign/pkg/topk"
)

var ErrNaNScore = errors.New("scorer returned NaN")

// ScoreSplit scores every record of split against query and returns at most
// k candidates in rank order. Any scorer failure fails the whole split.
func ScoreSplit(ctx context.Context, split core.Split, query core.Record, scorer scoring.Scorer, k int) ([]core.Candidate, error) {
	top := topk.New(k)
	for _, rec := range split.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score, err := scorer.Score(query, rec)
		if err != nil {
			return nil, &core.ScoringError{Split: split.Index, Record: rec.ID, Err: err}
		}
		if math.IsNaN(score) {
			return nil, &core.ScoringError{Split: split.Index, Record: rec.ID, Err: ErrNaNScore}
		}
		top.Offer(core.Candidate{Score: score, Record: rec})
	}
	return top.Sorted(), nil
}

// ReducePartition folds one shuffle partition down to k candidates.
func ReducePartition(ctx context.Context, partition []core.Candidate, k int) ([]core.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return topk.Merge(k, partition), nil
}
