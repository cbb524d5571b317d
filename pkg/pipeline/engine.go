// Package pipeline drives the scoring phase: it splits the dataset, runs
// one score task per split and one reduce task per partition on a runtime,
// merges the reducer outputs and persists the final top-K result set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/nemanja-m/protalign/internal/shared/logging"
	"github.com/nemanja-m/protalign/pkg/core"
	"github.com/nemanja-m/protalign/pkg/results"
	"github.com/nemanja-m/protalign/pkg/scoring"
	"github.com/nemanja-m/protalign/pkg/split"
	"github.com/nemanja-m/protalign/pkg/topk"
)

type Stage string

const (
	StageScore  Stage = "score"
	StageReduce Stage = "reduce"
)

// Event reports that Done of Total tasks of a stage have finished.
type Event struct {
	Stage Stage
	Done  int
	Total int
}

type Config struct {
	Query core.Record

	// Open yields the dataset records. Source names the dataset in errors.
	Open   split.Opener
	Source string

	// Output is the folder receiving results.FileName.
	Output string

	K int

	// RecordsPerSplit of 0 derives the split size from the record count
	// and Parallelism.
	RecordsPerSplit int
	Parallelism     int
	Reducers        int

	Scorer  scoring.Scorer
	Runtime core.Runtime
	Logger  logging.Logger

	// Progress, if set, is called after every finished task.
	Progress func(Event)
}

type Result struct {
	Path       string
	Candidates []core.Candidate

	Records  int
	Splits   int
	Reducers int
	Duration time.Duration
}

type Engine struct {
	config Config
	logger logging.Logger
}

func NewEngine(config Config) (*Engine, error) {
	if config.Parallelism <= 0 {
		config.Parallelism = runtime.NumCPU()
	}
	if config.Reducers == 0 {
		config.Reducers = 1
	}
	if err := validate(config); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{config: config, logger: logger}, nil
}

func validate(config Config) error {
	var errs []error
	if config.K < 0 {
		errs = append(errs, fmt.Errorf("k must not be negative, got %d", config.K))
	}
	if config.RecordsPerSplit < 0 {
		errs = append(errs, fmt.Errorf("records per split must not be negative, got %d", config.RecordsPerSplit))
	}
	if config.Reducers < 1 {
		errs = append(errs, fmt.Errorf("reducers must be at least 1, got %d", config.Reducers))
	}
	if config.Query.Residues == "" {
		errs = append(errs, errors.New("query has no residues"))
	}
	if config.Open == nil {
		errs = append(errs, errors.New("dataset opener is required"))
	}
	if config.Output == "" {
		errs = append(errs, errors.New("output folder is required"))
	}
	if config.Scorer == nil {
		errs = append(errs, errors.New("scorer is required"))
	}
	if config.Runtime == nil {
		errs = append(errs, errors.New("runtime is required"))
	}
	return errors.Join(errs...)
}

// Run executes the scoring phase. The result file is written only when
// every task succeeded.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	// Cancelling on return stops tasks still queued after a failure.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recordsPerSplit, err := e.recordsPerSplit()
	if err != nil {
		return nil, err
	}

	handles, records, err := e.submitScoreTasks(ctx, recordsPerSplit)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Score tasks submitted",
		"source", e.config.Source,
		"records", humanize.Comma(int64(records)),
		"splits", len(handles),
		"records_per_split", recordsPerSplit,
	)

	partitions, err := e.awaitScoreTasks(ctx, handles)
	if err != nil {
		return nil, err
	}

	reduced, err := e.runReduceTasks(ctx, partitions)
	if err != nil {
		return nil, err
	}

	final := topk.Merge(e.config.K, reduced...)
	path := filepath.Join(e.config.Output, results.FileName)
	if err := results.WriteCandidates(path, slices.Values(final)); err != nil {
		return nil, fmt.Errorf("writing result set: %w", err)
	}

	result := &Result{
		Path:       path,
		Candidates: final,
		Records:    records,
		Splits:     len(handles),
		Reducers:   e.config.Reducers,
		Duration:   time.Since(start),
	}
	e.logger.Info("Result set written",
		"path", path,
		"candidates", len(final),
		"k", e.config.K,
		"records", humanize.Comma(int64(records)),
		"duration", result.Duration.Round(time.Millisecond).String(),
	)
	return result, nil
}

func (e *Engine) recordsPerSplit() (int, error) {
	if e.config.RecordsPerSplit > 0 {
		return e.config.RecordsPerSplit, nil
	}
	total, err := split.Count(e.config.Open)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return split.DefaultRecordsPerSplit(total, e.config.Parallelism), nil
}

func (e *Engine) submitScoreTasks(ctx context.Context, recordsPerSplit int) ([]core.Handle, int, error) {
	dec, err := e.config.Open()
	if err != nil {
		return nil, 0, err
	}
	defer dec.Close()

	var (
		handles []core.Handle
		records int
		query   = e.config.Query
		scorer  = e.config.Scorer
		k       = e.config.K
	)
	splitter := split.New(recordsPerSplit, e.config.Source)
	err = splitter.Split(dec, func(s core.Split) error {
		records += len(s.Records)
		h, err := e.config.Runtime.Submit(ctx, core.TaskSpec{
			Name: fmt.Sprintf("score-%04d", s.Index),
			Kind: core.TaskKindScore,
			Run: func(ctx context.Context) ([]core.Candidate, error) {
				return ScoreSplit(ctx, s, query, scorer, k)
			},
		})
		if err != nil {
			return fmt.Errorf("submitting split %d: %w", s.Index, err)
		}
		handles = append(handles, h)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return handles, records, nil
}

// awaitScoreTasks collects score task outputs concurrently and shuffles
// them into one partition per reducer.
func (e *Engine) awaitScoreTasks(ctx context.Context, handles []core.Handle) ([][]core.Candidate, error) {
	reducers := e.config.Reducers
	partitions := make([][]core.Candidate, reducers)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		g.Go(func() error {
			out, err := e.config.Runtime.Await(gctx, h)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, c := range out {
				p := core.Partition(c.Key(), reducers)
				partitions[p] = append(partitions[p], c)
			}
			done++
			e.progress(Event{Stage: StageScore, Done: done, Total: len(handles)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return partitions, nil
}

func (e *Engine) runReduceTasks(ctx context.Context, partitions [][]core.Candidate) ([][]core.Candidate, error) {
	k := e.config.K
	handles := make([]core.Handle, len(partitions))
	for i, partition := range partitions {
		h, err := e.config.Runtime.Submit(ctx, core.TaskSpec{
			Name: fmt.Sprintf("reduce-%04d", i),
			Kind: core.TaskKindReduce,
			Run: func(ctx context.Context) ([]core.Candidate, error) {
				return ReducePartition(ctx, partition, k)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("submitting reducer %d: %w", i, err)
		}
		handles[i] = h
	}

	reduced := make([][]core.Candidate, len(handles))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			out, err := e.config.Runtime.Await(gctx, h)
			if err != nil {
				return err
			}
			reduced[i] = out

			mu.Lock()
			defer mu.Unlock()
			done++
			e.progress(Event{Stage: StageReduce, Done: done, Total: len(handles)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reduced, nil
}

func (e *Engine) progress(ev Event) {
	if e.config.Progress != nil {
		e.config.Progress(ev)
	}
	e.logger.Debug("Task finished", "stage", string(ev.Stage), "done", ev.Done, "total", ev.Total)
}
