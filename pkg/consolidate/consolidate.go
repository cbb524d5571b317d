// Package consolidate turns a persisted top-K result set into the final
// multiple alignment report.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/nemanja-m/protalign/internal/shared/logging"
	"github.com/nemanja-m/protalign/pkg/core"
	"github.com/nemanja-m/protalign/pkg/results"
	"github.com/nemanja-m/protalign/pkg/topk"
)

const ReportName = "report"

var ErrTooFewSequences = errors.New("need the query and at least one candidate")

// Aligner renders a multiple alignment of records, the first of which is
// the query.
type Aligner interface {
	Align(records []core.Record) (string, error)
}

type Config struct {
	// Output is the folder holding results.FileName; the report is written
	// next to it.
	Output  string
	Query   core.Record
	Aligner Aligner
	Logger  logging.Logger
}

type Consolidator struct {
	config Config
	logger logging.Logger
}

// Report describes a written alignment report.
type Report struct {
	Path       string
	Candidates []core.Candidate
	Sequences  int
	Bytes      int
}

func New(config Config) (*Consolidator, error) {
	if config.Output == "" {
		return nil, errors.New("output folder is required")
	}
	if config.Aligner == nil {
		return nil, errors.New("aligner is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Consolidator{config: config, logger: logger}, nil
}

// Run loads the result set, orders it by rank, prepends the query and
// writes the aligner's output to <Output>/report.
func (c *Consolidator) Run(ctx context.Context) (*Report, error) {
	source := filepath.Join(c.config.Output, results.FileName)
	candidates, err := results.ReadCandidates(source)
	if err != nil {
		return nil, fmt.Errorf("reading result set: %w", err)
	}
	slices.SortStableFunc(candidates, topk.Compare)

	c.logger.Info("Loaded result set", "path", source, "candidates", len(candidates))
	for rank, cand := range candidates {
		c.logger.Info("Candidate",
			"rank", rank+1,
			"score", results.FormatScore(cand.Score),
			"id", cand.Record.ID,
			"residues", cand.Record.Residues,
		)
	}

	records := make([]core.Record, 0, len(candidates)+1)
	records = append(records, c.config.Query)
	for _, cand := range candidates {
		records = append(records, cand.Record)
	}

	text, err := c.align(ctx, records)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(c.config.Output, ReportName)
	if err := results.WriteText(path, text); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}
	c.logger.Info("Report written",
		"path", path,
		"sequences", len(records),
		"size", humanize.Bytes(uint64(len(text))),
	)
	return &Report{Path: path, Candidates: candidates, Sequences: len(records), Bytes: len(text)}, nil
}

func (c *Consolidator) align(ctx context.Context, records []core.Record) (string, error) {
	if c.config.Query.Residues == "" {
		return "", &core.AlignmentError{Sequences: len(records), Err: errors.New("query has no residues")}
	}
	if len(records) < 2 {
		return "", &core.AlignmentError{Sequences: len(records), Err: ErrTooFewSequences}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := c.config.Aligner.Align(records)
	if err != nil {
		var ae *core.AlignmentError
		if errors.As(err, &ae) {
			return "", err
		}
		return "", &core.AlignmentError{Sequences: len(records), Err: err}
	}
	return text, nil
}
