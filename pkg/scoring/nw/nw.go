// Package nw scores candidates by their Needleman-Wunsch global alignment
// score against the query, with affine gaps and a substitution matrix.
package nw

import (
	"fmt"
	"strconv"

	"github.com/nemanja-m/protalign/pkg/align"
	"github.com/nemanja-m/protalign/pkg/core"
	"github.com/nemanja-m/protalign/pkg/scoring"
)

const Name = "nw"

func init() {
	scoring.Register(Name, func() scoring.Method {
		return &Method{}
	})
}

type Method struct {
	scoring align.Scoring
}

func (m *Method) Name() string {
	return Name
}

func (m *Method) Describe() string {
	return "global alignment score (Needleman-Wunsch, affine gaps, substitution matrix)"
}

// Configure reads "matrix" (NCBI matrix file, default BLOSUM62), "gap_open"
// (default 10) and "gap_extend" (default 1).
func (m *Method) Configure(config map[string]string) error {
	m.scoring = align.DefaultScoring()

	if path, ok := config["matrix"]; ok && path != "" {
		matrix, err := align.LoadMatrix(path)
		if err != nil {
			return err
		}
		m.scoring.Matrix = matrix
	}
	if v, ok := config["gap_open"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("gap_open: %w", err)
		}
		m.scoring.GapOpen = n
	}
	if v, ok := config["gap_extend"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("gap_extend: %w", err)
		}
		m.scoring.GapExtend = n
	}
	return nil
}

func (m *Method) Validate() error {
	return m.scoring.Validate()
}

// Scoring exposes the configured matrix and gap penalties.
func (m *Method) Scoring() align.Scoring {
	return m.scoring
}

func (m *Method) Score(query, candidate core.Record) (float64, error) {
	s, err := m.scoring.Score(query.Residues, candidate.Residues)
	if err != nil {
		return 0, err
	}
	return float64(s), nil
}
