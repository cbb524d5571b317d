// Package wfa scores candidates with a gap-affine wavefront global alignment.
// The score is matches minus mismatched and gapped columns.
package wfa

import (
	"strconv"

	"github.com/shenwei356/wfa"

	"github.com/nemanja-m/protalign/pkg/core"
	"github.com/nemanja-m/protalign/pkg/scoring"
)

const Name = "wfa"

func init() {
	scoring.Register(Name, func() scoring.Method {
		return &Method{}
	})
}

type Method struct {
	adaptive bool
}

func (m *Method) Name() string {
	return Name
}

func (m *Method) Describe() string {
	return "wavefront global alignment identity score (matches minus differences)"
}

// Configure reads "adaptive" to enable wavefront adaptive reduction.
func (m *Method) Configure(config map[string]string) error {
	if v, ok := config["adaptive"]; ok {
		adaptive, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		m.adaptive = adaptive
	}
	return nil
}

func (m *Method) Validate() error {
	return nil
}

// Score aligns with a fresh aligner per call; aligners are not safe for
// concurrent use.
func (m *Method) Score(query, candidate core.Record) (float64, error) {
	algn := wfa.New(wfa.DefaultPenalties, &wfa.Options{GlobalAlignment: true})
	defer wfa.RecycleAligner(algn)
	if m.adaptive {
		algn.AdaptiveReduction(wfa.DefaultAdaptiveOption)
	}

	result, err := algn.Align([]byte(query.Residues), []byte(candidate.Residues))
	if err != nil {
		return 0, err
	}
	defer wfa.RecycleAlignmentResult(result)

	matches := float64(result.Matches)
	return matches - (float64(result.AlignLen) - matches), nil
}
