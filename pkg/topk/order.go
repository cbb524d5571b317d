package topk

import (
	"cmp"
	"strings"

	"github.com/nemanja-m/protalign/pkg/core"
)

// Compare orders candidates by descending rank: a negative result means a
// outranks b. Higher scores rank first; equal scores fall back to ascending
// identifier and then ascending residues. It returns 0 only for equal values.
func Compare(a, b core.Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := strings.Compare(a.Record.ID, b.Record.ID); c != 0 {
		return c
	}
	return strings.Compare(a.Record.Residues, b.Record.Residues)
}

// Outranks reports whether a is ranked strictly above b.
func Outranks(a, b core.Candidate) bool {
	return Compare(a, b) < 0
}
