package align

import (
	"errors"
	"slices"
)

const (
	Gap = '-'

	negInf = -(1 << 30)
)

// Scoring parameterizes global alignment. A gap of length L costs
// GapOpen + (L-1)*GapExtend.
type Scoring struct {
	Matrix    *Matrix
	GapOpen   int
	GapExtend int
}

// DefaultScoring is BLOSUM62 with gap open 10 and extend 1.
func DefaultScoring() Scoring {
	return Scoring{Matrix: Blosum62(), GapOpen: 10, GapExtend: 1}
}

func (s Scoring) Validate() error {
	if s.Matrix == nil {
		return errors.New("no substitution matrix")
	}
	if s.GapOpen < 0 || s.GapExtend < 0 {
		return errors.New("gap penalties must not be negative")
	}
	return nil
}

func (s Scoring) gap(length int) int {
	if length <= 0 {
		return 0
	}
	return s.GapOpen + (length-1)*s.GapExtend
}

// Score returns the optimal global alignment score of a and b using two rows
// of the dynamic programming matrix.
func (s Scoring) Score(a, b string) (int, error) {
	x, err := s.Matrix.encode(a)
	if err != nil {
		return 0, err
	}
	y, err := s.Matrix.encode(b)
	if err != nil {
		return 0, err
	}

	n := len(y)
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	f := make([]int, n+1)
	for j := 1; j <= n; j++ {
		prev[j] = -s.gap(j)
		f[j] = negInf
	}

	for i := 1; i <= len(x); i++ {
		cur[0] = -s.gap(i)
		e := negInf
		row := s.Matrix.scores[x[i-1]]
		for j := 1; j <= n; j++ {
			e = max(e-s.GapExtend, cur[j-1]-s.GapOpen)
			f[j] = max(f[j]-s.GapExtend, prev[j]-s.GapOpen)
			cur[j] = max(prev[j-1]+row[y[j-1]], e, f[j])
		}
		prev, cur = cur, prev
	}
	return prev[n], nil
}

// Pair is a global pairwise alignment. A and B have equal length and use Gap
// for insertions.
type Pair struct {
	A, B  string
	Score int
}

type state int

const (
	stateMatch state = iota
	stateGapA        // gap in a, residue from b
	stateGapB        // residue from a, gap in b
)

// Align returns an optimal global alignment of a and b. Ties prefer a match
// over a gap in a over a gap in b.
func (s Scoring) Align(a, b string) (Pair, error) {
	x, err := s.Matrix.encode(a)
	if err != nil {
		return Pair{}, err
	}
	y, err := s.Matrix.encode(b)
	if err != nil {
		return Pair{}, err
	}

	m, n := len(x), len(y)
	h := newTable(m+1, n+1)
	e := newTable(m+1, n+1)
	f := newTable(m+1, n+1)

	e[0][0], f[0][0] = negInf, negInf
	for i := 1; i <= m; i++ {
		h[i][0] = -s.gap(i)
		f[i][0] = h[i][0]
		e[i][0] = negInf
	}
	for j := 1; j <= n; j++ {
		h[0][j] = -s.gap(j)
		e[0][j] = h[0][j]
		f[0][j] = negInf
	}

	for i := 1; i <= m; i++ {
		row := s.Matrix.scores[x[i-1]]
		for j := 1; j <= n; j++ {
			e[i][j] = max(e[i][j-1]-s.GapExtend, h[i][j-1]-s.GapOpen)
			f[i][j] = max(f[i-1][j]-s.GapExtend, h[i-1][j]-s.GapOpen)
			h[i][j] = max(h[i-1][j-1]+row[y[j-1]], e[i][j], f[i][j])
		}
	}

	outA := make([]byte, 0, m+n)
	outB := make([]byte, 0, m+n)
	i, j, st := m, n, stateMatch
	for i > 0 || j > 0 {
		switch st {
		case stateMatch:
			switch {
			case i > 0 && j > 0 && h[i][j] == h[i-1][j-1]+s.Matrix.scores[x[i-1]][y[j-1]]:
				outA = append(outA, a[i-1])
				outB = append(outB, b[j-1])
				i--
				j--
			case j > 0 && h[i][j] == e[i][j]:
				st = stateGapA
			default:
				st = stateGapB
			}
		case stateGapA:
			if e[i][j] == h[i][j-1]-s.GapOpen {
				st = stateMatch
			}
			outA = append(outA, Gap)
			outB = append(outB, b[j-1])
			j--
		case stateGapB:
			if f[i][j] == h[i-1][j]-s.GapOpen {
				st = stateMatch
			}
			outA = append(outA, a[i-1])
			outB = append(outB, Gap)
			i--
		}
	}
	slices.Reverse(outA)
	slices.Reverse(outB)

	return Pair{A: string(outA), B: string(outB), Score: h[m][n]}, nil
}

func newTable(rows, cols int) [][]int {
	cells := make([]int, rows*cols)
	table := make([][]int, rows)
	for i := range table {
		table[i] = cells[i*cols : (i+1)*cols]
	}
	return table
}
