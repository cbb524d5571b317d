// Package align implements substitution-matrix based global alignment of
// protein sequences and a center-star multiple alignment.
package align

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrUnknownResidue = errors.New("residue not in substitution matrix")

// Matrix is a substitution matrix indexed by residue letter.
type Matrix struct {
	Name     string
	alphabet string
	index    [256]int8
	scores   [][]int
}

// ParseMatrix reads a matrix in NCBI text format: '#' comment lines, one
// header line of residue letters, then one row per residue starting with its
// letter.
func ParseMatrix(r io.Reader) (*Matrix, error) {
	m := &Matrix{}
	for i := range m.index {
		m.index[i] = -1
	}

	scanner := bufio.NewScanner(r)
	var columns []byte
	rows := map[byte][]int{}
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)

		if columns == nil {
			for _, f := range fields {
				if len(f) != 1 {
					return nil, fmt.Errorf("line %d: invalid column label %q", line, f)
				}
				columns = append(columns, upper(f[0]))
			}
			continue
		}

		if len(fields[0]) != 1 {
			return nil, fmt.Errorf("line %d: invalid row label %q", line, fields[0])
		}
		if len(fields)-1 != len(columns) {
			return nil, fmt.Errorf("line %d: expected %d scores, got %d", line, len(columns), len(fields)-1)
		}
		row := make([]int, len(columns))
		for i, f := range fields[1:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			row[i] = v
		}
		rows[upper(fields[0][0])] = row
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, errors.New("substitution matrix has no header")
	}

	m.alphabet = string(columns)
	m.scores = make([][]int, len(columns))
	for i, c := range columns {
		row, ok := rows[c]
		if !ok {
			return nil, fmt.Errorf("substitution matrix has no row for %q", c)
		}
		m.scores[i] = row
		m.index[c] = int8(i)
		m.index[lower(c)] = int8(i)
	}
	return m, nil
}

// LoadMatrix parses the matrix file at path.
func LoadMatrix(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("parse matrix %s: %w", path, err)
	}
	m.Name = path
	return m, nil
}

// Alphabet returns the residue letters in header order.
func (m *Matrix) Alphabet() string { return m.alphabet }

// Score returns the substitution score for a pair of residues.
func (m *Matrix) Score(a, b byte) (int, error) {
	i, j := m.index[a], m.index[b]
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResidue, a)
	}
	if j < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResidue, b)
	}
	return m.scores[i][j], nil
}

// encode maps residues to matrix indices.
func (m *Matrix) encode(s string) ([]int8, error) {
	out := make([]int8, len(s))
	for i := 0; i < len(s); i++ {
		idx := m.index[s[i]]
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q at position %d", ErrUnknownResidue, s[i], i+1)
		}
		out[i] = idx
	}
	return out, nil
}

func upper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}
