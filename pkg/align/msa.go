package align

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nemanja-m/protalign/pkg/core"
)

var ErrTooFewSequences = errors.New("multiple alignment needs at least 2 sequences")

const DefaultBlockWidth = 60

// Profile is a multiple alignment: one gapped row per input sequence, all of
// equal length, in input order.
type Profile struct {
	IDs  []string
	Rows []string
}

func (p *Profile) Columns() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return len(p.Rows[0])
}

// CenterStar aligns every sequence to the first one and merges the pairwise
// alignments into a single profile.
type CenterStar struct {
	Scoring    Scoring
	BlockWidth int
}

func NewCenterStar(scoring Scoring) *CenterStar {
	return &CenterStar{Scoring: scoring, BlockWidth: DefaultBlockWidth}
}

// Multiple builds the profile. The first record is the center.
func (c *CenterStar) Multiple(records []core.Record) (*Profile, error) {
	if len(records) < 2 {
		return nil, ErrTooFewSequences
	}
	if err := c.Scoring.Validate(); err != nil {
		return nil, err
	}

	center := records[0].Residues
	rows := []string{center}
	for _, rec := range records[1:] {
		pair, err := c.Scoring.Align(center, rec.Residues)
		if err != nil {
			return nil, fmt.Errorf("align %s to %s: %w", label(rec, len(rows)), label(records[0], 0), err)
		}
		rows = mergeRows(rows, pair.A, pair.B)
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = label(rec, i)
	}
	return &Profile{IDs: ids, Rows: rows}, nil
}

// Align builds the profile and renders it as a text report.
func (c *CenterStar) Align(records []core.Record) (string, error) {
	p, err := c.Multiple(records)
	if err != nil {
		return "", err
	}
	return c.Report(p), nil
}

// mergeRows adds a new row to an alignment whose first row is the gapped
// center, given the pairwise alignment (gc, gs) of the center and the new
// sequence. Gap columns already in the alignment stay gaps in the new row;
// gaps of gc become new columns filled with gaps in the existing rows.
func mergeRows(rows []string, gc, gs string) []string {
	m0 := rows[0]
	out := make([][]byte, len(rows)+1)
	last := len(rows)

	i, j := 0, 0
	for i < len(m0) || j < len(gc) {
		switch {
		case i < len(m0) && m0[i] == Gap:
			for r := range rows {
				out[r] = append(out[r], rows[r][i])
			}
			out[last] = append(out[last], Gap)
			i++
		case j < len(gc) && gc[j] == Gap:
			for r := range rows {
				out[r] = append(out[r], Gap)
			}
			out[last] = append(out[last], gs[j])
			j++
		default:
			for r := range rows {
				out[r] = append(out[r], rows[r][i])
			}
			out[last] = append(out[last], gs[j])
			i++
			j++
		}
	}

	merged := make([]string, len(out))
	for r := range out {
		merged[r] = string(out[r])
	}
	return merged
}

// Report renders p in Clustal-like blocks with a conservation line marking
// fully conserved columns with '*'.
func (c *CenterStar) Report(p *Profile) string {
	width := c.BlockWidth
	if width <= 0 {
		width = DefaultBlockWidth
	}
	nameWidth := 0
	for _, id := range p.IDs {
		nameWidth = max(nameWidth, len(id))
	}
	nameWidth += 2

	var b strings.Builder
	matrix := "custom"
	if c.Scoring.Matrix != nil && c.Scoring.Matrix.Name != "" {
		matrix = c.Scoring.Matrix.Name
	}
	fmt.Fprintf(&b, "CLUSTAL multiple sequence alignment (center-star, %s, gap open %d, gap extend %d)\n",
		matrix, c.Scoring.GapOpen, c.Scoring.GapExtend)
	fmt.Fprintf(&b, "%d sequences, %d columns\n", len(p.Rows), p.Columns())

	for start := 0; start < p.Columns(); start += width {
		end := min(start+width, p.Columns())
		b.WriteByte('\n')
		for r, row := range p.Rows {
			fmt.Fprintf(&b, "%-*s%s\n", nameWidth, p.IDs[r], row[start:end])
		}
		b.WriteString(strings.Repeat(" ", nameWidth))
		b.WriteString(conservation(p.Rows, start, end))
		b.WriteByte('\n')
	}
	return b.String()
}

func conservation(rows []string, start, end int) string {
	line := make([]byte, end-start)
	for col := start; col < end; col++ {
		mark := byte('*')
		c := rows[0][col]
		for _, row := range rows[1:] {
			if row[col] != c {
				mark = ' '
				break
			}
		}
		if c == Gap {
			mark = ' '
		}
		line[col-start] = mark
	}
	return strings.TrimRight(string(line), " ")
}

func label(rec core.Record, i int) string {
	if rec.ID != "" {
		return rec.ID
	}
	return fmt.Sprintf("seq%d", i)
}
