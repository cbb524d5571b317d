package core

import (
	"strconv"
	"strings"
)

// Record is a single sequence from a query or dataset file.
type Record struct {
	ID       string
	Residues string
}

// Split is a contiguous, record-aligned slice of the dataset handled by one
// score task.
type Split struct {
	Index   int
	Records []Record
}

// Candidate is a dataset record together with its similarity to the query.
type Candidate struct {
	Score  float64
	Record Record
}

// Key identifies a candidate value. Offering the same key twice is a no-op.
func (c Candidate) Key() string {
	score := c.Score
	if score == 0 {
		score = 0 // -0 and +0 are the same score
	}
	var b strings.Builder
	b.Grow(len(c.Record.ID) + len(c.Record.Residues) + 26)
	b.WriteString(strconv.FormatFloat(score, 'g', -1, 64))
	b.WriteByte(0)
	b.WriteString(c.Record.ID)
	b.WriteByte(0)
	b.WriteString(c.Record.Residues)
	return b.String()
}
