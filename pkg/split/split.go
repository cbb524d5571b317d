// Package split divides a stream of sequence records into contiguous,
// record-aligned splits, one per score task.
package split

import (
	"errors"
	"fmt"
	"io"

	"github.com/nemanja-m/protalign/pkg/core"
)

// Decoder yields whole records in file order and io.EOF after the last one.
type Decoder interface {
	Read() (core.Record, error)
	Close() error
}

// Opener opens a fresh decoder positioned at the first record. Opening twice
// must yield the same records.
type Opener func() (Decoder, error)

var ErrEmptyResidues = errors.New("record has no residues")

type Splitter struct {
	recordsPerSplit int
	source          string
}

// New returns a splitter emitting recordsPerSplit records per split. Values
// below 1 are treated as 1.
func New(recordsPerSplit int, source string) *Splitter {
	return &Splitter{recordsPerSplit: max(recordsPerSplit, 1), source: source}
}

func (s *Splitter) RecordsPerSplit() int { return s.recordsPerSplit }

// Split reads dec to the end and calls emit for every split in order. It
// stops at the first decoding error, malformed record or emit error.
func (s *Splitter) Split(dec Decoder, emit func(core.Split) error) error {
	var (
		index   int
		number  int
		records = make([]core.Record, 0, s.recordsPerSplit)
	)

	flush := func() error {
		if len(records) == 0 {
			return nil
		}
		split := core.Split{Index: index, Records: records}
		index++
		records = make([]core.Record, 0, s.recordsPerSplit)
		return emit(split)
	}

	for {
		rec, err := dec.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		number++
		if err != nil {
			return s.malformed(number, err)
		}
		if rec.Residues == "" {
			return s.malformed(number, fmt.Errorf("%w: %q", ErrEmptyResidues, rec.ID))
		}

		records = append(records, rec)
		if len(records) == s.recordsPerSplit {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *Splitter) malformed(number int, err error) error {
	var mie *core.MalformedInputError
	if errors.As(err, &mie) {
		return err
	}
	return &core.MalformedInputError{Source: s.source, Record: number, Err: err}
}

// Collect returns every split produced from dec.
func (s *Splitter) Collect(dec Decoder) ([]core.Split, error) {
	var splits []core.Split
	err := s.Split(dec, func(split core.Split) error {
		splits = append(splits, split)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return splits, nil
}

// Count returns the number of records the opener yields.
func Count(open Opener) (int, error) {
	dec, err := open()
	if err != nil {
		return 0, err
	}
	defer dec.Close()

	n := 0
	for {
		_, err := dec.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}

// DefaultRecordsPerSplit spreads total records evenly over parallelism
// splits.
func DefaultRecordsPerSplit(total, parallelism int) int {
	parallelism = max(parallelism, 1)
	return max((total+parallelism-1)/parallelism, 1)
}

// SliceDecoder decodes records from memory.
type SliceDecoder struct {
	records []core.Record
	pos     int
}

func NewSliceDecoder(records []core.Record) *SliceDecoder {
	return &SliceDecoder{records: records}
}

func (d *SliceDecoder) Read() (core.Record, error) {
	if d.pos >= len(d.records) {
		return core.Record{}, io.EOF
	}
	rec := d.records[d.pos]
	d.pos++
	return rec, nil
}

func (d *SliceDecoder) Close() error { return nil }

// SliceOpener opens a new SliceDecoder over records on every call.
func SliceOpener(records []core.Record) Opener {
	return func() (Decoder, error) {
		return NewSliceDecoder(records), nil
	}
}
