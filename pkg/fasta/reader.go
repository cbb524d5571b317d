// Package fasta decodes FASTA/FASTQ files, plain or gzip-compressed, into
// sequence records.
package fasta

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/nemanja-m/protalign/pkg/core"
)

var ErrNoRecords = errors.New("no sequence records")

// Reader decodes records from one or more files in order.
type Reader struct {
	paths  []string
	next   int
	reader *fastx.Reader
	path   string
	record int
}

// Open returns a reader over paths. "-" reads standard input.
func Open(paths ...string) (*Reader, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input files")
	}
	r := &Reader{paths: paths}
	if err := r.advance(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) advance() error {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
	if r.next >= len(r.paths) {
		return io.EOF
	}
	r.path = r.paths[r.next]
	r.next++
	r.record = 0

	// No alphabet check here; scorers reject residues they cannot score.
	reader, err := fastx.NewReader(seq.Unlimit, r.path, "")
	if err != nil {
		return &core.MalformedInputError{Source: r.path, Err: err}
	}
	r.reader = reader
	return nil
}

// Read returns the next record, or io.EOF once every file is exhausted.
func (r *Reader) Read() (core.Record, error) {
	for r.reader != nil {
		rec, err := r.reader.Read()
		if err == io.EOF {
			if err := r.advance(); err != nil {
				return core.Record{}, err
			}
			continue
		}
		r.record++
		if err != nil {
			return core.Record{}, &core.MalformedInputError{Source: r.path, Record: r.record, Err: err}
		}
		return core.Record{
			ID:       string(rec.ID),
			Residues: strings.ToUpper(string(rec.Seq.Seq)),
		}, nil
	}
	return core.Record{}, io.EOF
}

func (r *Reader) Close() error {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
	r.next = len(r.paths)
	return nil
}

// ReadFirst returns the first record of path. Further records are ignored.
func ReadFirst(path string) (core.Record, error) {
	r, err := Open(path)
	if err != nil {
		return core.Record{}, err
	}
	defer r.Close()

	rec, err := r.Read()
	if err == io.EOF {
		return core.Record{}, &core.MalformedInputError{Source: path, Err: ErrNoRecords}
	}
	if err != nil {
		return core.Record{}, err
	}
	if rec.Residues == "" {
		return core.Record{}, &core.MalformedInputError{Source: path, Record: 1, Err: fmt.Errorf("query %q has no residues", rec.ID)}
	}
	return rec, nil
}
