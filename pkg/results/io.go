// Package results persists candidate sets as tab-separated text:
// score<TAB>residues<TAB>identifier, one candidate per line.
package results

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nemanja-m/protalign/pkg/core"
)

const (
	// FileName is the FinalResultSet file inside the output folder.
	FileName = "topk.tsv"

	DefaultBufferSize = 1024 * 1024      // 1MB
	MaxLineSize       = 64 * 1024 * 1024 // long single-line sequences
)

// FindFiles expands a doublestar pattern to the regular files it matches,
// sorted by path. A pattern without meta characters names a single file.
func FindFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, name := range matches {
		info, err := os.Stat(name)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			files = append(files, name)
		}
	}
	slices.Sort(files)
	return files, nil
}

// FormatScore renders a score so that parsing it yields the same float64.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}

// WriteCandidates writes candidates to filePath in iteration order. The file
// is replaced atomically so readers never observe a partial result set.
func WriteCandidates(filePath string, candidates iter.Seq[core.Candidate]) error {
	return writeAtomic(filePath, func(w io.Writer) error {
		bw := bufio.NewWriterSize(w, DefaultBufferSize)
		for c := range candidates {
			if strings.ContainsAny(c.Record.ID, "\t\n") || strings.ContainsAny(c.Record.Residues, "\t\n") {
				return fmt.Errorf("candidate %q contains a tab or newline", c.Record.ID)
			}
			line := FormatScore(c.Score) + "\t" + c.Record.Residues + "\t" + c.Record.ID + "\n"
			if _, err := bw.WriteString(line); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// ReadCandidates parses a result file written by WriteCandidates. Lines with
// only score and residues are accepted and get an empty identifier.
func ReadCandidates(filePath string) ([]core.Candidate, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, DefaultBufferSize), MaxLineSize)

	var candidates []core.Candidate
	for number := 1; scanner.Scan(); number++ {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%s:%d: expected score<TAB>residues[<TAB>identifier], got %d field(s)", filePath, number, len(fields))
		}
		score, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid score: %w", filePath, number, err)
		}
		if fields[1] == "" {
			return nil, fmt.Errorf("%s:%d: empty residues", filePath, number)
		}
		c := core.Candidate{Score: score, Record: core.Record{Residues: fields[1]}}
		if len(fields) == 3 {
			c.Record.ID = fields[2]
		}
		candidates = append(candidates, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// WriteText atomically replaces filePath with text.
func WriteText(filePath, text string) error {
	return writeAtomic(filePath, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

func writeAtomic(filePath string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}
