package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/protalign/pkg/results"
)

const dataset = `>A
MKTAYIAKQRQISFVKSHFSRQ
>B
MKTAYIAKQRQISFVKSHFSRQLEERLGLIEVQ
>C
GSHMLEDPVDAFQ
>D
MKTAYIAKQRQISFVKSHFSR
>E
MSTNPKPQRKTKRNTNRRPQDVKFPGG
`

func writeInputs(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	files := map[string]string{
		"query.fa":     ">query\nMKTAYIAKQRQISFVKSHFSRQ\n",
		"db/part1.fa":  dataset,
		"scoring.yaml": "algorithm: nw\noptions:\n  gap_open: 10\n  gap_extend: 1\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_Usage(t *testing.T) {
	dir := writeInputs(t)
	query := filepath.Join(dir, "query.fa")
	db := filepath.Join(dir, "db", "*.fa")
	scoring := filepath.Join(dir, "scoring.yaml")
	out := filepath.Join(dir, "out")

	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"help flag", []string{"run", "--help"}},
		{"single dash help", []string{"run", "-help"}},
		{"missing arguments", []string{"run", query, db}},
		{"k not a number", []string{"run", query, db, scoring, "two", out}},
		{"k zero", []string{"run", query, db, scoring, "0", out}},
		{"unknown flag", []string{"run", "--bogus", query, db, scoring, "2", out}},
		{"bad recordsPerSplit", []string{"run", query, db, scoring, "2", out, "-recordsPerSplit", "-3"}},
		{"unknown command", []string{"align"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.args...)
			require.Equal(t, exitUsage, code)
			require.Contains(t, stdout+stderr, "Usage:")
		})
	}

	_, err := os.Stat(out)
	require.True(t, os.IsNotExist(err))
}

func TestExecute_HelpDescribesParameters(t *testing.T) {
	_, stdout, _ := runCLI(t, "run", "-help")
	require.Contains(t, stdout, "queryFile")
	require.Contains(t, stdout, "recordsPerSplit")
	require.Contains(t, stdout, "outputFolder")
}

func TestExecute_MalformedArgumentsDescribeParameters(t *testing.T) {
	dir := writeInputs(t)
	code, _, stderr := runCLI(t, "run", filepath.Join(dir, "query.fa"))
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr, "Error:")
	for _, want := range []string{"queryFile", "datasetFile", "scoringConfigFile", "number of top candidates", "outputFolder"} {
		require.Contains(t, stderr, want)
	}
}

func TestExecute_EndToEnd(t *testing.T) {
	dir := writeInputs(t)
	out := filepath.Join(dir, "out")

	code, stdout, stderr := runCLI(t, "run",
		filepath.Join(dir, "query.fa"),
		filepath.Join(dir, "db", "**", "*.fa"),
		filepath.Join(dir, "scoring.yaml"),
		"3",
		out,
		"-recordsPerSplit", "2",
		"--reducers", "2",
		"--workers", "2",
	)
	require.Equal(t, exitOK, code, stderr)
	require.Contains(t, stdout, filepath.Join(out, results.FileName))
	require.Contains(t, stderr, "Task summary")
	require.Contains(t, stderr, "kind=SCORE")
	require.Contains(t, stderr, "kind=REDUCE")

	candidates, err := results.ReadCandidates(filepath.Join(out, results.FileName))
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	// A is identical to the query, B and D share its prefix.
	require.Equal(t, "A", candidates[0].Record.ID)
	for i := 1; i < len(candidates); i++ {
		require.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}

	report, err := os.ReadFile(filepath.Join(out, "report"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(report), "CLUSTAL multiple sequence alignment (center-star, BLOSUM62"))
	require.Contains(t, string(report), "4 sequences")
	require.Contains(t, string(report), "query")
}

func TestExecute_ScoringFailureExitsNonZero(t *testing.T) {
	dir := writeInputs(t)
	bad := filepath.Join(dir, "bad.fa")
	require.NoError(t, os.WriteFile(bad, []byte(">A\nMKTAY\n>J\nMKJJJ\n"), 0o644))
	out := filepath.Join(dir, "out")

	code, _, stderr := runCLI(t, "run",
		filepath.Join(dir, "query.fa"), bad, filepath.Join(dir, "scoring.yaml"), "1", out,
		"--max-attempts", "1",
	)
	require.Equal(t, exitFailure, code)
	require.Contains(t, stderr, "scoring record")
	require.Contains(t, stderr, "residue not in substitution matrix")

	_, err := os.Stat(filepath.Join(out, results.FileName))
	require.True(t, os.IsNotExist(err))
}

func TestExecute_MissingDataset(t *testing.T) {
	dir := writeInputs(t)
	code, _, stderr := runCLI(t, "run",
		filepath.Join(dir, "query.fa"), filepath.Join(dir, "none", "*.fa"), filepath.Join(dir, "scoring.yaml"), "1", filepath.Join(dir, "out"),
	)
	require.Equal(t, exitFailure, code)
	require.Contains(t, stderr, "no dataset files match")
}

func TestNormalizeArgs(t *testing.T) {
	long := map[string]bool{"recordsPerSplit": true, "help": true}
	got := normalizeArgs([]string{"q.fa", "-recordsPerSplit", "5", "-recordsPerSplit=6", "-h", "-help", "--", "-recordsPerSplit"}, long)
	require.Equal(t, []string{"q.fa", "--recordsPerSplit", "5", "--recordsPerSplit=6", "-h", "--help", "--", "-recordsPerSplit"}, got)
}
