package results

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/protalign/pkg/core"
)

func TestFindFiles_BasicAndIgnoreDirs(t *testing.T) {
	tmpDir := t.TempDir()

	f1 := filepath.Join(tmpDir, "b.fa")
	f2 := filepath.Join(tmpDir, "sub", "a.fa")
	require.NoError(t, os.MkdirAll(filepath.Dir(f2), 0o755))
	require.NoError(t, os.WriteFile(f1, []byte(">x\nMK\n"), 0o644))
	require.NoError(t, os.WriteFile(f2, []byte(">y\nMK\n"), 0o644))

	matches, err := FindFiles(filepath.Join(tmpDir, "**", "*.fa"))
	require.NoError(t, err)
	require.Equal(t, []string{f1, f2}, matches)

	// Directories are never returned.
	all, err := FindFiles(filepath.Join(tmpDir, "**"))
	require.NoError(t, err)
	for _, m := range all {
		info, err := os.Stat(m)
		require.NoError(t, err)
		require.True(t, info.Mode().IsRegular())
	}

	single, err := FindFiles(f1)
	require.NoError(t, err)
	require.Equal(t, []string{f1}, single)

	none, err := FindFiles(filepath.Join(tmpDir, "missing.fa"))
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestWriteAndReadCandidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FileName)
	candidates := []core.Candidate{
		{Score: 95, Record: core.Record{ID: "B", Residues: "MKVL"}},
		{Score: 95, Record: core.Record{ID: "D", Residues: "MKVA"}},
		{Score: -0.125, Record: core.Record{ID: "Z", Residues: "WW"}},
	}
	require.NoError(t, WriteCandidates(path, slices.Values(candidates)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "95\tMKVL\tB\n95\tMKVA\tD\n-0.125\tWW\tZ\n", string(data))

	got, err := ReadCandidates(path)
	require.NoError(t, err)
	require.Equal(t, candidates, got)

	// Re-reading yields the same set.
	again, err := ReadCandidates(path)
	require.NoError(t, err)
	require.Equal(t, got, again)

	// No temporary files are left next to the result.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReadCandidates_TwoColumnForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part-00000")
	require.NoError(t, os.WriteFile(path, []byte("12\tMKV\n\n7\tWW\n"), 0o644))

	got, err := ReadCandidates(path)
	require.NoError(t, err)
	require.Equal(t, []core.Candidate{
		{Score: 12, Record: core.Record{Residues: "MKV"}},
		{Score: 7, Record: core.Record{Residues: "WW"}},
	}, got)
}

func TestReadCandidates_Malformed(t *testing.T) {
	tests := map[string]string{
		"one field":      "12\n",
		"too many":       "1\tA\tB\tC\n",
		"bad score":      "high\tMKV\n",
		"empty residues": "1\t\tid\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.tsv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := ReadCandidates(path)
			require.Error(t, err)
		})
	}
}

func TestReadCandidates_FileNotFound(t *testing.T) {
	_, err := ReadCandidates("/no/such/file/does_not_exist.tsv")
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestWriteCandidates_RejectsTabs(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	err := WriteCandidates(path, slices.Values([]core.Candidate{{Score: 1, Record: core.Record{ID: "a\tb", Residues: "MK"}}}))
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestWriteText(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "report")
	require.NoError(t, WriteText(path, "first"))
	require.NoError(t, WriteText(path, "second"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	// Writing below a regular file fails.
	err = WriteText(filepath.Join(path, "nested"), "x")
	require.Error(t, err)
	require.False(t, strings.Contains(err.Error(), "second"))
}
