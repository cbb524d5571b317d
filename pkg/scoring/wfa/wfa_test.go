package wfa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/protalign/pkg/core"
	"github.com/nemanja-m/protalign/pkg/scoring"
)

func TestMethod_Score(t *testing.T) {
	m, err := scoring.New(Name, map[string]string{"adaptive": "false"})
	require.NoError(t, err)
	require.Equal(t, Name, m.Name())

	query := core.Record{ID: "q", Residues: "ACGTACGTACGTAAGT"}
	same, err := m.Score(query, query)
	require.NoError(t, err)
	diff, err := m.Score(query, core.Record{ID: "d", Residues: "ACGTTCGTACCTAAGT"})
	require.NoError(t, err)

	require.Greater(t, same, diff)
	require.Positive(t, same)
}

func TestMethod_ConfigureErrors(t *testing.T) {
	_, err := scoring.New(Name, map[string]string{"adaptive": "maybe"})
	require.Error(t, err)
}
