package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, "json", &buf)

	logger.Debug("hidden")
	logger.Info("Task completed", "task_id", "score-0001", "attempt", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "Task completed", rec["msg"])
	require.Equal(t, "score-0001", rec["task_id"])
	require.Equal(t, float64(2), rec["attempt"])
	require.True(t, strings.HasSuffix(rec["time"].(string), "Z"))
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelWarn, "text", &buf)
	logger.Info("hidden")
	logger.Warn("Retrying task", "task_id", "reduce-0000")

	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "task_id=reduce-0000")
	require.NotContains(t, buf.String(), "hidden")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
