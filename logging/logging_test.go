package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: FormatJSON, Writer: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Int("episode", 7).Float64("epsilon", 0.5).Msg("progress")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var event map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, "progress", event["message"])
	assert.Equal(t, float64(7), event["episode"])
	assert.Equal(t, "info", event["level"])
	assert.Contains(t, event, "time")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: FormatPretty, Writer: &buf})
	require.NoError(t, err)

	logger.Info().Str("path", "q.parquet").Msg("checkpoint saved")
	out := buf.String()
	assert.Contains(t, out, "\n  \"path\": \"q.parquet\"")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "checkpoint saved", event["message"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)
	logger.Info().Int("states", 12).Msg("training finished")
	assert.Contains(t, buf.String(), "training finished")
	assert.Contains(t, buf.String(), "states=")
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
	_, err = New(Options{Format: "xml"})
	require.Error(t, err)
}

func TestPrettyJSONWriter_PassesThroughNonJSON(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewPrettyJSONWriter(&buf).Write([]byte("plain\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "plain\n", buf.String())
}
