package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := New(&buf, LogConfig{Level: ERROR, Format: Text})

	l.Info("hidden")
	l.Warn("hidden too")
	l.Progress("Report written", map[string]interface{}{"destination": "out/report.json.gz"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "PROGRESS: Report written")
	assert.Contains(t, out, "out/report.json.gz")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogConfig{Level: DEBUG, Format: JSON})

	l.ModelFallback("aws_s3_bucket.logs", "timeout", nil)

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "Learned model unavailable, using rule score", entry.Message)
	data, ok := entry.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "timeout", data["model_status"])
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, DEBUG, ParseLevel(" debug "))
	assert.Equal(t, INFO, ParseLevel("verbose"))
	assert.Equal(t, JSON, ParseFormat("JSON"))
	assert.Equal(t, Text, ParseFormat("yaml"))
}
