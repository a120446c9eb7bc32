package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesSeverityJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "production", "api")
	l.Debug().Msg("hidden")
	l.Info().Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["severity"])
	assert.Equal(t, "api", entry["component"])
	assert.Equal(t, "visible", entry["message"])
}

func TestDevelopmentLoggerIsVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "development", "api")
	l.Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestUnsetEnvLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "", "maintenance")
	l.Info().Msg("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "maintenance", entry["component"])
}
