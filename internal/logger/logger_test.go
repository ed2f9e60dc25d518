package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONToConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "scanlike.log")

	require.NoError(t, Init(Options{Level: "debug", File: path, MaxSizeMB: 1, Console: &buf}))
	log.Info().Int("page", 3).Msg("rendered")
	jl := ForJob("job-7")
	jl.Debug().Msg("queued")
	Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, "rendered", ev["message"])
	assert.Equal(t, "scanlike", ev["service"])
	assert.EqualValues(t, 3, ev["page"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
	assert.Equal(t, "job-7", ev["job_id"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"rendered"`)
}

func TestInitLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: "loud", Console: &buf}))
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	Close()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
