package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	SetWriter(&buf)
	t.Cleanup(func() {
		SetLevel("INFO")
		SetFormat("text")
		_ = SetOutput("stdout")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("WARN")

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t)
	SetLevel("DEBUG")
	SetFormat("json")

	Debug("entry %s stored", "a.txt")

	var line jsonLine
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "DEBUG", line.Level)
	assert.Equal(t, "entry a.txt stored", line.Message)
}

func TestSetOutputFile(t *testing.T) {
	path := t.TempDir() + "/binder.log"
	require.NoError(t, SetOutput(path))
	t.Cleanup(func() { _ = Close() })

	Error("disk full")
	require.NoError(t, Close())

	assert.FileExists(t, path)
}

func TestEnabled(t *testing.T) {
	capture(t)
	SetLevel("ERROR")

	assert.False(t, Enabled(LevelWarn))
	assert.True(t, Enabled(LevelError))
}
