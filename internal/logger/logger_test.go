package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-web/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("server.started", "port", "7002")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "server.started", entry["msg"])
	assert.Equal(t, "7002", entry["port"])
	assert.True(t, strings.HasSuffix(entry["time"].(string), "Z"), entry["time"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, config.LogConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("disk.slow")
	assert.Contains(t, buf.String(), "msg=disk.slow")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, config.LogConfig{Level: "error", Debug: true})
	require.NoError(t, err)

	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "source")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, config.LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, config.LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestSetup_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	_, err := Setup(&buf, config.LogConfig{Level: "info"})
	require.NoError(t, err)

	slog.Info("engine.persist_failed")
	assert.Contains(t, buf.String(), "engine.persist_failed")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}
