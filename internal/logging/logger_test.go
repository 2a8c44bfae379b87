package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWritesToStderrAndFile(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	logger, closer, err := New(Config{Level: "debug", LogDir: dir, Service: "validator", Writer: &out})
	require.NoError(t, err)

	logger.Debug("pulse", "files", 3)
	require.NoError(t, closer.Close())

	require.Contains(t, out.String(), "msg=pulse")
	require.Contains(t, out.String(), "service=validator")

	data, err := os.ReadFile(filepath.Join(dir, "validator.log"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"msg":"pulse"`), "file sink should hold JSON: %s", data)
}

func TestNewRespectsLevel(t *testing.T) {
	var out bytes.Buffer
	logger, _, err := New(Config{Level: "warn", Writer: &out})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	require.NotContains(t, out.String(), "hidden")
	require.Contains(t, out.String(), "shown")
}
