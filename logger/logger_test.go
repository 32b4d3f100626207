package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "WARN", Console: &buf})
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("type", "Packet").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "Packet")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tamp.log")
	log, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	log.Debug().Msg("stream suspended")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"stream suspended"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestLogPath(t *testing.T) {
	base := t.TempDir()
	path, err := LogPath(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "tamp", "tamp.log"), path)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
