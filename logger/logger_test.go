package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, "vulnserver", "run-1", zerolog.InfoLevel)

	l.With(Field{Key: "conn", Value: 3}).Info("Got client input", Field{Key: "line", Value: "hello"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "vulnserver", entry["service"])
	assert.Equal(t, "run-1", entry["run"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Got client input", entry["message"])
	assert.Equal(t, float64(3), entry["conn"])
	assert.Equal(t, "hello", entry["line"])
	assert.Contains(t, entry, "time")
}

func TestZerologLogger_levelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, "vulnserver", "run-1", zerolog.WarnLevel)

	l.Debug("dropped")
	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Error("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Equal(t, zerolog.WarnLevel, l.Level())
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.With(Field{Key: "k", Value: "v"}).Error("nothing")
	})
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" Debug ")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestPeerLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	t.Run("appends entries", func(t *testing.T) {
		l, err := OpenPeerLog(path)
		require.NoError(t, err)
		require.NoError(t, l.Log("127.0.0.1", "hello"))
		require.NoError(t, l.Close())

		l, err = OpenPeerLog(path)
		require.NoError(t, err)
		require.NoError(t, l.Log("127.0.0.1", "%x%x"))
		require.NoError(t, l.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1hello\n127.0.0.1%x%x\n", string(data))
		assert.Equal(t, path, l.Path())
	})

	t.Run("closed log rejects writes", func(t *testing.T) {
		l, err := OpenPeerLog(path)
		require.NoError(t, err)
		require.NoError(t, l.Close())
		require.NoError(t, l.Close())
		assert.Error(t, l.Log("peer", "msg"))
	})

	t.Run("unopenable path fails", func(t *testing.T) {
		_, err := OpenPeerLog(filepath.Join(t.TempDir(), "missing", "server.log"))
		assert.Error(t, err)
	})
}
