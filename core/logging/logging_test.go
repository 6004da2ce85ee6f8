package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn")
	require.NoError(t, err)

	log.Info("chatty")
	log.Warn("No module code found in notes.ts", "file", "notes.ts")

	out := buf.String()
	assert.NotContains(t, out, "chatty")
	assert.Contains(t, out, "No module code found in notes.ts")
	assert.Contains(t, out, Prefix)
	assert.Contains(t, out, "notes.ts")
}

func TestNew_Debug(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug")
	require.NoError(t, err)

	log.Debug("entry files selected")
	assert.Contains(t, buf.String(), "entry files selected")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("ignored")
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
