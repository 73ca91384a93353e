package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))
	l.Info("hola", "mode", "consejero")

	assert.Contains(t, buf.String(), "hola")
	assert.Contains(t, buf.String(), "mode=consejero")
}

func TestNew_DebugFiltered(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf)).Debug("hidden")
	assert.Empty(t, buf.String())

	New(WithWriter(&buf), WithDebug(true)).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithJSON(true)).Info("structured", "count", 3)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "structured", parsed["msg"])
	assert.EqualValues(t, 3, parsed["count"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithPretty(true)).Info("bonito")
	assert.Contains(t, buf.String(), "bonito")
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.With("k", "v").WithGroup("g").Error("ignored")
	})
	assert.False(t, l.Handler().Enabled(context.Background(), slog.LevelError))
}

func TestOpenFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "consejero.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	New(WithWriter(f)).Info("to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
