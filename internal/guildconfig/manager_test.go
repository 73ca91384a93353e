package guildconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morispolanco/criba/internal/logging"
	"github.com/morispolanco/criba/internal/prompts"
)

func TestManager_ChannelRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, logging.Nop())
	require.NoError(t, err)

	_, found := m.GetLLMChannel("g1")
	assert.False(t, found)

	require.NoError(t, m.SetLLMChannel("g1", "c1"))
	channel, found := m.GetLLMChannel("g1")
	require.True(t, found)
	assert.Equal(t, "c1", channel)

	reloaded, err := NewManager(dir, logging.Nop())
	require.NoError(t, err)
	channel, found = reloaded.GetLLMChannel("g1")
	require.True(t, found)
	assert.Equal(t, "c1", channel)

	require.NoError(t, reloaded.RemoveLLMChannel("g1"))
	_, found = reloaded.GetLLMChannel("g1")
	assert.False(t, found)
}

func TestManager_RemoveUnknownGuildIsNoop(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, logging.Nop())
	require.NoError(t, err)

	require.NoError(t, m.RemoveLLMChannel("nope"))
	_, err = os.Stat(filepath.Join(dir, defaultConfigFile))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManager_DefaultMode(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, prompts.ModeNormal, m.DefaultMode("g1"))

	require.NoError(t, m.SetDefaultMode("g1", prompts.ModeSocratico))
	assert.Equal(t, prompts.ModeSocratico, m.DefaultMode("g1"))

	err = m.SetDefaultMode("g1", prompts.Mode("poeta"))
	require.ErrorIs(t, err, prompts.ErrUnknownMode)
	assert.Equal(t, prompts.ModeSocratico, m.DefaultMode("g1"))

	// the mode survives alongside the channel
	require.NoError(t, m.SetLLMChannel("g1", "c9"))
	reloaded, err := NewManager(dir, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, prompts.ModeSocratico, reloaded.DefaultMode("g1"))
}

func TestNewManager_EmptyAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, defaultConfigFile)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err := NewManager(dir, logging.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = NewManager(dir, logging.Nop())
	require.Error(t, err)

	_, err = NewManager("", logging.Nop())
	require.Error(t, err)
}

func TestNewManager_UnknownStoredModeFallsBack(t *testing.T) {
	dir := t.TempDir()
	data := `[
  {"guild_id": "g1", "llm_channel_id": "c1", "default_mode": "poeta"},
  {"guild_id": "g2", "llm_channel_id": "c2", "default_mode": "analista"}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigFile), []byte(data), 0o600))

	m, err := NewManager(dir, logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, prompts.ModeNormal, m.DefaultMode("g1"))
	channel, found := m.GetLLMChannel("g1")
	assert.True(t, found)
	assert.Equal(t, "c1", channel)
	assert.Equal(t, prompts.ModeAnalista, m.DefaultMode("g2"))

	_, err = prompts.Lookup(m.DefaultMode("g1"))
	assert.NoError(t, err)
}
