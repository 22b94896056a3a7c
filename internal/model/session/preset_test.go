package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presetsYAML = `
presets:
  - id: calm
    name: Calm explainer
    config:
      voice: sage
      temperature: 0.6
  - id: text
    name: Text only
    config:
      modalities: text_only
      maxOutputTokens: 256
`

func TestParsePresets(t *testing.T) {
	store, err := ParsePresets([]byte(presetsYAML))
	require.NoError(t, err)
	require.Len(t, store.List(), 2)

	calm, ok := store.FindByID("calm")
	require.True(t, ok)
	assert.Equal(t, VoiceSage, calm.Config.Voice)
	assert.InDelta(t, 0.6, calm.Config.Temperature, 1e-9)
	assert.Equal(t, DefaultModel, calm.Config.Model)
	assert.Equal(t, 200, calm.Config.VADSilenceDurationMs)

	text, ok := store.FindByID("text")
	require.True(t, ok)
	require.NotNil(t, text.Config.MaxOutputTokens)
	assert.Equal(t, 256, *text.Config.MaxOutputTokens)
}

func TestParsePresetsRejectsInvalid(t *testing.T) {
	_, err := ParsePresets([]byte("presets:\n  - id: hot\n    config:\n      temperature: 3\n"))
	assert.ErrorIs(t, err, ErrInvalidSessionConfig)

	_, err = ParsePresets([]byte("presets:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)

	_, err = ParsePresets([]byte("presets:\n  - name: nameless\n"))
	assert.Error(t, err)
}

func TestLoadPresetsAndResolve(t *testing.T) {
	empty, err := LoadPresets("")
	require.NoError(t, err)
	cfg, id := empty.Resolve("calm")
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Nil(t, id)

	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(presetsYAML), 0o600))

	store, err := LoadPresets(path)
	require.NoError(t, err)
	cfg, id = store.Resolve("calm")
	require.NotNil(t, id)
	assert.Equal(t, "calm", *id)
	assert.Equal(t, VoiceSage, cfg.Voice)

	_, err = LoadPresets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
