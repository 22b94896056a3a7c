package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gpt-4o-realtime-preview", cfg.Model)
	assert.Equal(t, VoiceAlloy, cfg.Voice)
	assert.Nil(t, cfg.MaxOutputTokens)
}

func TestConfigValidate(t *testing.T) {
	negative := -1
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "temperature too high", mutate: func(c *Config) { c.Temperature = 2.01 }},
		{name: "temperature negative", mutate: func(c *Config) { c.Temperature = -0.1 }},
		{name: "threshold above one", mutate: func(c *Config) { c.VADThreshold = 1.5 }},
		{name: "negative silence", mutate: func(c *Config) { c.VADSilenceDurationMs = -1 }},
		{name: "negative max tokens", mutate: func(c *Config) { c.MaxOutputTokens = &negative }},
		{name: "unknown voice", mutate: func(c *Config) { c.Voice = "robot" }},
		{name: "unknown turn detection", mutate: func(c *Config) { c.TurnDetection = "semantic" }},
		{name: "unknown modalities", mutate: func(c *Config) { c.Modalities = "video" }},
		{name: "empty model", mutate: func(c *Config) { c.Model = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSessionConfig))
		})
	}

	edge := DefaultConfig()
	edge.Temperature = 2
	edge.VADThreshold = 0
	assert.NoError(t, edge.Validate())
}

func TestBuildInstructions(t *testing.T) {
	withSummary := BuildInstructions("  Go is great.  ")
	assert.Contains(t, withSummary, "Here's a summary of what you need to know: Go is great..")
	assert.Contains(t, withSummary, "Wait for the user to speak first.")

	empty := BuildInstructions("")
	assert.Contains(t, empty, "Here's a summary of what you need to know: .")
}

func TestNoticeFor(t *testing.T) {
	n := NoticeFor(NoticeChatUnavailable)
	assert.Equal(t, "Chat Unavailable", n.Title)
	assert.Equal(t, "Unable to connect right now. Please try again later.", n.Description)

	n = NoticeFor(NoticeAgentDisconnected)
	assert.Equal(t, "Agent Disconnected", n.Title)
}
