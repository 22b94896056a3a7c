// Package session defines the voice session data shared by the orchestrator,
// the token minter and the HTTP layer.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSessionConfig wraps every validation failure of Config.
var ErrInvalidSessionConfig = errors.New("invalid session config")

// TurnDetection selects how the agent decides the user finished speaking.
type TurnDetection string

const (
	TurnDetectionServerVAD TurnDetection = "server_vad"
	TurnDetectionNone      TurnDetection = "none"
)

// Modalities selects the agent's output channels.
type Modalities string

const (
	ModalitiesTextAndAudio Modalities = "text_and_audio"
	ModalitiesTextOnly     Modalities = "text_only"
)

// Voice identifiers understood by the realtime agent.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceBallad  = "ballad"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

var knownVoices = map[string]struct{}{
	VoiceAlloy: {}, VoiceAsh: {}, VoiceBallad: {}, VoiceCoral: {},
	VoiceEcho: {}, VoiceSage: {}, VoiceShimmer: {}, VoiceVerse: {},
}

const (
	DefaultModel              = "gpt-4o-realtime-preview"
	DefaultTranscriptionModel = "whisper-1"
)

// Config is the immutable snapshot of agent settings sent with every connect.
type Config struct {
	Model                string        `json:"model" yaml:"model"`
	TranscriptionModel   string        `json:"transcriptionModel" yaml:"transcriptionModel"`
	TurnDetection        TurnDetection `json:"turnDetection" yaml:"turnDetection"`
	Modalities           Modalities    `json:"modalities" yaml:"modalities"`
	Voice                string        `json:"voice" yaml:"voice"`
	Temperature          float64       `json:"temperature" yaml:"temperature"`
	MaxOutputTokens      *int          `json:"maxOutputTokens" yaml:"maxOutputTokens"`
	VADThreshold         float64       `json:"vadThreshold" yaml:"vadThreshold"`
	VADSilenceDurationMs int           `json:"vadSilenceDurationMs" yaml:"vadSilenceDurationMs"`
	VADPrefixPaddingMs   int           `json:"vadPrefixPaddingMs" yaml:"vadPrefixPaddingMs"`
}

// DefaultConfig returns the settings used when no preset is selected.
func DefaultConfig() Config {
	return Config{
		Model:                DefaultModel,
		TranscriptionModel:   DefaultTranscriptionModel,
		TurnDetection:        TurnDetectionServerVAD,
		Modalities:           ModalitiesTextAndAudio,
		Voice:                VoiceAlloy,
		Temperature:          0.8,
		VADThreshold:         0.5,
		VADSilenceDurationMs: 200,
		VADPrefixPaddingMs:   300,
	}
}

// Validate checks ranges and enum values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidSessionConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f outside [0,2]", ErrInvalidSessionConfig, c.Temperature)
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("%w: vadThreshold %.2f outside [0,1]", ErrInvalidSessionConfig, c.VADThreshold)
	}
	if c.VADSilenceDurationMs < 0 || c.VADPrefixPaddingMs < 0 {
		return fmt.Errorf("%w: vad durations must not be negative", ErrInvalidSessionConfig)
	}
	if c.MaxOutputTokens != nil && *c.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: maxOutputTokens must be positive", ErrInvalidSessionConfig)
	}
	switch c.TurnDetection {
	case TurnDetectionServerVAD, TurnDetectionNone:
	default:
		return fmt.Errorf("%w: unknown turnDetection %q", ErrInvalidSessionConfig, c.TurnDetection)
	}
	switch c.Modalities {
	case ModalitiesTextAndAudio, ModalitiesTextOnly:
	default:
		return fmt.Errorf("%w: unknown modalities %q", ErrInvalidSessionConfig, c.Modalities)
	}
	if _, ok := knownVoices[c.Voice]; !ok {
		return fmt.Errorf("%w: unknown voice %q", ErrInvalidSessionConfig, c.Voice)
	}
	return nil
}

// BuildInstructions primes the agent with the transcript summary. An empty
// summary still yields a usable prompt.
func BuildInstructions(summary string) string {
	return "You are an expert on explaining things. Your responses should be at most 2 sentences. " +
		"Here's a summary of what you need to know: " + strings.TrimSpace(summary) +
		". Wait for the user to speak first."
}
