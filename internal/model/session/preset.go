package session

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Preset is a named set of overrides on top of DefaultConfig.
type Preset struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Config      Config `yaml:"config" json:"config"`
}

type presetFile struct {
	Presets []presetEntry `yaml:"presets"`
}

// presetEntry decodes config as a partial override.
type presetEntry struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Config      configOverride `yaml:"config"`
}

type configOverride struct {
	Model                *string        `yaml:"model"`
	TranscriptionModel   *string        `yaml:"transcriptionModel"`
	TurnDetection        *TurnDetection `yaml:"turnDetection"`
	Modalities           *Modalities    `yaml:"modalities"`
	Voice                *string        `yaml:"voice"`
	Temperature          *float64       `yaml:"temperature"`
	MaxOutputTokens      *int           `yaml:"maxOutputTokens"`
	VADThreshold         *float64       `yaml:"vadThreshold"`
	VADSilenceDurationMs *int           `yaml:"vadSilenceDurationMs"`
	VADPrefixPaddingMs   *int           `yaml:"vadPrefixPaddingMs"`
}

func (o configOverride) applyTo(cfg Config) Config {
	if o.Model != nil {
		cfg.Model = *o.Model
	}
	if o.TranscriptionModel != nil {
		cfg.TranscriptionModel = *o.TranscriptionModel
	}
	if o.TurnDetection != nil {
		cfg.TurnDetection = *o.TurnDetection
	}
	if o.Modalities != nil {
		cfg.Modalities = *o.Modalities
	}
	if o.Voice != nil {
		cfg.Voice = *o.Voice
	}
	if o.Temperature != nil {
		cfg.Temperature = *o.Temperature
	}
	if o.MaxOutputTokens != nil {
		v := *o.MaxOutputTokens
		cfg.MaxOutputTokens = &v
	}
	if o.VADThreshold != nil {
		cfg.VADThreshold = *o.VADThreshold
	}
	if o.VADSilenceDurationMs != nil {
		cfg.VADSilenceDurationMs = *o.VADSilenceDurationMs
	}
	if o.VADPrefixPaddingMs != nil {
		cfg.VADPrefixPaddingMs = *o.VADPrefixPaddingMs
	}
	return cfg
}

// PresetStore looks presets up by id.
type PresetStore struct {
	items []Preset
}

// NewPresetStore copies items into a store.
func NewPresetStore(items []Preset) *PresetStore {
	return &PresetStore{items: append([]Preset(nil), items...)}
}

// List returns all presets in file order.
func (s *PresetStore) List() []Preset {
	if s == nil {
		return nil
	}
	return append([]Preset(nil), s.items...)
}

// FindByID looks up a preset by identifier.
func (s *PresetStore) FindByID(id string) (Preset, bool) {
	if s == nil {
		return Preset{}, false
	}
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Preset{}, false
}

// LoadPresets reads a YAML preset file. An empty path yields an empty store.
func LoadPresets(path string) (*PresetStore, error) {
	if path == "" {
		return NewPresetStore(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes presets, filling unset config fields from DefaultConfig.
func ParsePresets(data []byte) (*PresetStore, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}

	items := make([]Preset, 0, len(file.Presets))
	seen := make(map[string]struct{}, len(file.Presets))
	for _, entry := range file.Presets {
		if entry.ID == "" {
			return nil, fmt.Errorf("preset %q: id is required", entry.Name)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("preset %q: duplicate id", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		cfg := entry.Config.applyTo(DefaultConfig())
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", entry.ID, err)
		}

		items = append(items, Preset{ID: entry.ID, Name: entry.Name, Description: entry.Description, Config: cfg})
	}
	return NewPresetStore(items), nil
}

// Resolve returns the config for presetID, or DefaultConfig when presetID is
// empty or unknown. The second result is the id actually applied.
func (s *PresetStore) Resolve(presetID string) (Config, *string) {
	if presetID != "" {
		if p, ok := s.FindByID(presetID); ok {
			id := p.ID
			return p.Config, &id
		}
	}
	return DefaultConfig(), nil
}
