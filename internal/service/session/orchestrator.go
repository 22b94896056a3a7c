package session

import (
	"context"
	"errors"
	"sync"

	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
)

// ErrConnectSuperseded is returned when Disconnect ran while a token request
// was in flight. The late credentials are discarded.
var ErrConnectSuperseded = errors.New("connect superseded by disconnect")

// TokenSource issues room credentials for one connect attempt.
type TokenSource interface {
	RequestToken(ctx context.Context, data sessionModel.ChatbotData) (sessionModel.Credentials, error)
}

// ConnectionListener is told about every ConnectionDetails change.
type ConnectionListener func(details sessionModel.ConnectionDetails, creds sessionModel.Credentials)

// Orchestrator is the only writer of ConnectionDetails.
type Orchestrator struct {
	mu         sync.Mutex
	tokens     TokenSource
	presets    *sessionModel.PresetStore
	presetID   string
	summary    func() string
	details    sessionModel.ConnectionDetails
	creds      sessionModel.Credentials
	generation uint64
	onChange   ConnectionListener
}

// NewOrchestrator wires a token source. summary is read at connect time.
func NewOrchestrator(tokens TokenSource, presets *sessionModel.PresetStore, presetID string, summary func() string, onChange ConnectionListener) *Orchestrator {
	if summary == nil {
		summary = func() string { return "" }
	}
	return &Orchestrator{
		tokens:   tokens,
		presets:  presets,
		presetID: presetID,
		summary:  summary,
		details:  sessionModel.ConnectionDetails{Voice: sessionModel.VoiceAlloy},
		onChange: onChange,
	}
}

// ChatbotData builds the agent payload from the current summary.
func (o *Orchestrator) ChatbotData() sessionModel.ChatbotData {
	cfg, presetID := o.presets.Resolve(o.presetID)
	return sessionModel.ChatbotData{
		Instructions:     sessionModel.BuildInstructions(o.summary()),
		SessionConfig:    cfg,
		SelectedPresetID: presetID,
	}
}

// Connect requests credentials and, on success, flips ShouldConnect on. On
// failure the details are left untouched and the error is returned as is.
// Concurrent calls are not deduplicated.
func (o *Orchestrator) Connect(ctx context.Context) (sessionModel.ConnectionDetails, error) {
	o.mu.Lock()
	gen := o.generation
	o.mu.Unlock()

	data := o.ChatbotData()
	creds, err := o.tokens.RequestToken(ctx, data)
	if err != nil {
		return o.Details(), err
	}

	o.mu.Lock()
	if o.generation != gen {
		details := o.details
		o.mu.Unlock()
		return details, ErrConnectSuperseded
	}
	o.details = sessionModel.ConnectionDetails{
		WSURL:         creds.URL,
		Token:         creds.AccessToken,
		ShouldConnect: true,
		Voice:         data.SessionConfig.Voice,
	}
	o.creds = creds
	details := o.details
	o.mu.Unlock()

	if o.onChange != nil {
		o.onChange(details, creds)
	}
	return details, nil
}

// Disconnect clears ShouldConnect and invalidates in-flight connects. It is
// a no-op on already disconnected details.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	o.generation++
	if !o.details.ShouldConnect {
		o.mu.Unlock()
		return
	}
	o.details.ShouldConnect = false
	details, creds := o.details, o.creds
	o.mu.Unlock()

	if o.onChange != nil {
		o.onChange(details, creds)
	}
}

// Details returns the current connection details.
func (o *Orchestrator) Details() sessionModel.ConnectionDetails {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.details
}

// Generation exposes the disconnect counter.
func (o *Orchestrator) Generation() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}
