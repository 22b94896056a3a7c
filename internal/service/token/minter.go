// Package token signs room access tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"

	"github.com/zhouzirui/podtalk/backend/internal/config"
	"github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
)

var (
	// ErrMissingCredentials means the API key/secret pair is not configured.
	ErrMissingCredentials = errors.New("room credentials not configured")
	// ErrMissingRoomOrIdentity is returned for a blank room or identity.
	ErrMissingRoomOrIdentity = errors.New("room and identity are required")
)

// Minter issues join/publish/subscribe tokens.
type Minter struct {
	apiKey    string
	apiSecret string
	url       string
	agentName string
	ttl       time.Duration
	metrics   *observability.Metrics
	newID     func() string
}

// NewMinter never fails; a missing key pair surfaces per call as
// ErrMissingCredentials.
func NewMinter(cfg config.LiveKitConfig, metrics *observability.Metrics) *Minter {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Minter{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		url:       cfg.URL,
		agentName: cfg.AgentName,
		ttl:       ttl,
		metrics:   metrics,
		newID:     func() string { return uuid.NewString()[:8] },
	}
}

// URL is the room server address handed to clients.
func (m *Minter) URL() string { return m.url }

// Mint signs a token for identity in room.
func (m *Minter) Mint(room, identity string) (string, error) {
	if strings.TrimSpace(room) == "" || strings.TrimSpace(identity) == "" {
		return "", ErrMissingRoomOrIdentity
	}
	return m.sign(room, identity, "", nil)
}

// RequestToken creates a fresh room for one voice session. The chatbot data
// travels as participant metadata so the agent can read its instructions.
func (m *Minter) RequestToken(_ context.Context, data session.ChatbotData) (session.Credentials, error) {
	if err := data.SessionConfig.Validate(); err != nil {
		return session.Credentials{}, err
	}

	metadata, err := sonic.MarshalString(data)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("encode participant metadata: %w", err)
	}

	room := "room-" + m.newID()
	identity := "human-" + m.newID()

	var roomCfg *livekit.RoomConfiguration
	if m.agentName != "" {
		roomCfg = &livekit.RoomConfiguration{
			Agents: []*livekit.RoomAgentDispatch{{AgentName: m.agentName, Metadata: metadata}},
		}
	}

	jwt, err := m.sign(room, identity, metadata, roomCfg)
	if err != nil {
		return session.Credentials{}, err
	}
	return session.Credentials{AccessToken: jwt, URL: m.url, Room: room, Identity: identity}, nil
}

// MintObserver signs a hidden, receive-nothing token used by the server to
// watch participant presence without affecting the conversation.
func (m *Minter) MintObserver(room, identity string) (string, error) {
	if strings.TrimSpace(room) == "" || strings.TrimSpace(identity) == "" {
		return "", ErrMissingRoomOrIdentity
	}
	if m.apiKey == "" || m.apiSecret == "" {
		return "", ErrMissingCredentials
	}

	grant := &auth.VideoGrant{RoomJoin: true, Room: room, Hidden: true}
	grant.SetCanPublish(false)
	grant.SetCanPublishData(false)
	grant.SetCanSubscribe(false)

	jwt, err := auth.NewAccessToken(m.apiKey, m.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(m.ttl).
		ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign observer token: %w", err)
	}
	return jwt, nil
}

func (m *Minter) sign(room, identity, metadata string, roomCfg *livekit.RoomConfiguration) (string, error) {
	if m.apiKey == "" || m.apiSecret == "" {
		return "", ErrMissingCredentials
	}

	grant := &auth.VideoGrant{RoomJoin: true, Room: room}
	grant.SetCanPublish(true)
	grant.SetCanPublishData(true)
	grant.SetCanSubscribe(true)

	at := auth.NewAccessToken(m.apiKey, m.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(m.ttl)
	if metadata != "" {
		at.SetMetadata(metadata)
	}
	if roomCfg != nil {
		at.SetRoomConfig(roomCfg)
	}

	jwt, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	m.metrics.TokenMinted()
	return jwt, nil
}
