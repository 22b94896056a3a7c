package token

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/podtalk/backend/internal/config"
	"github.com/zhouzirui/podtalk/backend/internal/model/session"
)

type claims struct {
	Sub      string `json:"sub"`
	Iss      string `json:"iss"`
	Metadata string `json:"metadata"`
	Video    struct {
		Room         string `json:"room"`
		RoomJoin     bool   `json:"roomJoin"`
		CanPublish   *bool  `json:"canPublish"`
		CanSubscribe *bool  `json:"canSubscribe"`
		Hidden       bool   `json:"hidden"`
	} `json:"video"`
}

func decodeClaims(t *testing.T, jwt string) claims {
	t.Helper()
	parts := strings.Split(jwt, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var c claims
	require.NoError(t, sonic.Unmarshal(raw, &c))
	return c
}

func newMinter() *Minter {
	return NewMinter(config.LiveKitConfig{APIKey: "devkey", APISecret: "devsecret-that-is-long-enough-0123456789", URL: "wss://rooms.example", TokenTTL: time.Hour}, nil)
}

func TestMintGrantsJoinPublishSubscribe(t *testing.T) {
	jwt, err := newMinter().Mint("r1", "u1")
	require.NoError(t, err)
	require.NotEmpty(t, jwt)

	c := decodeClaims(t, jwt)
	assert.Equal(t, "u1", c.Sub)
	assert.Equal(t, "devkey", c.Iss)
	assert.Equal(t, "r1", c.Video.Room)
	assert.True(t, c.Video.RoomJoin)
	require.NotNil(t, c.Video.CanPublish)
	assert.True(t, *c.Video.CanPublish)
	require.NotNil(t, c.Video.CanSubscribe)
	assert.True(t, *c.Video.CanSubscribe)
}

func TestMintErrors(t *testing.T) {
	_, err := newMinter().Mint("r1", "")
	assert.ErrorIs(t, err, ErrMissingRoomOrIdentity)

	unconfigured := NewMinter(config.LiveKitConfig{}, nil)
	_, err = unconfigured.Mint("r1", "u1")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestRequestTokenCarriesChatbotData(t *testing.T) {
	m := newMinter()
	ids := []string{"aaaa1111", "bbbb2222"}
	m.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	data := session.ChatbotData{Instructions: "be nice", SessionConfig: session.DefaultConfig()}
	creds, err := m.RequestToken(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "wss://rooms.example", creds.URL)
	assert.Equal(t, "room-aaaa1111", creds.Room)
	assert.Equal(t, "human-bbbb2222", creds.Identity)

	c := decodeClaims(t, creds.AccessToken)
	assert.Equal(t, "room-aaaa1111", c.Video.Room)

	var got session.ChatbotData
	require.NoError(t, sonic.UnmarshalString(c.Metadata, &got))
	assert.Equal(t, "be nice", got.Instructions)
	assert.Equal(t, session.VoiceAlloy, got.SessionConfig.Voice)
}

func TestRequestTokenValidatesConfig(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Temperature = 5
	_, err := newMinter().RequestToken(context.Background(), session.ChatbotData{SessionConfig: cfg})
	assert.ErrorIs(t, err, session.ErrInvalidSessionConfig)
}

func TestMintObserverIsHidden(t *testing.T) {
	jwt, err := newMinter().MintObserver("room-1", "observer-1")
	require.NoError(t, err)

	c := decodeClaims(t, jwt)
	assert.Equal(t, "observer-1", c.Sub)
	assert.True(t, c.Video.Hidden)
	require.NotNil(t, c.Video.CanPublish)
	assert.False(t, *c.Video.CanPublish)
}
