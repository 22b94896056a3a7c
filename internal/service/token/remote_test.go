package token

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/podtalk/backend/internal/model/session"
)

func TestRemoteSourceRequestToken(t *testing.T) {
	var got session.ChatbotData
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/livekit", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"jwt","url":"wss://rtc.example.com","roomName":"room-1","participantIdentity":"human-1"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	creds, err := NewRemoteSource(srv.URL+"/").RequestToken(ctx, session.ChatbotData{
		Instructions:  "be brief",
		SessionConfig: session.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, "jwt", creds.AccessToken)
	assert.Equal(t, "wss://rtc.example.com", creds.URL)
	assert.Equal(t, "room-1", creds.Room)
	assert.Equal(t, "be brief", got.Instructions)
}

func TestRemoteSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Server misconfigured"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteSource(srv.URL).RequestToken(context.Background(), session.ChatbotData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server misconfigured")
}
