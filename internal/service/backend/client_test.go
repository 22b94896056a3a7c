package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/podtalk/backend/internal/model/transcript"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchTranscriptArray(t *testing.T) {
	var gotBody string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcript", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		_, _ = w.Write([]byte(`[{"text":"hello","start":0,"duration":2}]`))
	})

	c := NewClient(Options{BaseURL: srv.URL}, nil, nil)
	payload, err := c.FetchTranscript(context.Background(), "abc123")
	require.NoError(t, err)

	assert.JSONEq(t, `{"videoId":"abc123"}`, gotBody)
	assert.Equal(t, transcript.ShapeArray, payload.Shape)
	assert.Equal(t, []transcript.Segment{{Text: "hello", Start: 0, Duration: 2}}, payload.Segments)
	assert.Equal(t, `[{"text":"hello","start":0,"duration":2}]`, string(payload.Raw))
}

func TestFetchTranscriptErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"x"}`, wantErr: ErrUpstreamStatus},
		{name: "not found", status: http.StatusNotFound, body: ``, wantErr: ErrUpstreamStatus},
		{name: "wrong shape", status: http.StatusOK, body: `{"status":"ok"}`, wantErr: transcript.ErrUnexpectedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c := NewClient(Options{BaseURL: srv.URL}, nil, nil)
			_, err := c.FetchTranscript(context.Background(), "abc")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestProcessVideoSendsBearer(t *testing.T) {
	var auth atomic.Value
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"success","summary":"short"}`))
	})

	c := NewClient(Options{BaseURL: srv.URL, IndexAPIKey: "pc-key"}, nil, nil)
	result, err := c.ProcessVideo(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "short", result.Summary)
	assert.Equal(t, "Bearer pc-key", auth.Load())
}

func TestProcessVideoRequiresSuccessStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	})

	c := NewClient(Options{BaseURL: srv.URL}, nil, nil)
	_, err := c.ProcessVideo(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrProcessingFailed)
}

func TestContextCancellationAbandonsCall(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	c := NewClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchTranscript(ctx, "abc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
