package transcript

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/podtalk/backend/internal/service/backend"
	transcriptService "github.com/zhouzirui/podtalk/backend/internal/service/transcript"
)

// newUpstream fakes the backend processing service.
func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/transcript" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func setupRouter(baseURL string) *chi.Mux {
	client := backend.NewClient(backend.Options{BaseURL: baseURL, Timeout: 5 * time.Second}, nil, nil)
	handler := New(transcriptService.NewService(client, nil, nil), nil)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestTranscriptPassthrough(t *testing.T) {
	upstream := `[{"text":"hi","start":0,"duration":1.5}]`
	srv, _ := newUpstream(t, http.StatusOK, upstream)
	r := setupRouter(srv.URL)

	req := httptest.NewRequest(http.MethodPost, "/transcript", strings.NewReader(`{"videoId":"abc"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, upstream, resp.Body.String())
}

func TestTranscriptWrappedShapeKept(t *testing.T) {
	upstream := `{"transcript":[{"text":"a","start":0,"duration":1},{"text":"b","start":1,"duration":1}]}`
	srv, _ := newUpstream(t, http.StatusOK, upstream)
	r := setupRouter(srv.URL)

	req := httptest.NewRequest(http.MethodPost, "/transcript", strings.NewReader(`{"videoId":"abc"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, upstream, resp.Body.String())
}

func TestTranscriptMissingVideoIDSkipsUpstream(t *testing.T) {
	srv, hits := newUpstream(t, http.StatusOK, `[]`)
	r := setupRouter(srv.URL)

	for _, path := range []string{"/transcript", "/text-only-transcript"} {
		for _, body := range []string{`{}`, `{"videoId":""}`, `not json`} {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("%s %q: expected 400, got %d", path, body, resp.Code)
			}
		}
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestTranscriptUpstreamFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non-2xx", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "unexpected shape", status: http.StatusOK, body: `{"segments":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newUpstream(t, tt.status, tt.body)
			r := setupRouter(srv.URL)

			req := httptest.NewRequest(http.MethodPost, "/transcript", strings.NewReader(`{"videoId":"abc"}`))
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			assert.Equal(t, http.StatusInternalServerError, resp.Code)
			assert.JSONEq(t, `{"error":"Error fetching transcript"}`, resp.Body.String())
		})
	}
}

func TestTextOnlyTranscript(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, `[{"text":"hello","start":0,"duration":1},{"text":"there","start":1,"duration":1}]`)
	r := setupRouter(srv.URL)

	req := httptest.NewRequest(http.MethodPost, "/text-only-transcript", strings.NewReader(`{"videoId":"abc"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"transcript":"hello there"}`, resp.Body.String())
}
