package summary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type fakeSummarizer struct {
	calls int
	out   string
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, transcript string) (string, error) {
	f.calls++
	return f.out, f.err
}

func setupRouter(s Summarizer) *chi.Mux {
	r := chi.NewRouter()
	New(s, nil).RegisterRoutes(r)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSummarizeSuccess(t *testing.T) {
	f := &fakeSummarizer{out: "One. Two."}
	resp := post(setupRouter(f), `{"transcript":"long talk"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	assert.JSONEq(t, `{"summary":"One. Two."}`, resp.Body.String())
}

func TestSummarizeMissingTranscript(t *testing.T) {
	f := &fakeSummarizer{}
	r := setupRouter(f)
	for _, body := range []string{`{}`, `{"transcript":"   "}`, `[`} {
		resp := post(r, body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.Code)
		}
	}
	assert.Equal(t, 0, f.calls)
}

func TestSummarizeUpstreamFailure(t *testing.T) {
	resp := post(setupRouter(&fakeSummarizer{err: errors.New("401 invalid api key sk-xxx")}), `{"transcript":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"error":"Error fetching Summary"}`, resp.Body.String())
}

func TestSummarizeNotConfigured(t *testing.T) {
	resp := post(setupRouter(nil), `{"transcript":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
