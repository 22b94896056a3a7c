package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/zhouzirui/podtalk/backend/internal/model/session"
)

const defaultRemoteTimeout = 30 * time.Second

// RemoteSource requests credentials from a running API server through
// POST /api/livekit. It is used by tools that run outside the server.
type RemoteSource struct {
	endpoint string
	client   *fasthttp.Client
}

// NewRemoteSource targets baseURL, e.g. http://localhost:8080.
func NewRemoteSource(baseURL string) *RemoteSource {
	return &RemoteSource{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/livekit",
		client:   &fasthttp.Client{Name: "podtalk-sessiontester"},
	}
}

type remoteResponse struct {
	AccessToken string `json:"accessToken"`
	URL         string `json:"url"`
	RoomName    string `json:"roomName"`
	Identity    string `json:"participantIdentity"`
	Error       string `json:"error"`
}

// RequestToken posts data and returns the issued credentials. The request is
// bounded by ctx's deadline, or 30s without one.
func (s *RemoteSource) RequestToken(ctx context.Context, data session.ChatbotData) (session.Credentials, error) {
	body, err := sonic.Marshal(data)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("encode chatbot data: %w", err)
	}

	timeout := defaultRemoteTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return session.Credentials{}, context.DeadlineExceeded
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := s.client.DoTimeout(req, resp, timeout); err != nil {
		return session.Credentials{}, fmt.Errorf("request token: %w", err)
	}

	var out remoteResponse
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil {
		return session.Credentials{}, fmt.Errorf("decode token response (status %d): %w", resp.StatusCode(), err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return session.Credentials{}, fmt.Errorf("request token: status %d: %s", resp.StatusCode(), out.Error)
	}
	if out.AccessToken == "" {
		return session.Credentials{}, fmt.Errorf("request token: empty access token")
	}
	return session.Credentials{AccessToken: out.AccessToken, URL: out.URL, Room: out.RoomName, Identity: out.Identity}, nil
}
