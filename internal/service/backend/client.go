// Package backend talks to the video processing service that owns transcript
// extraction and video indexing.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/model/transcript"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
)

var (
	// ErrUpstreamStatus is returned for any non-2xx upstream response.
	ErrUpstreamStatus = errors.New("upstream returned non-success status")
	// ErrProcessingFailed is returned when process_video answers without status "success".
	ErrProcessingFailed = errors.New("video processing failed")
)

// StatusError carries the upstream status code.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Endpoint, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// ProcessResult is the decoded process_video response.
type ProcessResult struct {
	Status     string               `json:"status"`
	Transcript []transcript.Segment `json:"transcript,omitempty"`
	Summary    string               `json:"summary,omitempty"`
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	IndexAPIKey string
	Timeout     time.Duration
}

// Client issues single, non-retried requests to the backend service.
type Client struct {
	baseURL     string
	indexAPIKey string
	timeout     time.Duration
	http        *fasthttp.Client
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewClient(opts Options, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     opts.BaseURL,
		indexAPIKey: opts.IndexAPIKey,
		timeout:     opts.Timeout,
		http: &fasthttp.Client{
			Name:                "podtalk-backend",
			MaxConnsPerHost:     64,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		logger:  logger.With(zap.String("component", "backend")),
		metrics: metrics,
	}
}

type videoRequest struct {
	VideoID string `json:"videoId"`
}

// FetchTranscript posts to /transcript and validates the response shape.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) (transcript.Payload, error) {
	started := time.Now()
	body, err := c.post(ctx, "/transcript", videoRequest{VideoID: videoID}, "")
	if err == nil {
		var payload transcript.Payload
		payload, err = transcript.Parse(body)
		c.metrics.ObserveUpstream("transcript", started, err)
		if err != nil {
			return transcript.Payload{}, fmt.Errorf("fetch transcript %s: %w", videoID, err)
		}
		return payload, nil
	}
	c.metrics.ObserveUpstream("transcript", started, err)
	return transcript.Payload{}, fmt.Errorf("fetch transcript %s: %w", videoID, err)
}

// ProcessVideo asks the backend to index a video. The index key, when
// configured, is sent as a bearer token.
func (c *Client) ProcessVideo(ctx context.Context, videoID string) (ProcessResult, error) {
	started := time.Now()
	result, err := c.processVideo(ctx, videoID)
	c.metrics.ObserveUpstream("process_video", started, err)
	return result, err
}

func (c *Client) processVideo(ctx context.Context, videoID string) (ProcessResult, error) {
	body, err := c.post(ctx, "/process_video", videoRequest{VideoID: videoID}, c.indexAPIKey)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("process video %s: %w", videoID, err)
	}

	var result ProcessResult
	if err := sonic.Unmarshal(body, &result); err != nil {
		return ProcessResult{}, fmt.Errorf("process video %s: decode response: %w", videoID, err)
	}
	if result.Status != "success" {
		return ProcessResult{}, fmt.Errorf("process video %s: %w (status %q)", videoID, ErrProcessingFailed, result.Status)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, bearer string) ([]byte, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.SetBody(data)

	type result struct {
		status int
		body   []byte
		err    error
	}

	// The request and response are released by the goroutine so an abandoned
	// call never frees buffers still in use.
	resC := make(chan result, 1)
	go func() {
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		err := c.http.DoTimeout(req, resp, c.timeout)
		resC <- result{status: resp.StatusCode(), body: append([]byte(nil), resp.Body()...), err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resC:
		if res.err != nil {
			return nil, fmt.Errorf("performing HTTP request: %w", res.err)
		}
		if res.status < 200 || res.status > 299 {
			c.logger.Warn("upstream non-success status",
				zap.String("path", path),
				zap.Int("status", res.status),
			)
			return nil, &StatusError{Endpoint: path, Code: res.status}
		}
		return res.body, nil
	}
}
