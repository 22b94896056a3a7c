// Package transcript fetches caption segments for a video, with caching.
package transcript

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/cache"
	model "github.com/zhouzirui/podtalk/backend/internal/model/transcript"
)

// ErrMissingVideoID is returned before any network call when the id is blank.
var ErrMissingVideoID = errors.New("video id is required")

// Fetcher performs the upstream transcript request.
type Fetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (model.Payload, error)
}

// Service wraps a Fetcher with the two-tier cache. Cache misses fall through
// to exactly one upstream call.
type Service struct {
	fetcher Fetcher
	cache   *cache.Cache
	logger  *zap.Logger
}

func NewService(fetcher Fetcher, c *cache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fetcher: fetcher, cache: c, logger: logger.With(zap.String("component", "transcript"))}
}

// Segments returns the validated payload, keeping the upstream bytes intact.
func (s *Service) Segments(ctx context.Context, videoID string) (model.Payload, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return model.Payload{}, ErrMissingVideoID
	}

	key := cache.Key("transcript", videoID)
	if raw, ok := s.cache.GetBytes(ctx, key); ok {
		if payload, err := model.Parse(raw); err == nil {
			return payload, nil
		}
		s.logger.Warn("discarding unreadable cached transcript", zap.String("video_id", videoID))
	}

	payload, err := s.fetcher.FetchTranscript(ctx, videoID)
	if err != nil {
		return model.Payload{}, err
	}
	s.cache.SetBytes(ctx, key, payload.Raw)
	return payload, nil
}

// Text returns the transcript as one string with segments joined by spaces.
func (s *Service) Text(ctx context.Context, videoID string) (string, error) {
	payload, err := s.Segments(ctx, videoID)
	if err != nil {
		return "", err
	}
	return model.JoinText(payload.Segments), nil
}
