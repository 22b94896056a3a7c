package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/clock"
	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
	"github.com/zhouzirui/podtalk/backend/internal/service/playback"
	"github.com/zhouzirui/podtalk/backend/internal/service/room"
	"github.com/zhouzirui/podtalk/backend/internal/store/usage"
)

var ErrSessionNotFound = errors.New("session not found")

// Dependencies are the collaborators shared by every session.
type Dependencies struct {
	Tokens      TokenSource
	Joiner      room.Joiner
	Transcripts TranscriptSource
	Summarizer  Summarizer
	Usage       usage.Store
	Presets     *sessionModel.PresetStore
	Clock       clock.Clock
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// Options tune session behavior.
type Options struct {
	PresetID      string
	JoinTimeout   time.Duration
	RejoinTimeout time.Duration
	IdleTimeout   time.Duration
	// AutoPrime loads captions and the summary in the background on Create.
	AutoPrime bool
}

// Service owns every live viewer session.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Dependencies
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
}

func NewService(deps Dependencies, opts Options) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sessions: make(map[string]*Session),
		deps:     deps,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		logger:   deps.Logger,
	}
}

// Create opens a session for a video URL or bare video id.
func (s *Service) Create(videoURL string) (*Session, error) {
	videoID, err := playback.ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	sess := newSession(s.ctx, videoID, sessionDeps{
		tokens:        s.deps.Tokens,
		joiner:        s.deps.Joiner,
		transcripts:   s.deps.Transcripts,
		summarizer:    s.deps.Summarizer,
		usage:         s.deps.Usage,
		presets:       s.deps.Presets,
		presetID:      s.opts.PresetID,
		clock:         s.deps.Clock,
		joinTimeout:   s.opts.JoinTimeout,
		rejoinTimeout: s.opts.RejoinTimeout,
		metrics:       s.deps.Metrics,
		logger:        s.logger,
	})

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.deps.Metrics.SessionOpened()
	s.logger.Info("session created", zap.String("session_id", sess.ID), zap.String("video_id", videoID))

	if s.opts.AutoPrime && s.deps.Transcripts != nil {
		go func() {
			if err := sess.Prime(sess.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Debug("session prime incomplete", zap.String("session_id", sess.ID), zap.Error(err))
			}
		}()
	}
	return sess, nil
}

// Get returns a live session.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// End closes and removes a session.
func (s *Service) End(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.Close()
	s.deps.Metrics.SessionClosed()
	s.logger.Info("session ended", zap.String("session_id", id))
	return nil
}

// List returns snapshots of every live session, newest first.
func (s *Service) List() []Snapshot {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor periodically ends sessions idle longer than IdleTimeout.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.opts.IdleTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireIdle()
			}
		}
	}()
}

// expireIdle ends idle sessions; a session with a live voice connection is
// never idle.
func (s *Service) expireIdle() int {
	now := s.deps.Clock.Now()
	var expired []string

	s.mu.RLock()
	for id, sess := range s.sessions {
		if sess.orch.Details().ShouldConnect {
			continue
		}
		if now.Sub(sess.LastActivity()) >= s.opts.IdleTimeout {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		if err := s.End(id); err == nil {
			s.deps.Metrics.SessionEvent("expired")
		}
	}
	return len(expired)
}

// Shutdown ends every session.
func (s *Service) Shutdown() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.End(id)
	}
	s.cancel()
}
