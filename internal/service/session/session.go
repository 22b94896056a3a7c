package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/clock"
	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/model/transcript"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
	"github.com/zhouzirui/podtalk/backend/internal/service/caption"
	"github.com/zhouzirui/podtalk/backend/internal/service/playback"
	"github.com/zhouzirui/podtalk/backend/internal/service/room"
	"github.com/zhouzirui/podtalk/backend/internal/store/usage"
)

const roomJoinTimeout = 15 * time.Second

var (
	ErrSessionClosed = errors.New("session closed")
	ErrEmptyMessage  = errors.New("message text is required")
	ErrInvalidRole   = errors.New("message role must be user or assistant")
)

// TranscriptSource loads timed caption segments for a video.
type TranscriptSource interface {
	Segments(ctx context.Context, videoID string) (transcript.Payload, error)
}

// Summarizer condenses transcript text.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// PlayerCommand is a player report from the browser.
type PlayerCommand struct {
	Event    string   `json:"event"`
	State    string   `json:"state,omitempty"`
	Time     *float64 `json:"time,omitempty"`
	Duration float64  `json:"duration,omitempty"`
}

// CaptionsSnapshot describes the loaded caption list.
type CaptionsSnapshot struct {
	Loaded bool   `json:"loaded"`
	Count  int    `json:"count"`
	Active int    `json:"active"`
	Error  string `json:"error,omitempty"`
}

// Snapshot is the full session view returned by the API.
type Snapshot struct {
	ID         string                         `json:"id"`
	VideoID    string                         `json:"videoId"`
	CreatedAt  time.Time                      `json:"createdAt"`
	State      sessionModel.State             `json:"state"`
	Connection sessionModel.ConnectionDetails `json:"connection"`
	Supervisor SupervisorState                `json:"supervisor"`
	Player     playback.Snapshot              `json:"player"`
	Captions   CaptionsSnapshot               `json:"captions"`
	Summary    string                         `json:"summary,omitempty"`
}

type sessionDeps struct {
	tokens        TokenSource
	joiner        room.Joiner
	transcripts   TranscriptSource
	summarizer    Summarizer
	usage         usage.Store
	presets       *sessionModel.PresetStore
	presetID      string
	clock         clock.Clock
	joinTimeout   time.Duration
	rejoinTimeout time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// Session is one viewer watching one video. It owns the playground state,
// the connection lifecycle and the agent supervisor.
type Session struct {
	ID        string
	VideoID   string
	CreatedAt time.Time

	deps     sessionDeps
	hub      *Hub
	store    *Store
	orch     *Orchestrator
	sup      *Supervisor
	player   *playback.Controller
	captions *caption.Renderer
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	room         room.Room
	roomName     string
	connectedAt  time.Time
	joinGen      uint64
	joinCancel   context.CancelFunc
	outcome      string
	captionsErr  error
	captionsOK   bool
	lastActivity time.Time
	closed       bool
}

func newSession(parent context.Context, videoID string, deps sessionDeps) *Session {
	ctx, cancel := context.WithCancel(parent)
	now := deps.clock.Now()
	s := &Session{
		ID:           uuid.NewString(),
		VideoID:      videoID,
		CreatedAt:    now.UTC(),
		deps:         deps,
		hub:          NewHub(),
		captions:     caption.NewRenderer(nil),
		ctx:          ctx,
		cancel:       cancel,
		outcome:      usage.OutcomeCompleted,
		lastActivity: now,
	}
	s.logger = deps.logger.With(zap.String("session_id", s.ID), zap.String("video_id", videoID))
	s.store = NewStore(func(state sessionModel.State) { s.hub.Publish(EventState, state) })
	s.orch = NewOrchestrator(deps.tokens, deps.presets, deps.presetID, s.store.Summary, s.connectionChanged)
	s.sup = NewSupervisor(deps.clock, deps.joinTimeout, deps.rejoinTimeout, s.agentTimeout, func(state SupervisorState) {
		s.hub.Publish(EventSupervisor, state)
	})
	s.player = playback.NewController(videoID, deps.clock, s.positionChanged)
	return s
}

// Subscribe attaches an event stream to the session.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	return s.hub.Subscribe(buffer)
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	captions := CaptionsSnapshot{Loaded: s.captionsOK}
	if s.captionsErr != nil {
		captions.Error = sessionModel.NoticeFor(sessionModel.NoticeCaptionsFailed).Description
	}
	s.mu.Unlock()
	captions.Count = s.captions.Len()
	captions.Active = s.captions.Current()

	return Snapshot{
		ID:         s.ID,
		VideoID:    s.VideoID,
		CreatedAt:  s.CreatedAt,
		State:      s.store.State(),
		Connection: s.orch.Details(),
		Supervisor: s.sup.State(),
		Player:     s.player.Snapshot(),
		Captions:   captions,
		Summary:    s.store.Summary(),
	}
}

// Captions returns the loaded caption segments.
func (s *Session) Captions() []transcript.Segment {
	return s.captions.Segments()
}

// Connect starts a voice session. The returned error is ErrConnectSuperseded
// when Disconnect won the race.
func (s *Session) Connect(ctx context.Context) (sessionModel.ConnectionDetails, error) {
	if err := s.touch(); err != nil {
		return sessionModel.ConnectionDetails{}, err
	}
	s.store.Dispatch(sessionModel.SetConnecting{Connecting: true})
	details, err := s.orch.Connect(ctx)
	s.store.Dispatch(sessionModel.SetConnecting{Connecting: false})

	switch {
	case errors.Is(err, ErrConnectSuperseded):
		s.deps.metrics.SessionEvent("connect_superseded")
	case err != nil:
		s.deps.metrics.SessionEvent("connect_failed")
		s.logger.Warn("connect failed", zap.Error(err))
		s.notify(sessionModel.NoticeConnectFailed)
	default:
		s.deps.metrics.SessionEvent("connect")
	}
	return details, err
}

// Disconnect ends the voice session. Repeated calls are harmless.
func (s *Session) Disconnect() {
	_ = s.touch()
	s.orch.Disconnect()
}

// SetChatOpen toggles the chat panel.
func (s *Session) SetChatOpen(open bool) (sessionModel.State, error) {
	if err := s.touch(); err != nil {
		return sessionModel.State{}, err
	}
	return s.store.Dispatch(sessionModel.SetChatOpen{Open: open}), nil
}

// AddMessage appends a chat message. Empty text is rejected.
func (s *Session) AddMessage(role, text string) (sessionModel.Message, error) {
	if err := s.touch(); err != nil {
		return sessionModel.Message{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return sessionModel.Message{}, ErrEmptyMessage
	}
	if role == "" {
		role = "user"
	}
	if role != "user" && role != "assistant" {
		return sessionModel.Message{}, ErrInvalidRole
	}
	msg := sessionModel.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: s.deps.clock.Now().UTC(),
	}
	s.store.Dispatch(sessionModel.AddMessage{Message: msg})
	return msg, nil
}

// HandlePlayer applies a player report.
func (s *Session) HandlePlayer(cmd PlayerCommand) (playback.Snapshot, error) {
	if err := s.touch(); err != nil {
		return playback.Snapshot{}, err
	}
	switch cmd.Event {
	case "ready":
		s.player.Ready(cmd.Duration)
	case "state":
		state, err := playback.ParseState(cmd.State)
		if err != nil {
			return playback.Snapshot{}, err
		}
		s.player.SetState(state, cmd.Time)
	case "seek":
		if cmd.Time == nil {
			return playback.Snapshot{}, errors.New("seek requires time")
		}
		s.player.Seek(*cmd.Time)
	default:
		return playback.Snapshot{}, errors.New("unknown player event " + cmd.Event)
	}
	snap := s.player.Snapshot()
	s.hub.Publish(EventPlayer, snap)
	s.positionChanged(snap.Position)
	return snap, nil
}

// Prime loads captions, then summarizes the transcript text. A caption
// failure stops the pipeline; the summary stays empty.
func (s *Session) Prime(ctx context.Context) error {
	segments, err := s.LoadCaptions(ctx)
	if err != nil {
		return err
	}
	if s.deps.summarizer == nil {
		return nil
	}
	text := transcript.JoinText(segments)
	summary, err := s.deps.summarizer.Summarize(ctx, text)
	if err != nil {
		s.logger.Warn("summarize failed", zap.Error(err))
		return err
	}
	s.SetSummary(summary)
	return nil
}

// LoadCaptions fetches the caption list. On failure the session keeps its
// previous captions and pushes a captions notice.
func (s *Session) LoadCaptions(ctx context.Context) ([]transcript.Segment, error) {
	if s.deps.transcripts == nil {
		return nil, errors.New("transcript source not configured")
	}
	payload, err := s.deps.transcripts.Segments(ctx, s.VideoID)
	if err != nil {
		s.mu.Lock()
		s.captionsErr = err
		s.mu.Unlock()
		s.logger.Warn("load captions failed", zap.Error(err))
		s.notify(sessionModel.NoticeCaptionsFailed)
		return nil, err
	}

	s.captions.SetSegments(payload.Segments)
	s.mu.Lock()
	s.captionsErr = nil
	s.captionsOK = true
	s.mu.Unlock()
	s.hub.Publish(EventCaptions, map[string]any{"count": len(payload.Segments)})
	s.positionChanged(s.player.Position())
	return payload.Segments, nil
}

// SetSummary stores the summary used for future connects.
func (s *Session) SetSummary(summary string) {
	s.store.SetSummary(summary)
	s.hub.Publish(EventSummary, map[string]string{"summary": summary})
}

// LastActivity reports the time of the last client command.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Close tears the session down. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.orch.Disconnect()
	s.leaveRoom()
	s.sup.Close()
	s.player.Close()
	s.cancel()
	s.hub.Publish(EventEnded, map[string]string{"id": s.ID})
	s.hub.Close()
}

func (s *Session) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lastActivity = s.deps.clock.Now()
	return nil
}

func (s *Session) notify(kind sessionModel.NoticeKind) {
	s.hub.Publish(EventNotice, sessionModel.NoticeFor(kind))
}

func (s *Session) positionChanged(pos float64) {
	if ev, ok := s.captions.Reconcile(pos); ok {
		s.hub.Publish(EventCaption, ev)
	}
}

// connectionChanged follows ShouldConnect: true joins the room, false leaves.
// The join generation is reserved here, before the goroutine starts, so a
// Disconnect that lands first always invalidates it.
func (s *Session) connectionChanged(details sessionModel.ConnectionDetails, creds sessionModel.Credentials) {
	public := details
	public.Token = ""
	s.hub.Publish(EventConnection, public)

	if !details.ShouldConnect {
		s.leaveRoom()
		return
	}
	if s.deps.joiner == nil {
		return
	}

	s.mu.Lock()
	// onChange runs outside the orchestrator lock; a Disconnect may already
	// have overtaken this notification.
	if s.closed || !s.orch.Details().ShouldConnect {
		s.mu.Unlock()
		return
	}
	s.joinGen++
	gen := s.joinGen
	if s.joinCancel != nil {
		s.joinCancel()
	}
	ctx, cancel := context.WithTimeout(s.ctx, roomJoinTimeout)
	s.joinCancel = cancel
	s.mu.Unlock()

	go s.joinRoom(ctx, cancel, gen, creds)
}

func (s *Session) joinRoom(ctx context.Context, cancel context.CancelFunc, gen uint64, creds sessionModel.Credentials) {
	defer cancel()

	r, err := s.deps.joiner.Join(ctx, room.Target{URL: creds.URL, Room: creds.Room}, s)

	s.mu.Lock()
	if gen != s.joinGen || s.closed || !s.orch.Details().ShouldConnect {
		idle := s.room == nil
		if gen == s.joinGen {
			s.joinCancel = nil
		}
		s.mu.Unlock()
		if r != nil {
			r.Leave()
			// the joiner may have reported the connection before we abandoned it
			if idle {
				s.sup.ConnectionChanged(false)
				s.store.Dispatch(sessionModel.SetConnected{Connected: false})
			}
		}
		return
	}
	s.joinCancel = nil
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("join room failed", zap.String("room", creds.Room), zap.Error(err))
		s.record(creds.Room, s.deps.clock.Now(), usage.OutcomeJoinFailed)
		s.notify(sessionModel.NoticeChatUnavailable)
		s.orch.Disconnect()
		return
	}
	prev := s.room
	s.room = r
	s.roomName = creds.Room
	s.connectedAt = s.deps.clock.Now()
	s.mu.Unlock()
	if prev != nil {
		prev.Leave()
	}
	s.deps.metrics.SessionEvent("room_joined")
}

func (s *Session) leaveRoom() {
	s.mu.Lock()
	s.joinGen++
	if s.joinCancel != nil {
		s.joinCancel()
		s.joinCancel = nil
	}
	r, roomName, started, outcome := s.room, s.roomName, s.connectedAt, s.outcome
	s.room = nil
	s.outcome = usage.OutcomeCompleted
	s.mu.Unlock()

	if r == nil {
		return
	}
	r.Leave()
	s.sup.ConnectionChanged(false)
	s.store.Dispatch(sessionModel.SetConnected{Connected: false})
	s.record(roomName, started, outcome)
}

func (s *Session) record(roomName string, started time.Time, outcome string) {
	if s.deps.usage == nil {
		return
	}
	ended := s.deps.clock.Now()
	rec := usage.Record{
		ID:          uuid.NewString(),
		SessionID:   s.ID,
		VideoID:     s.VideoID,
		Room:        roomName,
		Outcome:     outcome,
		StartedAt:   started.UTC(),
		EndedAt:     ended.UTC(),
		MinutesUsed: usage.MinutesBetween(started, ended),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.usage.Save(ctx, rec); err != nil {
		s.logger.Warn("save usage record failed", zap.Error(err))
	}
}

// agentTimeout runs when the supervisor gives up on the agent.
func (s *Session) agentTimeout(kind sessionModel.NoticeKind) {
	outcome := usage.OutcomeAgentTimeout
	if kind == sessionModel.NoticeAgentDisconnected {
		outcome = usage.OutcomeAgentDisconnected
	}
	s.mu.Lock()
	s.outcome = outcome
	s.mu.Unlock()

	s.logger.Info("agent liveness timeout", zap.String("kind", string(kind)))
	s.deps.metrics.SupervisorTimeout(string(kind))
	s.orch.Disconnect()
	s.notify(kind)
}

// ConnectionChanged implements room.Listener.
func (s *Session) ConnectionChanged(connected bool) {
	s.store.Dispatch(sessionModel.SetConnected{Connected: connected})
	s.sup.ConnectionChanged(connected)
}

// AgentChanged implements room.Listener.
func (s *Session) AgentChanged(present bool) {
	s.sup.AgentChanged(present)
}
