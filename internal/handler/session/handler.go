package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
	"github.com/zhouzirui/podtalk/backend/internal/service/playback"
	sessionService "github.com/zhouzirui/podtalk/backend/internal/service/session"
	"github.com/zhouzirui/podtalk/backend/pkg/utils"
)

// Handler 观看会话的HTTP处理器
type Handler struct {
	sessions *sessionService.Service
	presets  *sessionModel.PresetStore
	upgrader websocket.Upgrader
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// New 创建会话处理器
func New(sessions *sessionService.Service, presets *sessionModel.PresetStore, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		presets:  presets,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		metrics: metrics,
		logger:  logger.With(zap.String("handler", "session")),
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/presets", h.handleListPresets)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.withSession(h.handleGet))
			r.Delete("/", h.handleEnd)
			r.Post("/connect", h.withSession(h.handleConnect))
			r.Post("/disconnect", h.withSession(h.handleDisconnect))
			r.Post("/chat", h.withSession(h.handleChat))
			r.Post("/messages", h.withSession(h.handleMessage))
			r.Post("/summary", h.withSession(h.handleSummary))
			r.Post("/player", h.withSession(h.handlePlayer))
			r.Post("/captions", h.withSession(h.handleCaptions))
			r.Get("/captions", h.withSession(h.handleGetCaptions))
			r.Get("/ws", h.withSession(h.handleWebSocket))
			r.Get("/events", h.withSession(h.handleEvents))
		})
	})
}

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, sess *sessionService.Session)

func (h *Handler) withSession(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		next(w, r, sess)
	}
}

func (h *Handler) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets := h.presets.List()
	if presets == nil {
		presets = []sessionModel.Preset{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"presets": presets,
		"default": sessionModel.DefaultConfig(),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessions": h.sessions.List()})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VideoURL string `json:"videoUrl"`
		VideoID  string `json:"videoId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := strings.TrimSpace(payload.VideoURL)
	if target == "" {
		target = strings.TrimSpace(payload.VideoID)
	}

	sess, err := h.sessions.Create(target)
	if err != nil {
		if errors.Is(err, playback.ErrInvalidVideoURL) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid video URL")
			return
		}
		h.logger.Error("create session failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, sess.Snapshot())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	if _, err := sess.Connect(r.Context()); err != nil {
		status, message := connectFailure(err)
		if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
			h.logger.Error("session connect failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
		utils.RespondError(w, status, message)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, sess.Snapshot())
}

// connectFailure 将连接错误映射为状态码和可返回给客户端的提示
func connectFailure(err error) (int, string) {
	switch {
	case errors.Is(err, sessionService.ErrSessionClosed):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, sessionService.ErrConnectSuperseded):
		return http.StatusConflict, "connect superseded by disconnect"
	case errors.Is(err, sessionModel.ErrInvalidSessionConfig):
		return http.StatusBadRequest, "Invalid session config"
	default:
		return http.StatusBadGateway, sessionModel.NoticeFor(sessionModel.NoticeChatUnavailable).Description
	}
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	sess.Disconnect()
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	var payload struct {
		Open *bool `json:"open"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil || payload.Open == nil {
		utils.RespondError(w, http.StatusBadRequest, "open is required")
		return
	}
	if _, err := sess.SetChatOpen(*payload.Open); err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	var payload struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := sess.AddMessage(payload.Role, payload.Text); err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	var payload struct {
		Summary string `json:"summary"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess.SetSummary(strings.TrimSpace(payload.Summary))
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handlePlayer(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	var cmd sessionService.PlayerCommand
	if err := utils.DecodeJSON(r, &cmd); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := sess.HandlePlayer(cmd); err != nil {
		h.respondSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCaptions(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	segments, err := sess.LoadCaptions(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to load captions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"count": len(segments)})
}

func (h *Handler) handleGetCaptions(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"transcript": sess.Captions()})
}

func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, sessionService.ErrSessionClosed) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondError(w, http.StatusBadRequest, err.Error())
}
