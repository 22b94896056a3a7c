package video

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/service/backend"
	sessionService "github.com/zhouzirui/podtalk/backend/internal/service/session"
	"github.com/zhouzirui/podtalk/backend/pkg/utils"
)

// Processor 调用后端服务处理视频
type Processor interface {
	ProcessVideo(ctx context.Context, videoID string) (backend.ProcessResult, error)
}

// Sessions 查找结果要关联的观看会话
type Sessions interface {
	Get(id string) (*sessionService.Session, error)
}

type Handler struct {
	processor Processor
	sessions  Sessions
	logger    *zap.Logger
}

func New(processor Processor, sessions Sessions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{processor: processor, sessions: sessions, logger: logger.With(zap.String("handler", "video"))}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/process_video", h.handleProcessVideo)
}

// handleProcessVideo 转发到后端；带 sessionId 时用返回的摘要更新该会话
func (h *Handler) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VideoID   string `json:"videoId"`
		SessionID string `json:"sessionId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil || strings.TrimSpace(payload.VideoID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Missing videoId in request body")
		return
	}

	var sess *sessionService.Session
	if payload.SessionID != "" && h.sessions != nil {
		found, err := h.sessions.Get(payload.SessionID)
		if err != nil {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		sess = found
	}

	result, err := h.processor.ProcessVideo(r.Context(), payload.VideoID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.Error("process video failed", zap.String("video_id", payload.VideoID), zap.Error(err))
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to process video")
		return
	}

	if sess != nil && result.Summary != "" {
		sess.SetSummary(result.Summary)
	}
	utils.RespondJSON(w, http.StatusOK, result)
}
