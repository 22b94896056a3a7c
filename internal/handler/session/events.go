package session

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	sessionService "github.com/zhouzirui/podtalk/backend/internal/service/session"
	"github.com/zhouzirui/podtalk/backend/pkg/utils"
)

const sseHeartbeat = 15 * time.Second

// handleEvents 以 SSE 推送会话事件，供不支持 WebSocket 的客户端使用
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := sess.Subscribe(64)
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "snapshot", sess.Snapshot()); err != nil {
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, ev.Type, ev); err != nil {
				h.logger.Debug("sse write failed", zap.String("session_id", sess.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
