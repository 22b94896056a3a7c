package summary

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/pkg/utils"
)

// Summarizer 生成字幕摘要
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type Handler struct {
	summarizer Summarizer
	logger     *zap.Logger
}

// New 创建摘要处理器，summarizer 为空时接口返回 500
func New(summarizer Summarizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{summarizer: summarizer, logger: logger.With(zap.String("handler", "summary"))}
}

// RegisterRoutes 注册摘要路由，可附加限流等中间件
func (h *Handler) RegisterRoutes(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.With(middlewares...).Post("/summarize", h.handleSummarize)
}

func (h *Handler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Transcript string `json:"transcript"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil || strings.TrimSpace(payload.Transcript) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Missing transcript")
		return
	}

	if h.summarizer == nil {
		h.logger.Error("summarize requested but no chat model is configured")
		utils.RespondError(w, http.StatusInternalServerError, "Error fetching Summary")
		return
	}

	summary, err := h.summarizer.Summarize(r.Context(), payload.Transcript)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.Error("summarize failed", zap.Int("transcript_length", len(payload.Transcript)), zap.Error(err))
		}
		utils.RespondError(w, http.StatusInternalServerError, "Error fetching Summary")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
