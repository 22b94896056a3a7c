package livekit

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/service/token"
	"github.com/zhouzirui/podtalk/backend/pkg/utils"
)

// Minter 签发房间令牌
type Minter interface {
	Mint(room, identity string) (string, error)
	RequestToken(ctx context.Context, data sessionModel.ChatbotData) (sessionModel.Credentials, error)
}

// Handler 房间令牌接口
type Handler struct {
	minter Minter
	logger *zap.Logger
}

func New(minter Minter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{minter: minter, logger: logger.With(zap.String("handler", "livekit"))}
}

// RegisterRoutes 注册令牌路由，可附加限流等中间件
func (h *Handler) RegisterRoutes(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.With(middlewares...).Get("/livekit", h.handleQueryToken)
	r.With(middlewares...).Post("/livekit", h.handlePost)
}

// handlePost 兼容查询参数形式，另支持携带 agent 配置的请求体
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("room") || q.Has("username") {
		h.handleQueryToken(w, r)
		return
	}

	var data sessionModel.ChatbotData
	if err := utils.DecodeJSON(r, &data); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	creds, err := h.minter.RequestToken(r.Context(), data)
	switch {
	case errors.Is(err, sessionModel.ErrInvalidSessionConfig):
		utils.RespondError(w, http.StatusBadRequest, "Invalid session config")
		return
	case errors.Is(err, token.ErrMissingCredentials):
		h.logger.Error("room credentials not configured")
		utils.RespondError(w, http.StatusInternalServerError, "Server misconfigured")
		return
	case err != nil:
		h.logger.Error("request token failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"accessToken":         creds.AccessToken,
		"url":                 creds.URL,
		"roomName":            creds.Room,
		"participantIdentity": creds.Identity,
	})
}

func (h *Handler) handleQueryToken(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	username := r.URL.Query().Get("username")
	if room == "" || username == "" {
		utils.RespondError(w, http.StatusBadRequest, "Missing room or username")
		return
	}

	jwt, err := h.minter.Mint(room, username)
	if err != nil {
		if errors.Is(err, token.ErrMissingCredentials) {
			h.logger.Error("room credentials not configured")
		} else {
			h.logger.Error("mint token failed", zap.Error(err))
		}
		utils.RespondError(w, http.StatusInternalServerError, "Server misconfigured")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"token": jwt})
}
