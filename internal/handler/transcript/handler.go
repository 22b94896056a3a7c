package transcript

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	transcriptModel "github.com/zhouzirui/podtalk/backend/internal/model/transcript"
	"github.com/zhouzirui/podtalk/backend/pkg/utils"
)

// Source 返回校验过的字幕
type Source interface {
	Segments(ctx context.Context, videoID string) (transcriptModel.Payload, error)
	Text(ctx context.Context, videoID string) (string, error)
}

type Handler struct {
	source Source
	logger *zap.Logger
}

func New(source Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, logger: logger.With(zap.String("handler", "transcript"))}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/transcript", h.handleTranscript)
	r.Post("/text-only-transcript", h.handleTextOnly)
}

func decodeVideoID(r *http.Request) (string, bool) {
	var payload struct {
		VideoID string `json:"videoId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		return "", false
	}
	id := strings.TrimSpace(payload.VideoID)
	return id, id != ""
}

// handleTranscript 原样透传上游响应，保持后端返回的结构
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	videoID, ok := decodeVideoID(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid videoId")
		return
	}

	payload, err := h.source.Segments(r.Context(), videoID)
	if err != nil {
		h.logFailure(videoID, err)
		utils.RespondError(w, http.StatusInternalServerError, "Error fetching transcript")
		return
	}

	body := payload.Raw
	if len(body) == 0 {
		body, err = transcriptModel.Encode(payload.Segments, payload.Shape)
		if err != nil {
			h.logFailure(videoID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Error fetching transcript")
			return
		}
	}
	utils.RespondRawJSON(w, http.StatusOK, body)
}

func (h *Handler) handleTextOnly(w http.ResponseWriter, r *http.Request) {
	videoID, ok := decodeVideoID(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Invalid videoId")
		return
	}

	text, err := h.source.Text(r.Context(), videoID)
	if err != nil {
		h.logFailure(videoID, err)
		utils.RespondError(w, http.StatusInternalServerError, "Error fetching transcript")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"transcript": text})
}

func (h *Handler) logFailure(videoID string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	h.logger.Error("fetch transcript failed", zap.String("video_id", videoID), zap.Error(err))
}
