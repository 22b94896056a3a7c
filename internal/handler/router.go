package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	livekitHandler "github.com/zhouzirui/podtalk/backend/internal/handler/livekit"
	sessionHandler "github.com/zhouzirui/podtalk/backend/internal/handler/session"
	summaryHandler "github.com/zhouzirui/podtalk/backend/internal/handler/summary"
	transcriptHandler "github.com/zhouzirui/podtalk/backend/internal/handler/transcript"
	videoHandler "github.com/zhouzirui/podtalk/backend/internal/handler/video"
	middlewarePkg "github.com/zhouzirui/podtalk/backend/internal/middleware"
	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
	sessionService "github.com/zhouzirui/podtalk/backend/internal/service/session"
	"github.com/zhouzirui/podtalk/backend/pkg/utils"
)

// Dependencies are the services behind the HTTP surface. Summarizer may be
// nil when no chat model is configured.
type Dependencies struct {
	Minter      livekitHandler.Minter
	Processor   videoHandler.Processor
	Transcripts transcriptHandler.Source
	Summarizer  summaryHandler.Summarizer
	Sessions    *sessionService.Service
	Presets     *sessionModel.PresetStore
	Limiter     *middlewarePkg.RateLimiter
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Sessions.Count(),
		})
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		livekitHandler.New(deps.Minter, deps.Logger).
			RegisterRoutes(api, deps.Limiter.Handler("livekit"))
		videoHandler.New(deps.Processor, deps.Sessions, deps.Logger).RegisterRoutes(api)
		transcriptHandler.New(deps.Transcripts, deps.Logger).RegisterRoutes(api)
		summaryHandler.New(deps.Summarizer, deps.Logger).
			RegisterRoutes(api, deps.Limiter.Handler("summarize"))
		sessionHandler.New(deps.Sessions, deps.Presets, deps.Metrics, deps.Logger).RegisterRoutes(api)
	})

	return r
}
