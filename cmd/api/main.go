package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/cache"
	"github.com/zhouzirui/podtalk/backend/internal/config"
	"github.com/zhouzirui/podtalk/backend/internal/handler"
	"github.com/zhouzirui/podtalk/backend/internal/logging"
	middlewarePkg "github.com/zhouzirui/podtalk/backend/internal/middleware"
	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
	"github.com/zhouzirui/podtalk/backend/internal/service/ai"
	"github.com/zhouzirui/podtalk/backend/internal/service/backend"
	"github.com/zhouzirui/podtalk/backend/internal/service/room"
	sessionService "github.com/zhouzirui/podtalk/backend/internal/service/session"
	"github.com/zhouzirui/podtalk/backend/internal/service/summary"
	"github.com/zhouzirui/podtalk/backend/internal/service/token"
	"github.com/zhouzirui/podtalk/backend/internal/service/transcript"
	"github.com/zhouzirui/podtalk/backend/internal/store/usage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.NewDevelopment(false).Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logging.NewDevelopment(false).Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("failed to load .env file, continuing with system environment variables only", zap.Error(envErr))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(cfg.Metrics.Namespace, registry)

	responseCache := cache.New(ctx, cache.Options{
		RedisURL:   cfg.Cache.RedisURL,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}, logger)
	defer responseCache.Close()
	metrics.RegisterCache(responseCache)

	usageStore, err := usage.NewStore(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open usage store", zap.Error(err))
	}
	defer usageStore.Close()

	presets, err := sessionModel.LoadPresets(cfg.Session.PresetsFile)
	if err != nil {
		logger.Fatal("failed to load session presets", zap.Error(err))
	}

	backendClient := backend.NewClient(backend.Options{
		BaseURL:     cfg.Backend.BaseURL,
		IndexAPIKey: cfg.Backend.IndexAPIKey,
		Timeout:     cfg.Backend.Timeout,
	}, logger, metrics)
	transcripts := transcript.NewService(backendClient, responseCache, logger)

	// Summaries need a chat model; without one /api/summarize answers 500.
	var summarizer *summary.Service
	if cfg.AI.Enabled() {
		chatModel, err := ai.NewChatModel(ctx, cfg.AI)
		if err != nil {
			logger.Warn("failed to initialize chat model, continuing without summaries", zap.Error(err))
		} else if summarizer, err = summary.NewService(ctx, chatModel, responseCache, logger, metrics); err != nil {
			logger.Warn("failed to build summary chain", zap.Error(err))
			summarizer = nil
		} else {
			logger.Info("summary service initialized", zap.String("provider", cfg.AI.Provider))
		}
	} else {
		logger.Info("chat model credentials not configured, skipping summaries")
	}

	minter := token.NewMinter(cfg.LiveKit, metrics)
	var joiner room.Joiner
	if cfg.LiveKit.Enabled() && cfg.LiveKit.URL != "" {
		joiner = room.NewLiveKitJoiner(minter, logger)
	} else {
		logger.Info("room credentials not configured, agent supervision disabled")
	}

	deps := sessionService.Dependencies{
		Tokens:      minter,
		Joiner:      joiner,
		Transcripts: transcripts,
		Usage:       usageStore,
		Presets:     presets,
		Metrics:     metrics,
		Logger:      logger,
	}
	routerDeps := handler.Dependencies{
		Minter:      minter,
		Processor:   backendClient,
		Transcripts: transcripts,
		Presets:     presets,
		Limiter:     middlewarePkg.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, metrics),
		Metrics:     metrics,
		Logger:      logger,
	}
	if summarizer != nil {
		deps.Summarizer = summarizer
		routerDeps.Summarizer = summarizer
	}

	sessions := sessionService.NewService(deps, sessionService.Options{
		PresetID:      cfg.Session.PresetID,
		JoinTimeout:   cfg.Session.AgentJoinTimeout,
		RejoinTimeout: cfg.Session.AgentRejoinTimeout,
		IdleTimeout:   cfg.Session.IdleTimeout,
		AutoPrime:     true,
	})
	defer sessions.Shutdown()
	sessions.StartJanitor(ctx, time.Minute)
	routerDeps.Sessions = sessions

	router := handler.NewRouter(routerDeps)

	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("podtalk backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
