package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/clock"
	"github.com/zhouzirui/podtalk/backend/internal/config"
	"github.com/zhouzirui/podtalk/backend/internal/logging"
	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
	"github.com/zhouzirui/podtalk/backend/internal/service/backend"
	"github.com/zhouzirui/podtalk/backend/internal/service/caption"
	"github.com/zhouzirui/podtalk/backend/internal/service/playback"
	"github.com/zhouzirui/podtalk/backend/internal/service/room"
	sessionService "github.com/zhouzirui/podtalk/backend/internal/service/session"
	"github.com/zhouzirui/podtalk/backend/internal/service/token"
)

func main() {
	mode := flag.String("mode", "", "测试模式: token, watch 或 captions")
	apiURL := flag.String("api", "http://localhost:8080", "API 服务地址 (token/watch 模式)")
	presetID := flag.String("preset", "", "会话预设 ID，留空使用默认配置")
	summary := flag.String("summary", "", "写入 instructions 的视频摘要")
	video := flag.String("video", "", "captions 模式的视频 URL 或 ID")
	dump := flag.Bool("dump", false, "以 YAML 打印发送的 ChatbotData")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	logger := logging.NewDevelopment(*verbose)
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Debug("无法加载 .env，改用系统环境变量", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("配置加载失败", zap.Error(err))
	}

	presets, err := sessionModel.LoadPresets(cfg.Session.PresetsFile)
	if err != nil {
		logger.Fatal("预设加载失败", zap.Error(err))
	}
	if *presetID == "" {
		*presetID = cfg.Session.PresetID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote := token.NewRemoteSource(*apiURL)
	summaryFn := func() string { return *summary }

	switch *mode {
	case "token":
		orch := sessionService.NewOrchestrator(remote, presets, *presetID, summaryFn, nil)
		if *dump {
			dumpChatbotData(logger, orch.ChatbotData())
		}
		runToken(ctx, logger, orch, *timeout)
	case "watch":
		runWatch(ctx, logger, cfg, remote, presets, *presetID, summaryFn, *dump, *timeout)
	case "captions":
		runCaptions(ctx, logger, cfg, *video, *timeout)
	default:
		flag.Usage()
		logger.Fatal("请通过 -mode=token, -mode=watch 或 -mode=captions 指定测试模式")
	}
}

func dumpChatbotData(logger *zap.Logger, data sessionModel.ChatbotData) {
	out, err := yaml.Marshal(data)
	if err != nil {
		logger.Fatal("序列化 ChatbotData 失败", zap.Error(err))
	}
	fmt.Print(string(out))
}

func runToken(ctx context.Context, logger *zap.Logger, orch *sessionService.Orchestrator, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	details, err := orch.Connect(ctx)
	if err != nil {
		logger.Fatal("获取令牌失败", zap.Error(err))
	}
	logger.Info("令牌获取成功",
		zap.String("ws_url", details.WSURL),
		zap.String("voice", details.Voice),
		zap.Int("token_length", len(details.Token)),
	)
}

// supervisedRoom 把房间在线状态转给监控器并记录日志
type supervisedRoom struct {
	logger *zap.Logger
	sup    *sessionService.Supervisor
}

func (s supervisedRoom) ConnectionChanged(connected bool) {
	s.logger.Info("房间连接状态变化", zap.Bool("connected", connected))
	s.sup.ConnectionChanged(connected)
}

func (s supervisedRoom) AgentChanged(present bool) {
	s.logger.Info("Agent 在线状态变化", zap.Bool("present", present))
	s.sup.AgentChanged(present)
}

// issuedToken 直接使用 API 下发的凭证入房，工具代替浏览器参与者
type issuedToken string

func (t issuedToken) MintObserver(string, string) (string, error) { return string(t), nil }

// runWatch 模拟浏览器连接，检查 Agent 是否在超时前加入
func runWatch(ctx context.Context, logger *zap.Logger, cfg *config.Config, tokens sessionService.TokenSource, presets *sessionModel.PresetStore, presetID string, summary func() string, dump bool, timeout time.Duration) {
	credsCh := make(chan sessionModel.Credentials, 1)
	orch := sessionService.NewOrchestrator(tokens, presets, presetID, summary, func(details sessionModel.ConnectionDetails, creds sessionModel.Credentials) {
		if details.ShouldConnect {
			select {
			case credsCh <- creds:
			default:
			}
		}
	})
	if dump {
		dumpChatbotData(logger, orch.ChatbotData())
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := orch.Connect(connectCtx); err != nil {
		logger.Fatal("获取令牌失败", zap.Error(err))
	}
	creds := <-credsCh
	if creds.URL == "" {
		creds.URL = cfg.LiveKit.URL
	}
	if creds.Room == "" {
		logger.Fatal("服务端未返回房间名，无法加入房间")
	}

	timeouts := make(chan sessionModel.NoticeKind, 1)
	sup := sessionService.NewSupervisor(clock.Real{}, cfg.Session.AgentJoinTimeout, cfg.Session.AgentRejoinTimeout,
		func(kind sessionModel.NoticeKind) { timeouts <- kind },
		func(state sessionService.SupervisorState) {
			logger.Info("监控状态", zap.Stringer("state", state))
		})
	defer sup.Close()

	joiner := room.NewLiveKitJoiner(issuedToken(creds.AccessToken), logger)
	joined, err := joiner.Join(connectCtx, room.Target{URL: creds.URL, Room: creds.Room}, supervisedRoom{logger: logger, sup: sup})
	if err != nil {
		logger.Fatal("加入房间失败", zap.String("room", creds.Room), zap.Error(err))
	}
	defer joined.Leave()
	logger.Info("已加入房间，等待 Agent", zap.String("room", creds.Room))

	select {
	case <-ctx.Done():
		orch.Disconnect()
		logger.Info("已断开")
	case kind := <-timeouts:
		orch.Disconnect()
		notice := sessionModel.NoticeFor(kind)
		logger.Warn(notice.Title, zap.String("detail", notice.Description))
	}
}

func runCaptions(ctx context.Context, logger *zap.Logger, cfg *config.Config, video string, timeout time.Duration) {
	videoID, err := playback.ExtractVideoID(video)
	if err != nil {
		logger.Fatal("无效的视频地址", zap.String("video", video), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := backend.NewClient(backend.Options{
		BaseURL:     cfg.Backend.BaseURL,
		IndexAPIKey: cfg.Backend.IndexAPIKey,
		Timeout:     timeout,
	}, logger, nil)
	payload, err := client.FetchTranscript(ctx, videoID)
	if err != nil {
		logger.Fatal("字幕获取失败", zap.Error(err))
	}

	for _, seg := range payload.Segments {
		fmt.Printf("%s: %s\n", caption.FormatTimestamp(seg.Start), seg.Text)
	}
	logger.Info("字幕获取成功", zap.String("video_id", videoID), zap.Int("segments", len(payload.Segments)))
}
