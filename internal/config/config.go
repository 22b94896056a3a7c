package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	LiveKit   LiveKitConfig
	Backend   BackendConfig
	Session   SessionConfig
	Cache     CacheConfig
	Store     StoreConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	livekit, err := loadLiveKitConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	cache, err := loadCacheConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		LiveKit:   livekit,
		Backend:   backend,
		Session:   session,
		Cache:     cache,
		Store:     StoreConfig{DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		Log:       logCfg,
		RateLimit: rateLimit,
		Metrics:   MetricsConfig{Namespace: getEnvOrDefault("METRICS_NAMESPACE", "podtalk")},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LLM_PROVIDER 支持的取值。
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了所选 provider 必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
	}
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI))
	if provider != ProviderOpenAI && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value: %q", provider)
	}

	return AIConfig{
		Provider:      provider,
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
	}, nil
}

// LiveKitConfig 描述实时房间服务的凭证。
type LiveKitConfig struct {
	APIKey    string
	APISecret string
	URL       string
	AgentName string
	TokenTTL  time.Duration
}

// Enabled 表示是否配置了签发令牌所需的密钥。
func (c LiveKitConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

func loadLiveKitConfig() (LiveKitConfig, error) {
	ttl, err := parseDurationEnv("TOKEN_TTL", 6*time.Hour)
	if err != nil {
		return LiveKitConfig{}, err
	}

	url := strings.TrimSpace(os.Getenv("LIVEKIT_URL"))
	if url == "" {
		url = strings.TrimSpace(os.Getenv("NEXT_PUBLIC_LIVEKIT_URL"))
	}

	return LiveKitConfig{
		APIKey:    strings.TrimSpace(os.Getenv("LIVEKIT_API_KEY")),
		APISecret: strings.TrimSpace(os.Getenv("LIVEKIT_API_SECRET")),
		URL:       url,
		AgentName: strings.TrimSpace(os.Getenv("LIVEKIT_AGENT_NAME")),
		TokenTTL:  ttl,
	}, nil
}

// BackendConfig 描述视频处理后端（转录、索引）。
type BackendConfig struct {
	BaseURL     string
	IndexAPIKey string
	Timeout     time.Duration
}

func loadBackendConfig() (BackendConfig, error) {
	timeout, err := parseDurationEnv("SERVER_TIMEOUT", 60*time.Second)
	if err != nil {
		return BackendConfig{}, err
	}

	return BackendConfig{
		BaseURL:     strings.TrimRight(getEnvOrDefault("SERVER_BASE_URL", "http://localhost:5000"), "/"),
		IndexAPIKey: strings.TrimSpace(os.Getenv("PINECONE_API_KEY")),
		Timeout:     timeout,
	}, nil
}

// SessionConfig 描述观看会话与语音连接的超时设置。
type SessionConfig struct {
	AgentJoinTimeout   time.Duration
	AgentRejoinTimeout time.Duration
	IdleTimeout        time.Duration
	PresetsFile        string
	PresetID           string
}

func loadSessionConfig() (SessionConfig, error) {
	join, err := parseDurationEnv("AGENT_JOIN_TIMEOUT", 5*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	rejoin, err := parseDurationEnv("AGENT_REJOIN_TIMEOUT", 5*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	idle, err := parseDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		AgentJoinTimeout:   join,
		AgentRejoinTimeout: rejoin,
		IdleTimeout:        idle,
		PresetsFile:        strings.TrimSpace(os.Getenv("SESSION_PRESETS_FILE")),
		PresetID:           strings.TrimSpace(os.Getenv("SESSION_PRESET")),
	}, nil
}

// CacheConfig 描述摘要与字幕缓存。
type CacheConfig struct {
	RedisURL   string
	TTL        time.Duration
	MaxEntries int
}

func loadCacheConfig() (CacheConfig, error) {
	ttl, err := parseDurationEnv("CACHE_TTL", 24*time.Hour)
	if err != nil {
		return CacheConfig{}, err
	}

	maxEntries := 512
	if override, err := parseOptionalIntEnv("CACHE_MAX_ENTRIES"); err != nil {
		return CacheConfig{}, err
	} else if override != nil {
		maxEntries = *override
	}

	return CacheConfig{
		RedisURL:   strings.TrimSpace(os.Getenv("REDIS_URL")),
		TTL:        ttl,
		MaxEntries: maxEntries,
	}, nil
}

// StoreConfig 选择用量记录的存储。
type StoreConfig struct {
	DatabaseURL string
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level         string
	File          string
	FileMaxSizeMB int
	FileBackups   int
	FileMaxAge    int
	FileCompress  bool
}

func loadLogConfig() (LogConfig, error) {
	cfg := LogConfig{
		Level:         getEnvOrDefault("LOG_LEVEL", "info"),
		File:          strings.TrimSpace(os.Getenv("LOG_FILE")),
		FileMaxSizeMB: 10,
		FileBackups:   2,
		FileMaxAge:    3,
	}

	if v, err := parseOptionalIntEnv("LOG_FILE_MAX_SIZE_MB"); err != nil {
		return LogConfig{}, err
	} else if v != nil {
		cfg.FileMaxSizeMB = *v
	}
	if v, err := parseOptionalIntEnv("LOG_FILE_MAX_BACKUPS"); err != nil {
		return LogConfig{}, err
	} else if v != nil {
		cfg.FileBackups = *v
	}
	if v, err := parseOptionalIntEnv("LOG_FILE_MAX_AGE_DAYS"); err != nil {
		return LogConfig{}, err
	} else if v != nil {
		cfg.FileMaxAge = *v
	}

	compress, err := parseBoolEnv("LOG_FILE_COMPRESS", false)
	if err != nil {
		return LogConfig{}, err
	}
	cfg.FileCompress = compress

	return cfg, nil
}

// RateLimitConfig 限制 token 与摘要接口的请求速率，RPS<=0 表示关闭。
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	cfg := RateLimitConfig{RPS: 5, Burst: 10}

	rps, err := parseOptionalFloatEnv("RATE_LIMIT_RPS")
	if err != nil {
		return RateLimitConfig{}, err
	}
	if rps != nil {
		cfg.RPS = *rps
	}

	burst, err := parseOptionalIntEnv("RATE_LIMIT_BURST")
	if err != nil {
		return RateLimitConfig{}, err
	}
	if burst != nil {
		cfg.Burst = *burst
	}

	return cfg, nil
}

// MetricsConfig 描述 Prometheus 指标。
type MetricsConfig struct {
	Namespace string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
