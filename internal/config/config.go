package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	"macmarket/internal/readiness"
	"macmarket/internal/signal"

	"github.com/rs/zerolog/log"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string

	HTTPPort            int
	HTTPRateLimitPerMin int
	LogLevel            string
	LogFormat           string

	HACO     signal.Params
	HACOLT   signal.Params
	Lookback int

	Readiness             readiness.Config
	BacktestMinReadiness  float64
	BacktestRetentionDays int

	ScanWorkers     int
	BarCacheTTLSecs int
	AlertPollSecs   int
	AlertSymbols    []string

	ModeProfilesPath string

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		ModeProfilesPath: strings.TrimSpace(os.Getenv("MODE_PROFILES_PATH")),
	}

	if cfg.TelegramBotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, telegram alerts disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPPort = envInt("HTTP_PORT", 8080)
	cfg.HTTPRateLimitPerMin = envInt("HTTP_RATE_LIMIT_PER_MIN", 120)
	cfg.LogLevel = envString("LOG_LEVEL", "info")
	cfg.LogFormat = envString("LOG_FORMAT", "json")

	cfg.HACO = signal.DefaultParams()
	cfg.HACO.LengthUp = envInt("HACO_LENGTH_UP", cfg.HACO.LengthUp)
	cfg.HACO.LengthDown = envInt("HACO_LENGTH_DOWN", cfg.HACO.LengthDown)
	cfg.HACO.AlertLookback = envInt("HACO_ALERT_LOOKBACK", cfg.HACO.AlertLookback)
	cfg.Lookback = envInt("HACO_LOOKBACK", 500)

	cfg.HACOLT = signal.DefaultLongTermParams()
	cfg.HACOLT.LengthUp = envInt("HACOLT_LENGTH_UP", cfg.HACOLT.LengthUp)
	cfg.HACOLT.LengthDown = envInt("HACOLT_LENGTH_DOWN", cfg.HACOLT.LengthDown)

	cfg.Readiness = readiness.DefaultConfig()
	cfg.Readiness.ReadyThreshold = envPercent("READINESS_THRESHOLD", cfg.Readiness.ReadyThreshold)
	cfg.Readiness.PassFloor = envPercent("READINESS_PASS_FLOOR", cfg.Readiness.PassFloor)
	cfg.Readiness.ADXMin = envPercent("READINESS_ADX_MIN", cfg.Readiness.ADXMin)
	cfg.Readiness.RSIThreshold = envPercent("READINESS_RSI_THRESHOLD", cfg.Readiness.RSIThreshold)
	cfg.Readiness.TrendPassScore = envPercent("READINESS_TREND_PASS_SCORE", cfg.Readiness.TrendPassScore)
	if v := strings.TrimSpace(os.Getenv("READINESS_WEIGHTS")); v != "" {
		if w, err := readiness.ParseWeights(v); err == nil {
			cfg.Readiness.Weights = w
		} else {
			log.Warn().Err(err).Msg("ignoring READINESS_WEIGHTS")
		}
	}
	if v := strings.TrimSpace(os.Getenv("READINESS_LONG_BIAS")); v != "" {
		cfg.Readiness.UseLongBias = !strings.EqualFold(v, "false")
	}
	cfg.BacktestMinReadiness = envPercent("BACKTEST_MIN_READINESS", cfg.Readiness.ReadyThreshold)
	cfg.BacktestRetentionDays = envInt("BACKTEST_RETENTION_DAYS", 90)

	cfg.ScanWorkers = envInt("SCAN_WORKERS", 4)
	cfg.BarCacheTTLSecs = envInt("BAR_CACHE_TTL_SECS", 60)
	cfg.AlertPollSecs = envInt("ALERT_POLL_SECS", 300)
	cfg.AlertSymbols = parseSymbols(os.Getenv("ALERT_SYMBOLS"), []string{"SPY", "QQQ"})

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warn().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")
	cfg.MCPHTTPBind = envString("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = envInt("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = envInt("MCP_REQUEST_TIMEOUT_SECS", 5)
	cfg.MCPRateLimitPerMin = envInt("MCP_RATE_LIMIT_PER_MIN", 60)

	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envInt returns fallback unless key holds a positive integer.
func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid positive integer")
		return fallback
	}
	return n
}

// envPercent returns fallback unless key holds a number within [0,100].
func envPercent(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || n < 0 || n > 100 {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid percentage")
		return fallback
	}
	return n
}

func parseSymbols(raw string, fallback []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		s := strings.ToUpper(strings.TrimSpace(part))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
