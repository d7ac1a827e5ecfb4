package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"macmarket/internal/cache"
	"macmarket/internal/config"
	"macmarket/internal/db"
	mcpserver "macmarket/internal/mcp"
	"macmarket/internal/readiness"
	"macmarket/internal/repository"
	"macmarket/internal/service"
	signalengine "macmarket/internal/signal"
	"macmarket/pkg/logger"
	"macmarket/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initLoggerFunc    = logger.Init
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	newMCPServerFunc  = mcpserver.NewServer
	newMCPHandlerFunc = mcpserver.NewHTTPTransportHandler
	runStdioFunc      = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()
	// stdout carries the stdio transport.
	if _, err := initLoggerFunc(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr}); err != nil {
		log.Warn().Err(err).Msg("invalid logger config, using defaults")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	signals, backtests, alerts, err := buildServices(cfg, tracer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}

	mcpSrv := newMCPServerFunc(tracer, signals, backtests, alerts, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	transport := strings.ToLower(strings.TrimSpace(cfg.MCPTransport))
	switch transport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatal().Err(err).Msg("mcp stdio server failed")
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatal().Err(err).Msg("mcp http server failed")
		}
	default:
		log.Fatal().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT")
	}
}

// buildServices wires the read paths the MCP tools need. Run history and
// cursors are skipped when Postgres or Redis are unavailable.
func buildServices(cfg *config.Config, tracer trace.Tracer) (*service.SignalService, *service.BacktestService, *service.AlertService, error) {
	modes, err := config.LoadModes(cfg.ModeProfilesPath)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, err := signalengine.NewEngine(cfg.HACO, cfg.HACOLT)
	if err != nil {
		return nil, nil, nil, err
	}
	scorer, err := readiness.NewScorer(cfg.Readiness)
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		barStore service.BarStore
		runRepo  service.BacktestRunRepository
		barCache service.SeriesCache
	)
	if db.Pool != nil {
		barStore = repository.NewCandleRepository(db.Pool, tracer)
		runRepo = repository.NewBacktestRepository(db.Pool, tracer)
	}
	if cache.Client != nil {
		barCache = cache.NewBarCache(cache.Client, time.Duration(cfg.BarCacheTTLSecs)*time.Second)
	}

	bars := service.NewBarService(tracer, barStore, barCache, nil)
	signals := service.NewSignalService(tracer, bars, engine, scorer, modes, nil, cfg.ScanWorkers).
		WithLookback(cfg.Lookback)
	backtests := service.NewBacktestService(tracer, signals, runRepo, nil, cfg.BacktestMinReadiness)
	alerts := service.NewAlertService(tracer, signals, nil, nil, nil)
	return signals, backtests, alerts, nil
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if !cfg.MCPHTTPEnabled {
		return fmt.Errorf("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	serve := startHTTPServerFunc
	go func() {
		log.Info().Str("addr", addr).Msg("mcp http server listening")
		if err := serve(srv); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("mcp http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
