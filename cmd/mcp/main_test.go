package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"

	"macmarket/internal/config"
	mcpserver "macmarket/internal/mcp"
	"macmarket/pkg/logger"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainMCPStdio(t *testing.T) {
	restore := stubMCPDeps(t, "stdio")
	defer restore()

	called := false
	origRunStdio := runStdioFunc
	runStdioFunc = func(ctx context.Context, server *sdkmcp.Server) error {
		called = true
		return nil
	}
	defer func() { runStdioFunc = origRunStdio }()

	main()

	if !called {
		t.Fatal("expected stdio transport to run")
	}
}

func TestMainMCPHTTP(t *testing.T) {
	restore := stubMCPDeps(t, "http")
	defer restore()

	started := make(chan struct{})
	origStartHTTP := startHTTPServerFunc
	origNotify := setupSignalNotify
	origWait := waitForSignalFunc
	origShutdown := shutdownHTTPServerFn

	var shutdownAddr string
	startHTTPServerFunc = func(*http.Server) error {
		close(started)
		return http.ErrServerClosed
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) { <-started }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error {
		shutdownAddr = srv.Addr
		return nil
	}

	defer func() {
		startHTTPServerFunc = origStartHTTP
		setupSignalNotify = origNotify
		waitForSignalFunc = origWait
		shutdownHTTPServerFn = origShutdown
	}()

	main()

	if shutdownAddr != "127.0.0.1:8090" {
		t.Fatalf("expected http transport on 127.0.0.1:8090, got %q", shutdownAddr)
	}
}

func TestMainMCPHTTPRequiresToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		MCPHTTPEnabled: true,
		MCPHTTPBind:    "127.0.0.1",
		MCPHTTPPort:    8090,
	}
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test"}, nil)

	err := runHTTPMode(ctx, cancel, cfg, srv)
	if err == nil {
		t.Fatal("expected missing token error")
	}
	if !strings.Contains(err.Error(), "MCP_AUTH_TOKEN is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMainMCPHTTPRequiresEnabledFlag(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test"}, nil)
	err := runHTTPMode(ctx, cancel, &config.Config{MCPAuthToken: "secret"}, srv)
	if err == nil || !strings.Contains(err.Error(), "MCP_HTTP_ENABLED") {
		t.Fatalf("expected disabled http error, got %v", err)
	}
}

func TestBuildServicesWithoutBackends(t *testing.T) {
	t.Setenv("MODE_PROFILES_PATH", "")
	cfg := config.Load()
	tracer := trace.NewNoopTracerProvider().Tracer("test")

	signals, backtests, alerts, err := buildServices(cfg, tracer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signals == nil || backtests == nil || alerts == nil {
		t.Fatal("expected all services")
	}
	if len(signals.Modes()) != 4 || len(backtests.Strategies()) != 4 {
		t.Fatalf("unexpected catalog: %v %v", signals.Modes(), backtests.Strategies())
	}
}

func stubMCPDeps(t *testing.T, transport string) func() {
	t.Helper()

	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitLogger := initLoggerFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origNewMCPServer := newMCPServerFunc
	origNewMCPHandler := newMCPHandlerFunc

	t.Setenv("MODE_PROFILES_PATH", "")
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		cfg := config.Load()
		cfg.MCPTransport = transport
		cfg.MCPHTTPEnabled = true
		cfg.MCPHTTPBind = "127.0.0.1"
		cfg.MCPHTTPPort = 8090
		cfg.MCPAuthToken = "secret"
		cfg.MCPRequestTimeoutSecs = 1
		return cfg
	}
	initLoggerFunc = func(logger.Config) (zerolog.Logger, error) { return zerolog.Nop(), nil }
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newMCPServerFunc = func(trace.Tracer, mcpserver.SignalReader, mcpserver.BacktestRunner, mcpserver.AlertTester, mcpserver.ServerConfig) *sdkmcp.Server {
		return sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test-mcp"}, nil)
	}
	newMCPHandlerFunc = func(server *sdkmcp.Server, cfg mcpserver.HTTPHandlerConfig) http.Handler {
		return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initLoggerFunc = origInitLogger
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newMCPServerFunc = origNewMCPServer
		newMCPHandlerFunc = origNewMCPHandler
	}
}
