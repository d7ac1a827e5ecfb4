// Package mcp exposes HACO trend states, watchlist scans, strategy
// backtests and alert dry-runs to MCP clients over stdio or streamable
// HTTP.
package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	serverName    = "macmarket-mcp"
	serverVersion = "1.0.0"

	defaultRequestTimeout = 5 * time.Second

	instructions = "Read HACO trend states with haco_get, rank a watchlist with haco_scan, " +
		"replay a strategy with backtest_run and dry-run an alert rule with alert_test. " +
		"Resources list the mode profiles, backtest strategies and supported timeframes."
)

// ServerConfig bounds every request the server handles.
type ServerConfig struct {
	RequestTimeout time.Duration
}

// NewServer registers the trend, scan, backtest and alert tools plus the
// catalog resources. A nil dependency leaves its tools listed; calling
// them reports the service as unavailable.
func NewServer(tracer trace.Tracer, signals SignalReader, backtests BacktestRunner, alerts AlertTester, cfg ServerConfig) *sdkmcp.Server {
	budget := cfg.RequestTimeout
	if budget <= 0 {
		budget = defaultRequestTimeout
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &sdkmcp.ServerOptions{
		Instructions: instructions,
		Logger:       slog.Default(),
	})

	srv.AddReceivingMiddleware(withRequestBudget(budget))
	if tracer != nil {
		srv.AddReceivingMiddleware(withSpans(tracer))
	}

	registerTools(srv, signals, backtests, alerts)
	registerResources(srv, signals, backtests)
	return srv
}

// NewHTTPTransportHandler serves one shared server over streamable HTTP,
// behind the bearer token, rate limit and body cap of cfg.
func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	streamable := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(streamable, cfg)
}

func withRequestBudget(budget time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if budget <= 0 {
				return next(ctx, method, req)
			}
			ctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

// withSpans opens one span per request, named after the tool or resource
// it touches.
func withSpans(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, span := tracer.Start(ctx, spanName(method, req))
			defer span.End()
			span.SetAttributes(attribute.String("mcp.method", method))

			switch r := req.(type) {
			case *sdkmcp.CallToolRequest:
				span.SetAttributes(attribute.String("macmarket.tool", strings.TrimSpace(r.Params.Name)))
			case *sdkmcp.ReadResourceRequest:
				span.SetAttributes(attribute.String("macmarket.resource", strings.TrimSpace(r.Params.URI)))
			}

			result, err := next(ctx, method, req)
			if err != nil {
				span.RecordError(err)
			}
			return result, err
		}
	}
}

// spanName maps tools/call haco_get to mcp.tool.haco_get and
// resources/read to mcp.resource.read; other methods keep their path.
func spanName(method string, req sdkmcp.Request) string {
	if method == "resources/read" {
		return "mcp.resource.read"
	}
	if method != "tools/call" {
		return "mcp." + strings.ReplaceAll(method, "/", ".")
	}
	if r, ok := req.(*sdkmcp.CallToolRequest); ok {
		if tool := strings.TrimSpace(r.Params.Name); tool != "" {
			return "mcp.tool." + tool
		}
	}
	return "mcp.tool.call"
}
