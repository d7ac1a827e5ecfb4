package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"macmarket/internal/domain"
	"macmarket/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, signals SignalReader, backtests BacktestRunner) {
	server.AddResource(&mcp.Resource{
		URI:         "macmarket://timeframes",
		Name:        "timeframes",
		Description: "Bar timeframes supported by the service",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResource(req.Params.URI, domain.SupportedTimeframes)
	})

	server.AddResource(&mcp.Resource{
		URI:         "macmarket://modes",
		Name:        "modes",
		Description: "Dashboard mode profiles with timeframe, playbook and watchlist",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if signals == nil {
			return nil, fmt.Errorf("signal service unavailable")
		}
		keys := signals.Modes()
		modes := make([]domain.ModeProfile, 0, len(keys))
		for _, k := range keys {
			p, err := signals.Mode(k)
			if err != nil {
				return nil, err
			}
			modes = append(modes, p)
		}
		return jsonResource(req.Params.URI, modes)
	})

	server.AddResource(&mcp.Resource{
		URI:         "macmarket://strategies",
		Name:        "strategies",
		Description: "Backtest strategies accepted by backtest_run",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if backtests == nil {
			return nil, fmt.Errorf("backtest service unavailable")
		}
		return jsonResource(req.Params.URI, backtests.Strategies())
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "haco://{symbol}/{timeframe}",
		Name:        "haco-latest",
		Description: "Latest HACO state for a symbol and timeframe",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if signals == nil {
			return nil, fmt.Errorf("signal service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil || parsed.Scheme != "haco" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		symbol, err := normalizeSymbol(parsed.Host)
		if err != nil {
			return nil, err
		}
		timeframe, err := normalizeTimeframe(strings.Trim(strings.TrimSpace(parsed.Path), "/"))
		if err != nil {
			return nil, err
		}

		series, err := signals.HACO(ctx, service.HACORequest{
			Symbol:    symbol,
			Timeframe: timeframe,
			Params:    signals.DefaultParams(),
		})
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, toHACOOutput(series, 1))
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
