package mcp

import (
	"context"
	"fmt"

	"macmarket/internal/domain"
	"macmarket/internal/scan"
	"macmarket/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, signals SignalReader, backtests BacktestRunner, alerts AlertTester) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "haco_get",
		Description: "Get the HACO trend state, triggers and trailing per-bar series for one symbol",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in hacoGetInput) (*mcp.CallToolResult, hacoGetOutput, error) {
		if signals == nil {
			return nil, hacoGetOutput{}, fmt.Errorf("signal service unavailable")
		}
		symbol, err := normalizeSymbol(in.Symbol)
		if err != nil {
			return nil, hacoGetOutput{}, err
		}
		timeframe, err := normalizeTimeframe(in.Timeframe)
		if err != nil {
			return nil, hacoGetOutput{}, err
		}

		series, err := signals.HACO(ctx, service.HACORequest{
			Symbol:    symbol,
			Timeframe: timeframe,
			Params:    mergeParams(signals.DefaultParams(), in.LengthUp, in.LengthDown, in.AlertLookback),
			Lookback:  in.Lookback,
		})
		if err != nil {
			return nil, hacoGetOutput{}, err
		}
		return nil, toHACOOutput(series, normalizePointLimit(in.Points)), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "haco_scan",
		Description: "Scan symbols with HACO; failed symbols report an error instead of a state",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in hacoScanInput) (*mcp.CallToolResult, hacoScanOutput, error) {
		if signals == nil {
			return nil, hacoScanOutput{}, fmt.Errorf("signal service unavailable")
		}
		symbols, err := normalizeScanSymbols(in.Symbols)
		if err != nil {
			return nil, hacoScanOutput{}, err
		}
		timeframe, err := normalizeTimeframe(in.Timeframe)
		if err != nil {
			return nil, hacoScanOutput{}, err
		}

		rows, err := signals.Scan(ctx, scan.Request{
			Symbols:   symbols,
			Timeframe: timeframe,
			Params:    mergeParams(signals.DefaultParams(), in.LengthUp, in.LengthDown, in.AlertLookback),
			Lookback:  signals.DefaultLookback(),
		})
		if err != nil {
			return nil, hacoScanOutput{}, err
		}
		return nil, hacoScanOutput{Rows: toScanRows(rows)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "backtest_run",
		Description: "Replay a named strategy bar by bar over stored bars and report trades and stats",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in backtestRunInput) (*mcp.CallToolResult, backtestRunOutput, error) {
		if backtests == nil {
			return nil, backtestRunOutput{}, fmt.Errorf("backtest service unavailable")
		}
		symbol, err := normalizeSymbol(in.Symbol)
		if err != nil {
			return nil, backtestRunOutput{}, err
		}
		timeframe, err := normalizeTimeframe(in.Timeframe)
		if err != nil {
			return nil, backtestRunOutput{}, err
		}

		resp, err := backtests.Run(ctx, service.BacktestRequest{
			Symbol:    symbol,
			Timeframe: timeframe,
			Lookback:  in.Lookback,
			Params: service.BacktestParams{
				Strategy:      in.Strategy,
				InitialCash:   in.InitialCash,
				Quantity:      in.Quantity,
				MinReadiness:  in.MinReadiness,
				StopLossPct:   in.StopLossPct,
				TakeProfitPct: in.TakeProfitPct,
				MaxHoldBars:   in.MaxHoldBars,
			},
		})
		if err != nil {
			return nil, backtestRunOutput{}, err
		}
		return nil, toBacktestOutput(resp), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "alert_test",
		Description: "Evaluate alert rules against the latest bar without sending anything",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in alertTestInput) (*mcp.CallToolResult, alertTestOutput, error) {
		if alerts == nil {
			return nil, alertTestOutput{}, fmt.Errorf("alert service unavailable")
		}
		symbol, err := normalizeSymbol(in.Symbol)
		if err != nil {
			return nil, alertTestOutput{}, err
		}

		res, err := alerts.Test(ctx, service.AlertTestRequest{
			Symbol:    symbol,
			Mode:      in.Mode,
			Timeframe: in.Timeframe,
			Rules: domain.AlertRules{
				RequireTrendPass:    in.RequireTrendPass,
				RequireMomentumPass: in.RequireMomentumPass,
				MinTotalScore:       in.MinTotalScore,
			},
		})
		if err != nil {
			return nil, alertTestOutput{}, err
		}
		return nil, alertTestOutput{
			Symbol:    res.Symbol,
			Triggered: res.Triggered,
			Message:   res.Message,
			State:     res.State.String(),
			Changed:   res.Changed,
			Readiness: res.Readiness.Score,
			Ready:     res.Readiness.Ready,
		}, nil
	})
}
