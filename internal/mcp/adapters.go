package mcp

import (
	"context"

	"macmarket/internal/alert"
	"macmarket/internal/domain"
	"macmarket/internal/scan"
	"macmarket/internal/service"
	"macmarket/internal/signal"
)

// SignalReader exposes HACO analysis and mode profiles.
type SignalReader interface {
	DefaultParams() signal.Params
	DefaultLookback() int
	HACO(ctx context.Context, req service.HACORequest) (*service.HACOSeries, error)
	Scan(ctx context.Context, req scan.Request) ([]domain.ScanRow, error)
	Modes() []string
	Mode(key string) (domain.ModeProfile, error)
}

// BacktestRunner runs strategy replays.
type BacktestRunner interface {
	Run(ctx context.Context, req service.BacktestRequest) (*service.BacktestResponse, error)
	Strategies() []service.StrategyInfo
}

type AlertTester interface {
	Test(ctx context.Context, req service.AlertTestRequest) (alert.Result, error)
}
