package handler

import (
	"macmarket/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer          trace.Tracer
	barService      *service.BarService
	signalService   *service.SignalService
	backtestService *service.BacktestService
	alertService    *service.AlertService
}

func New(
	tracer trace.Tracer,
	barService *service.BarService,
	signalService *service.SignalService,
	backtestService *service.BacktestService,
	alertService *service.AlertService,
) *Handler {
	return &Handler{
		tracer:          tracer,
		barService:      barService,
		signalService:   signalService,
		backtestService: backtestService,
		alertService:    alertService,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/api/candles/:symbol", h.GetCandles)
	r.GET("/api/signals/haco", h.GetHACO)
	r.GET("/api/signals/haco/scan", h.ScanHACO)
	r.GET("/api/dashboard/:symbol", h.GetDashboard)
	r.GET("/api/modes", h.GetModes)
	r.POST("/api/backtest", h.RunBacktest)
	r.GET("/api/backtests", h.ListBacktests)
	r.GET("/api/strategies", h.ListStrategies)
	r.POST("/api/alerts/test", h.TestAlert)
	r.GET("/api/alerts", h.ListAlerts)
	r.POST("/api/alerts", h.CreateAlert)
	r.DELETE("/api/alerts/:id", h.DeleteAlert)
}
