package handler

import (
	"net/http"
	"strings"

	"macmarket/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RunBacktest godoc
// @Summary      Run a backtest
// @Description  Replays a strategy bar by bar over stored or inline bars
// @Tags         backtest
// @Accept       json
// @Produce      json
// @Param        request  body  service.BacktestRequest  true  "Backtest request"
// @Success      200  {object}  service.BacktestResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/backtest [post]
func (h *Handler) RunBacktest(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-backtest")
	defer span.End()

	var req service.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	span.SetAttributes(attribute.String("symbol", req.Symbol), attribute.String("strategy", req.Params.Strategy))

	resp, err := h.backtestService.Run(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListBacktests godoc
// @Summary      List backtest runs
// @Tags         backtest
// @Produce      json
// @Param        symbol  query  string  false  "Filter by symbol"
// @Param        limit   query  int     false  "Number of runs (max 200)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/backtests [get]
func (h *Handler) ListBacktests(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-backtests")
	defer span.End()

	limit, err := queryInt(c, "limit", 20)
	if err != nil || limit <= 0 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
		return
	}
	runs, err := h.backtestService.List(ctx, strings.TrimSpace(c.Query("symbol")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ListStrategies godoc
// @Summary      List backtest strategies
// @Tags         backtest
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/strategies [get]
func (h *Handler) ListStrategies(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": h.backtestService.Strategies()})
}
