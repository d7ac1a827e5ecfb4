package handler

import (
	"net/http"
	"strings"

	"macmarket/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetCandles godoc
// @Summary      Get stored bars
// @Description  Returns the most recent OHLCV bars for a symbol, oldest first
// @Tags         candles
// @Produce      json
// @Param        symbol     path   string  true   "Ticker symbol"
// @Param        timeframe  query  string  false  "Bar timeframe"  default(1d)
// @Param        limit      query  int     false  "Number of bars (max 5000)"  default(500)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/candles/{symbol} [get]
func (h *Handler) GetCandles(c *gin.Context) {
	if h.barService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bar service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-candles")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	timeframe := c.DefaultQuery("timeframe", "1d")
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("timeframe", timeframe))

	if !domain.IsSupportedTimeframe(timeframe) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":                "unsupported timeframe: " + timeframe,
			"supported_timeframes": domain.SupportedTimeframes,
		})
		return
	}
	limit, err := queryInt(c, "limit", 500)
	if err != nil || limit <= 0 || limit > 5000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 5000"})
		return
	}

	series, err := h.barService.GetBars(ctx, symbol, timeframe, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    series.Symbol,
		"timeframe": series.Timeframe,
		"candles":   series.Bars,
	})
}
