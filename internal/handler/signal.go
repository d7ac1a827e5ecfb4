package handler

import (
	"net/http"
	"strconv"
	"strings"

	"macmarket/internal/domain"
	"macmarket/internal/scan"
	"macmarket/internal/service"
	"macmarket/internal/signal"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ParameterError{Name: key, Value: raw, Reason: "must be an integer"}
	}
	return n, nil
}

// hacoQuery reads the shared HACO query parameters over the service defaults.
func (h *Handler) hacoQuery(c *gin.Context) (signal.Params, string, int, error) {
	params := h.signalService.DefaultParams()
	var err error
	if params.LengthUp, err = queryInt(c, "lengthUp", params.LengthUp); err != nil {
		return params, "", 0, err
	}
	if params.LengthDown, err = queryInt(c, "lengthDown", params.LengthDown); err != nil {
		return params, "", 0, err
	}
	if params.AlertLookback, err = queryInt(c, "alertLookback", params.AlertLookback); err != nil {
		return params, "", 0, err
	}
	lookback, err := queryInt(c, "lookback", h.signalService.DefaultLookback())
	if err != nil {
		return params, "", 0, err
	}
	if lookback <= 0 {
		return params, "", 0, &domain.ParameterError{Name: "lookback", Value: lookback, Reason: "must be positive"}
	}
	return params, c.DefaultQuery("timeframe", "1d"), lookback, nil
}

// GetHACO godoc
// @Summary      Get the HACO series
// @Description  Returns per-bar Heikin-Ashi composite, zero-lag bands, triggers and trend state for one symbol
// @Tags         signals
// @Produce      json
// @Param        symbol         query  string  true   "Ticker symbol (e.g., AAPL)"
// @Param        timeframe      query  string  false  "Bar timeframe (15m, 1h, 4h, 1d, 1w)"  default(1d)
// @Param        lengthUp       query  int     false  "Up-band length"  default(34)
// @Param        lengthDown     query  int     false  "Down-band length"  default(34)
// @Param        alertLookback  query  int     false  "Bars counted for the last upw/dnw"  default(1)
// @Param        lookback       query  int     false  "Bars requested"  default(500)
// @Success      200  {object}  service.HACOSeries
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/signals/haco [get]
func (h *Handler) GetHACO(c *gin.Context) {
	if h.signalService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-haco")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	params, timeframe, lookback, err := h.hacoQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	series, err := h.signalService.HACO(ctx, service.HACORequest{
		Symbol:    symbol,
		Timeframe: timeframe,
		Params:    params,
		Lookback:  lookback,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// ScanHACO godoc
// @Summary      Scan symbols with HACO
// @Description  Returns one row per requested symbol; failed symbols carry an error instead of signal fields
// @Tags         signals
// @Produce      json
// @Param        symbols        query  string  true   "Comma-delimited symbols (e.g., AAPL,MSFT)"
// @Param        timeframe      query  string  false  "Bar timeframe"  default(1d)
// @Param        lengthUp       query  int     false  "Up-band length"  default(34)
// @Param        lengthDown     query  int     false  "Down-band length"  default(34)
// @Param        alertLookback  query  int     false  "Bars counted for upw/dnw"  default(1)
// @Param        lookback       query  int     false  "Bars requested per symbol"  default(500)
// @Success      200  {array}   domain.ScanRow
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/signals/haco/scan [get]
func (h *Handler) ScanHACO(c *gin.Context) {
	if h.signalService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.scan-haco")
	defer span.End()

	symbols := scan.ParseSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols is required"})
		return
	}
	params, timeframe, lookback, err := h.hacoQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	rows, err := h.signalService.Scan(ctx, scan.Request{
		Symbols:   symbols,
		Timeframe: timeframe,
		Params:    params,
		Lookback:  lookback,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GetDashboard godoc
// @Summary      Get the symbol dashboard
// @Description  Returns candles, HACO/HACOLT tri-state series, readiness panels and mode guidance
// @Tags         dashboard
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol"
// @Param        mode    query  string  false  "Mode profile (day, swing, position, crypto)"
// @Success      200  {object}  service.Dashboard
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/dashboard/{symbol} [get]
func (h *Handler) GetDashboard(c *gin.Context) {
	if h.signalService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-dashboard")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	span.SetAttributes(attribute.String("symbol", symbol))

	d, err := h.signalService.Dashboard(ctx, symbol, c.Query("mode"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetModes godoc
// @Summary      List mode profiles
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/modes [get]
func (h *Handler) GetModes(c *gin.Context) {
	if h.signalService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal service unavailable"})
		return
	}

	keys := h.signalService.Modes()
	modes := make([]domain.ModeProfile, 0, len(keys))
	for _, k := range keys {
		p, err := h.signalService.Mode(k)
		if err != nil {
			writeError(c, err)
			return
		}
		modes = append(modes, p)
	}
	c.JSON(http.StatusOK, gin.H{"modes": modes})
}
