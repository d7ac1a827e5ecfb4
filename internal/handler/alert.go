package handler

import (
	"net/http"
	"strconv"
	"strings"

	"macmarket/internal/domain"
	"macmarket/internal/repository"
	"macmarket/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TestAlert godoc
// @Summary      Test alert rules
// @Description  Evaluates rules against the latest bar without recording anything
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        request  body  service.AlertTestRequest  true  "Alert test request"
// @Success      200  {object}  alert.Result
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/alerts/test [post]
func (h *Handler) TestAlert(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.test-alert")
	defer span.End()

	var req service.AlertTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", req.Symbol))

	res, err := h.alertService.Test(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListAlerts godoc
// @Summary      List alert rules
// @Tags         alerts
// @Produce      json
// @Param        symbol   query  string  false  "Filter by symbol"
// @Param        chat_id  query  int     false  "Filter by Telegram chat"
// @Param        limit    query  int     false  "Number of rules (max 500)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/alerts [get]
func (h *Handler) ListAlerts(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-alerts")
	defer span.End()

	filter := repository.AlertFilter{Symbol: c.Query("symbol")}
	if raw := strings.TrimSpace(c.Query("chat_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id must be an integer"})
			return
		}
		filter.ChatID = id
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	filter.Limit = limit

	rules, err := h.alertService.ListRules(ctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": rules})
}

// CreateAlert godoc
// @Summary      Create an alert rule
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        rule  body  domain.AlertRule  true  "Alert rule"
// @Success      201  {object}  domain.AlertRule
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/alerts [post]
func (h *Handler) CreateAlert(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-alert")
	defer span.End()

	var rule domain.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	created, err := h.alertService.CreateRule(ctx, rule)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// DeleteAlert godoc
// @Summary      Delete an alert rule
// @Tags         alerts
// @Produce      json
// @Param        id  path  int  true  "Alert rule ID"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/alerts/{id} [delete]
func (h *Handler) DeleteAlert(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-alert")
	defer span.End()

	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}
	ok, err := h.alertService.DeleteRule(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert rule not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
