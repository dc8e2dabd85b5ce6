package query

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts the admin API behind guards.
func (h *Handler) RegisterRoutes(r gin.IRouter, guards ...gin.HandlerFunc) {
	r.GET("/health", h.Health)

	admin := r.Group("/admin", guards...)
	admin.GET("/activity", h.Activity)
	admin.GET("/activity/summary", h.ActivitySummary)
	admin.GET("/orders/summary", h.OrdersSummary)
	admin.GET("/stats", h.EventStats)
	admin.GET("/stats/totals", h.EventTotals)
	admin.GET("/dashboard", h.Dashboard)
}

func (h *Handler) Activity(c *gin.Context) {
	limit := h.service.FeedLimit()
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.service.RecentActivity(c.Request.Context(), c.Query("event_type"), limit)
	if err != nil {
		h.internalError(c, "Failed to get activity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": nonNil(entries)})
}

func (h *Handler) ActivitySummary(c *gin.Context) {
	summary, err := h.service.ActivitySummary(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to summarize activity", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) OrdersSummary(c *gin.Context) {
	summary, err := h.service.OrdersSummary(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to summarize orders", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// EventStats serves hourly or daily buckets, the last 24 hours by default.
func (h *Handler) EventStats(c *gin.Context) {
	granularity, err := ParseGranularity(c.Query("granularity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if from, to, err = parseRange(c.Query("from"), c.Query("to"), from, to); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.service.GetEventStats(c.Request.Context(), from, to, c.Query("event_type"), granularity)
	if err != nil {
		h.internalError(c, "Failed to get stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":        from,
		"to":          to,
		"granularity": granularity,
		"stats":       nonNil(stats),
	})
}

// EventTotals ranks event types over the last 7 days by default.
func (h *Handler) EventTotals(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	from, to, err := parseRange(c.Query("from"), c.Query("to"), from, to)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	totals, err := h.service.EventTotals(c.Request.Context(), from, to, limit)
	if err != nil {
		h.internalError(c, "Failed to get event totals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "totals": nonNil(totals)})
}

func (h *Handler) Dashboard(c *gin.Context) {
	dashboard, err := h.service.Dashboard(c.Request.Context(), c.Query("event_type"))
	if err != nil {
		h.internalError(c, "Failed to load dashboard", err)
		return
	}
	dashboard.Activity = nonNil(dashboard.Activity)
	dashboard.Stats = nonNil(dashboard.Stats)
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) Health(c *gin.Context) {
	healthy, status := h.service.HealthCheck(c.Request.Context())
	code := http.StatusOK
	state := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(code, gin.H{"status": state, "components": status})
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseRange(rawFrom, rawTo string, from, to time.Time) (time.Time, time.Time, error) {
	var err error
	if rawFrom != "" {
		if from, err = parseTime(rawFrom); err != nil {
			return from, to, err
		}
	}
	if rawTo != "" {
		if to, err = parseTime(rawTo); err != nil {
			return from, to, err
		}
	}
	if to.Before(from) {
		return from, to, ErrInvalidRange
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: expected RFC3339 or YYYY-MM-DD, got %q", ErrInvalidRange, s)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
