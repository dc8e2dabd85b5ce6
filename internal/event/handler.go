package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxIngestBytes = 1 << 20
	maxBeaconBytes = 64 << 10
	maxBatchSize   = 500
)

// eventRequest is the client-facing shape of an event. id and created_at
// belong to the store and are not accepted.
type eventRequest struct {
	UserID    *uuid.UUID `json:"user_id"`
	SessionID uuid.UUID  `json:"session_id"`
	EventType string     `json:"event_type"`
	EventData Payload    `json:"event_data"`
	PageURL   string     `json:"page_url"`
}

func (r eventRequest) toEvent() *ActivityEvent {
	return NewEvent(r.EventType, r.SessionID, r.UserID, r.PageURL, r.EventData)
}

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

func (h *Handler) RegisterRoutes(r gin.IRouter, beaconPath string) {
	r.GET("/health", h.Health)
	r.POST(beaconPath, h.Beacon)

	api := r.Group("/api/v1")
	api.POST("/events", h.TrackEvents)
	api.GET("/sessions/:id/events", h.SessionEvents)
}

// TrackEvents accepts a single event, an array of events, or {"events": [...]}.
func (h *Handler) TrackEvents(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	requests, single, err := decodeEvents(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(requests) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("batch exceeds %d events", maxBatchSize)})
		return
	}

	ctx := c.Request.Context()

	if single {
		event := requests[0].toEvent()
		if err := h.service.TrackEvent(ctx, event); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":         event.ID,
			"created_at": event.CreatedAt.Time,
		})
		return
	}

	events := make([]*ActivityEvent, len(requests))
	for i, req := range requests {
		events[i] = req.toEvent()
	}

	accepted, err := h.service.TrackEventBatch(ctx, events)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"accepted": accepted,
		"rejected": len(events) - accepted,
	})
}

// Beacon receives the unload signal of a departing page. Nobody reads the
// response, so it always answers 204.
func (h *Handler) Beacon(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBeaconBytes)

	var beacon Beacon
	if err := json.NewDecoder(c.Request.Body).Decode(&beacon); err != nil {
		h.logger.Debug("Dropping unreadable beacon", zap.Error(err))
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.service.TrackBeacon(c.Request.Context(), beacon); err != nil {
		h.logger.Debug("Dropping beacon",
			zap.Error(err),
			zap.String("session_id", beacon.SessionID),
		)
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SessionEvents(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidSessionID.Error()})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	events, err := h.service.SessionEvents(c.Request.Context(), sessionID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if events == nil {
		events = []*ActivityEvent{}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"events":     events,
	})
}

func (h *Handler) Health(c *gin.Context) {
	healthy, deps := h.service.HealthCheck(c.Request.Context())
	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if IsClientError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func decodeEvents(body []byte) ([]eventRequest, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, ErrEmptyBatch
	}

	switch trimmed[0] {
	case '[':
		var requests []eventRequest
		if err := json.Unmarshal(trimmed, &requests); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if len(requests) == 0 {
			return nil, false, ErrEmptyBatch
		}
		return requests, false, nil
	case '{':
		var envelope struct {
			Events json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if envelope.Events != nil {
			requests, _, err := decodeEvents(envelope.Events)
			return requests, false, err
		}
		var req eventRequest
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return []eventRequest{req}, true, nil
	default:
		return nil, false, errors.New("expected a JSON object or array")
	}
}
