package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type KafkaProducer interface {
	SendMessage(ctx context.Context, key string, value any) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Service struct {
	repo     Repository
	producer KafkaProducer
	db       Pinger
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService wires the store and the optional fan-out producer. producer and
// db may be nil.
func NewService(repo Repository, producer KafkaProducer, db Pinger, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		producer: producer,
		db:       db,
		logger:   logger,
		tracer:   otel.Tracer("storefront-activity/event"),
	}
}

func (s *Service) TrackEvent(ctx context.Context, event *ActivityEvent) error {
	ctx, span := s.tracer.Start(ctx, "event.TrackEvent", trace.WithAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("event.session_id", event.SessionID.String()),
	))
	defer span.End()

	if err := event.Validate(); err != nil {
		s.logger.Warn("failed to validate event",
			zap.Error(err),
			zap.String("session_id", event.SessionID.String()))
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("invalid event: %w", err)
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("failed to create event",
			zap.Error(err),
			zap.String("session_id", event.SessionID.String()),
			zap.String("event_type", event.EventType))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store insert failed")
		return fmt.Errorf("failed to create event: %w", err)
	}

	s.publish(ctx, event)

	s.logger.Debug("Event tracked",
		zap.Int64("id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("session_id", event.SessionID.String()),
		zap.Bool("anonymous", event.IsAnonymous()),
	)
	return nil
}

func (s *Service) TrackEventBatch(ctx context.Context, events []*ActivityEvent) (int, error) {
	if len(events) == 0 {
		return 0, ErrEmptyBatch
	}

	s.logger.Info("Tracking events", zap.Int("events", len(events)))

	successCount, err := s.repo.CreateBatch(ctx, events)
	if err != nil {
		s.logger.Error("failed to create event batch", zap.Error(err))
		return 0, fmt.Errorf("failed to save batch: %w", err)
	}

	for _, event := range events {
		if event.Validate() != nil {
			continue
		}
		s.publish(ctx, event)
	}

	return successCount, nil
}

// TrackBeacon stores the final time-on-page signal of a departing client.
func (s *Service) TrackBeacon(ctx context.Context, beacon Beacon) error {
	event, err := beacon.ToEvent()
	if err != nil {
		return err
	}
	return s.TrackEvent(ctx, event)
}

func (s *Service) SessionEvents(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ActivityEvent, error) {
	if sessionID == uuid.Nil {
		return nil, ErrInvalidSessionID
	}
	events, err := s.repo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		s.logger.Error("failed to get session events", zap.Error(err), zap.String("session_id", sessionID.String()))
		return nil, fmt.Errorf("failed to get session events: %w", err)
	}
	return events, nil
}

func (s *Service) HealthCheck(ctx context.Context) (bool, map[string]string) {
	status := make(map[string]string)
	healthy := true

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			status["database"] = "error: " + err.Error()
			healthy = false
		} else {
			status["database"] = "ok"
		}
	}

	if s.producer != nil {
		status["kafka"] = "ok"
	} else {
		status["kafka"] = "disabled"
	}

	return healthy, status
}

// publish fans the stored event out to Kafka. A failed publish never fails
// the insert.
func (s *Service) publish(ctx context.Context, event *ActivityEvent) {
	if s.producer == nil {
		return
	}

	// События одной сессии идут в одну партицию
	key := event.SessionID.String()

	if err := s.producer.SendMessage(ctx, key, event); err != nil {
		s.logger.Error("failed to send message",
			zap.String("session_id", key),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

// IsClientError reports whether err was caused by the submitted event rather
// than by the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEventType) ||
		errors.Is(err, ErrInvalidSessionID) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidPageURL) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidBeacon) ||
		errors.Is(err, ErrEventRejected) ||
		errors.Is(err, ErrEmptyBatch)
}
