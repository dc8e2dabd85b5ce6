package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
	"go.uber.org/zap"
)

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time

	// In-memory кеш уникальных сессий и пользователей по бакетам
	mu       sync.Mutex
	sessions map[string]map[string]struct{}
	users    map[string]map[string]struct{}
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]map[string]struct{}),
		users:    make(map[string]map[string]struct{}),
	}
}

func bucketKey(s *Summary) string {
	return fmt.Sprintf("%s-%02d-%s", s.Date.Format("2006-01-02"), s.Hour, s.EventType)
}

func (s *Service) ProcessEvent(ctx context.Context, ev *event.ActivityEvent) error {
	at := ev.CreatedAt.Time
	if at.IsZero() {
		at = s.now()
	}

	summary := NewSummary(at, ev.EventType, s.now())
	summary.IncrementEvents(1)
	if ev.EventType == event.EventTypeTimeOnPage {
		summary.AddTime(durationMS(ev.EventData))
	}

	key := bucketKey(summary)

	s.mu.Lock()
	sessions := addTo(s.sessions, key, ev.SessionID.String())
	users := int64(len(s.users[key]))
	if ev.UserID != nil {
		users = addTo(s.users, key, ev.UserID.String())
	}
	s.mu.Unlock()

	summary.SetUnique(sessions, users)

	if err := s.repo.UpsertSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	s.logger.Debug("Event processed",
		zap.Int64("event_id", ev.ID),
		zap.String("event_type", ev.EventType),
		zap.String("date", summary.Date.Format("2006-01-02")),
		zap.Int("hour", summary.Hour),
	)

	return nil
}

func addTo(sets map[string]map[string]struct{}, key, member string) int64 {
	set, ok := sets[key]
	if !ok {
		set = make(map[string]struct{})
		sets[key] = set
	}
	set[member] = struct{}{}
	return int64(len(set))
}

// durationMS reads the ms field of a time_on_page payload. JSON numbers
// arrive as float64 after a Kafka round trip.
func durationMS(data event.Payload) int64 {
	switch v := data["ms"].(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return int64(math.Round(v))
	case int64:
		return max(v, 0)
	case int:
		return int64(max(v, 0))
	case json.Number:
		n, err := v.Float64()
		if err != nil || n < 0 {
			return 0
		}
		return int64(math.Round(n))
	}
	return 0
}

// CreateMessageHandler создаёт handler для Kafka consumer
func (s *Service) CreateMessageHandler() func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var ev event.ActivityEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			s.logger.Error("Failed to unmarshal event",
				zap.Error(err),
				zap.ByteString("key", key),
			)
			return err
		}

		return s.ProcessEvent(ctx, &ev)
	}
}

// CleanupOldCache drops unique sets of buckets older than a day.
func (s *Service) CleanupOldCache() int {
	cutoff := s.now().UTC().Add(-24 * time.Hour).Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, sets := range []map[string]map[string]struct{}{s.sessions, s.users} {
		for key := range sets {
			if key < cutoff {
				delete(sets, key)
				removed++
			}
		}
	}

	s.logger.Debug("Cache cleanup completed", zap.Int("removed", removed))
	return removed
}

// RunCleanup calls CleanupOldCache every interval until ctx is done.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupOldCache()
		}
	}
}
