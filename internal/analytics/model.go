package analytics

import (
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
)

// Summary is one hourly bucket of activity_summary.
type Summary struct {
	ID             int64           `db:"id" json:"id"`
	Date           event.Timestamp `db:"date" json:"date"`
	Hour           int             `db:"hour" json:"hour"`
	EventType      string          `db:"event_type" json:"event_type"`
	TotalEvents    int64           `db:"total_events" json:"total_events"`
	UniqueSessions int64           `db:"unique_sessions" json:"unique_sessions"`
	UniqueUsers    int64           `db:"unique_users" json:"unique_users"`
	TotalTimeMS    int64           `db:"total_time_ms" json:"total_time_ms"`
	UpdatedAt      event.Timestamp `db:"updated_at" json:"updated_at"`
}

func NewSummary(at time.Time, eventType string, now time.Time) *Summary {
	at = at.UTC()
	return &Summary{
		Date:      event.Timestamp{Time: time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)},
		Hour:      at.Hour(),
		EventType: eventType,
		UpdatedAt: event.Timestamp{Time: now.UTC()},
	}
}

func (s *Summary) IncrementEvents(count int64) {
	s.TotalEvents += count
}

func (s *Summary) AddTime(ms int64) {
	s.TotalTimeMS += ms
}

func (s *Summary) SetUnique(sessions, users int64) {
	s.UniqueSessions = sessions
	s.UniqueUsers = users
}

// AverageMS is the mean time on page over events, 0 when there are none.
func AverageMS(totalMS, events int64) float64 {
	if events == 0 {
		return 0
	}
	return float64(totalMS) / float64(events)
}

// EventTotal aggregates summaries of one event type over a range.
type EventTotal struct {
	EventType   string  `db:"event_type" json:"event_type"`
	TotalEvents int64   `db:"total_events" json:"total_events"`
	TotalTimeMS int64   `db:"total_time_ms" json:"total_time_ms"`
	AvgTimeMS   float64 `db:"-" json:"avg_time_ms"`
}
