package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePageView   = "page_view"
	EventTypeTimeOnPage = "time_on_page"
	EventTypeClick      = "click"
)

// ActivityEvent is one row of user_activity. ID and CreatedAt are assigned
// by the store; a client never sets them.
type ActivityEvent struct {
	ID        int64      `db:"id" json:"id,omitempty"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id"`
	SessionID uuid.UUID  `db:"session_id" json:"session_id"`
	EventType string     `db:"event_type" json:"event_type"`
	EventData Payload    `db:"event_data" json:"event_data,omitempty"`
	PageURL   string     `db:"page_url" json:"page_url"`
	CreatedAt Timestamp  `db:"created_at" json:"created_at"`
}

func NewEvent(eventType string, sessionID uuid.UUID, userID *uuid.UUID, pageURL string, data Payload) *ActivityEvent {
	return &ActivityEvent{
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		EventData: data,
		PageURL:   pageURL,
	}
}

func (e *ActivityEvent) Validate() error {
	if strings.TrimSpace(e.EventType) == "" {
		return ErrInvalidEventType
	}
	if e.SessionID == uuid.Nil {
		return ErrInvalidSessionID
	}
	if e.UserID != nil && *e.UserID == uuid.Nil {
		return ErrInvalidUserID
	}
	if !strings.HasPrefix(e.PageURL, "/") {
		return ErrInvalidPageURL
	}
	return nil
}

func (e *ActivityEvent) IsAnonymous() bool {
	return e.UserID == nil
}

// Payload is the free-form event_data object. A nil Payload is stored as NULL.
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return string(b), nil
}

func (p *Payload) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Payload", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*p = nil
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	*p = m
	return nil
}

// Timestamp scans store-assigned times from postgres (time.Time) as well as
// sqlite, which may hand back text.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// Beacon is the body a departing client posts to the beacon endpoint.
type Beacon struct {
	Event     string `json:"event"`
	MS        int64  `json:"ms"`
	SessionID string `json:"session_id,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
}

func (b Beacon) ToEvent() (*ActivityEvent, error) {
	if b.Event != EventTypeTimeOnPage || b.MS < 0 {
		return nil, ErrInvalidBeacon
	}
	sessionID, err := uuid.Parse(b.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionID, err)
	}
	pageURL := b.PageURL
	if pageURL == "" {
		pageURL = "/"
	}
	ev := NewEvent(EventTypeTimeOnPage, sessionID, nil, pageURL, Payload{"ms": b.MS, "transport": "beacon"})
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
