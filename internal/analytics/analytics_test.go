package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/Wuchinator/storefront-activity/pkg/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var morning = time.Date(2026, 5, 1, 10, 15, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, Repository) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zap.NewNop())
	svc := NewService(repo, zap.NewNop())
	svc.now = func() time.Time { return morning.Add(time.Hour) }
	return svc, repo
}

func activity(eventType string, session uuid.UUID, user *uuid.UUID, at time.Time, data event.Payload) *event.ActivityEvent {
	ev := event.NewEvent(eventType, session, user, "/products", data)
	ev.CreatedAt = event.Timestamp{Time: at}
	return ev
}

func TestProcessEventAggregatesHourlyBuckets(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sessionA, sessionB := uuid.New(), uuid.New()
	user := uuid.New()

	events := []*event.ActivityEvent{
		activity(event.EventTypePageView, sessionA, nil, morning, nil),
		activity(event.EventTypePageView, sessionA, &user, morning.Add(5*time.Minute), nil),
		activity(event.EventTypePageView, sessionB, nil, morning.Add(10*time.Minute), nil),
		activity(event.EventTypeTimeOnPage, sessionA, nil, morning, event.Payload{"ms": float64(1500)}),
		activity(event.EventTypeTimeOnPage, sessionB, nil, morning, event.Payload{"ms": int64(500)}),
		activity(event.EventTypePageView, sessionB, nil, morning.Add(time.Hour), nil),
	}
	for _, ev := range events {
		if err := svc.ProcessEvent(ctx, ev); err != nil {
			t.Fatalf("ProcessEvent: %v", err)
		}
	}

	views, err := repo.GetSummary(ctx, morning, 10, event.EventTypePageView)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if views.TotalEvents != 3 || views.UniqueSessions != 2 || views.UniqueUsers != 1 {
		t.Fatalf("page_view bucket = %+v", views)
	}

	timing, err := repo.GetSummary(ctx, morning, 10, event.EventTypeTimeOnPage)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if timing.TotalEvents != 2 || timing.TotalTimeMS != 2000 || AverageMS(timing.TotalTimeMS, timing.TotalEvents) != 1000 {
		t.Fatalf("time_on_page bucket = %+v", timing)
	}

	if _, err := repo.GetSummary(ctx, morning, 9, event.EventTypePageView); !errors.Is(err, ErrSummaryNotFound) {
		t.Fatalf("missing bucket err = %v", err)
	}

	summaries, err := repo.GetSummariesByDateRange(ctx, morning, morning, "")
	if err != nil {
		t.Fatalf("GetSummariesByDateRange: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(summaries))
	}
	if summaries[2].Hour != 11 || summaries[2].EventType != event.EventTypePageView {
		t.Fatalf("last summary = %+v", summaries[2])
	}
	if !summaries[0].Date.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", summaries[0].Date)
	}

	filtered, err := repo.GetSummariesByDateRange(ctx, morning, morning, event.EventTypeTimeOnPage)
	if err != nil || len(filtered) != 1 {
		t.Fatalf("filtered summaries = %v, %v", filtered, err)
	}

	totals, err := repo.GetEventTotals(ctx, morning, morning, 10)
	if err != nil {
		t.Fatalf("GetEventTotals: %v", err)
	}
	if len(totals) != 2 || totals[0].EventType != event.EventTypePageView || totals[0].TotalEvents != 4 {
		t.Fatalf("totals = %+v", totals)
	}
	if totals[1].AvgTimeMS != 1000 || totals[0].AvgTimeMS != 0 {
		t.Fatalf("averages = %v, %v", totals[0].AvgTimeMS, totals[1].AvgTimeMS)
	}
}

func TestMessageHandler(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	handle := svc.CreateMessageHandler()

	session := uuid.New()
	msg := `{"id":7,"user_id":null,"session_id":"` + session.String() + `","event_type":"time_on_page",` +
		`"event_data":{"ms":1500.6},"page_url":"/cart","created_at":"2026-05-01T10:40:00Z"}`
	if err := handle(ctx, []byte(session.String()), []byte(msg)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, err := repo.GetSummary(ctx, morning, 10, event.EventTypeTimeOnPage)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got.TotalTimeMS != 1501 || got.UniqueUsers != 0 {
		t.Fatalf("summary = %+v", got)
	}

	if err := handle(ctx, nil, []byte("{broken")); err == nil {
		t.Fatal("malformed message accepted")
	}
}

func TestCleanupOldCache(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user := uuid.New()

	old := morning.Add(-72 * time.Hour)
	if err := svc.ProcessEvent(ctx, activity(event.EventTypeClick, uuid.New(), &user, old, nil)); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if err := svc.ProcessEvent(ctx, activity(event.EventTypeClick, uuid.New(), nil, morning, nil)); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if removed := svc.CleanupOldCache(); removed != 2 {
		t.Fatalf("removed %d sets, want 2", removed)
	}
	if len(svc.sessions) != 1 || len(svc.users) != 0 {
		t.Fatalf("sessions=%d users=%d", len(svc.sessions), len(svc.users))
	}
}

func TestDurationMS(t *testing.T) {
	tests := []struct {
		data event.Payload
		want int64
	}{
		{event.Payload{"ms": float64(1500.7)}, 1501},
		{event.Payload{"ms": int64(42)}, 42},
		{event.Payload{"ms": -5.0}, 0},
		{event.Payload{"ms": "12"}, 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := durationMS(tt.data); got != tt.want {
			t.Errorf("durationMS(%v) = %d, want %d", tt.data, got, tt.want)
		}
	}
}
