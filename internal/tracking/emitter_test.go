package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newActiveEmitter(t *testing.T, cfg EmitterConfig, sink Sink, identity IdentityProvider, logger *zap.Logger) (*AsyncEmitter, *Session) {
	t.Helper()
	session := NewSession()
	if err := session.activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	e := NewAsyncEmitter(cfg, session, NewLocation(), identity, sink, logger)
	e.Start()
	return e, session
}

func closeEmitter(t *testing.T, e *AsyncEmitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestEmitSwallowsSinkErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{err: errSinkDown}
	e, _ := newActiveEmitter(t, EmitterConfig{}, sink, nil, zap.New(core))

	e.Emit(context.Background(), event.EventTypeClick, event.Payload{"tag": "BUTTON"})
	e.Emit(context.Background(), event.EventTypePageView, nil)
	closeEmitter(t, e)

	failures := logs.FilterMessage("Activity tracking error")
	if failures.Len() != 2 {
		t.Fatalf("logged %d failures, want 2: %v", failures.Len(), logs.All())
	}
	if got := failures.All()[0].ContextMap()["error"]; got != errSinkDown.Error() {
		t.Fatalf("logged error = %v", got)
	}
}

func TestEmitRecoversSinkPanic(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sink := &recordingSink{panic: "nil map write"}
	e, _ := newActiveEmitter(t, EmitterConfig{}, sink, nil, zap.New(core))

	e.Emit(context.Background(), event.EventTypeClick, nil)
	e.Emit(context.Background(), event.EventTypeClick, nil)
	closeEmitter(t, e)

	if logs.FilterMessage("Activity sink panicked").Len() != 2 {
		t.Fatalf("panics not recovered per event: %v", logs.All())
	}
}

func TestEmitDoesNotBlockOnSlowSink(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{block: make(chan struct{})}
	e, _ := newActiveEmitter(t, EmitterConfig{BufferSize: 2, InsertTimeout: time.Minute}, sink, nil, zap.New(core))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			e.Emit(context.Background(), event.EventTypeClick, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a stalled sink")
	}

	if logs.FilterMessage("Activity buffer full, dropping event").Len() == 0 {
		t.Fatal("expected dropped events to be logged")
	}

	close(sink.block)
	closeEmitter(t, e)

	// at most one in flight plus the buffered ones
	if got := len(sink.recorded()); got < 1 || got > 3 {
		t.Fatalf("delivered %d events", got)
	}
}

func TestEmitIgnoresCallerCancellation(t *testing.T) {
	sink := &recordingSink{}
	e, _ := newActiveEmitter(t, EmitterConfig{}, sink, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	e.Emit(ctx, event.EventTypePageView, nil)
	cancel()
	closeEmitter(t, e)

	if len(sink.recorded()) != 1 {
		t.Fatal("event lost after the caller's context was cancelled")
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	sink := &recordingSink{}
	e, _ := newActiveEmitter(t, EmitterConfig{}, sink, nil, zap.NewNop())
	closeEmitter(t, e)

	e.Emit(context.Background(), event.EventTypeClick, nil)
	closeEmitter(t, e)

	if len(sink.recorded()) != 0 {
		t.Fatal("event accepted after close")
	}
}

func TestIdentityFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	identity := &stubIdentity{}
	identity.script(identityAnswer{err: errors.New("token expired")})
	sink := &recordingSink{}
	e, _ := newActiveEmitter(t, EmitterConfig{}, sink, identity, zap.New(core))

	e.Emit(context.Background(), event.EventTypeClick, nil)
	closeEmitter(t, e)

	if logs.FilterMessage("Identity lookup failed, emitting anonymously").Len() != 1 {
		t.Fatalf("identity failure not logged: %v", logs.All())
	}
	events := sink.recorded()
	if len(events) != 1 || !events[0].IsAnonymous() {
		t.Fatalf("events = %+v", events)
	}
}

func TestIdentityResolvedWhenEmitted(t *testing.T) {
	identity := &switchIdentity{}
	sink := &recordingSink{block: make(chan struct{})}
	e, _ := newActiveEmitter(t, EmitterConfig{}, sink, identity, zap.NewNop())

	e.Emit(context.Background(), event.EventTypeClick, nil)

	user := uuid.New()
	identity.set(&user)
	e.Emit(context.Background(), "checkout_started", nil)

	identity.set(nil)
	close(sink.block)
	closeEmitter(t, e)

	events := sink.recorded()
	if len(events) != 2 {
		t.Fatalf("events = %v", sink.types())
	}
	if events[0].UserID != nil {
		t.Errorf("anonymous click stored for user %v", events[0].UserID)
	}
	if events[1].UserID == nil || *events[1].UserID != user {
		t.Errorf("signed-in event user = %v, want %v", events[1].UserID, user)
	}
}

func TestSlowIdentityLookupTimesOut(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{}
	e, _ := newActiveEmitter(t, EmitterConfig{IdentityTimeout: 20 * time.Millisecond}, sink, hangingIdentity{}, zap.New(core))

	start := time.Now()
	e.Emit(context.Background(), event.EventTypeClick, nil)
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("Emit waited %v on the identity provider", waited)
	}
	closeEmitter(t, e)

	events := sink.recorded()
	if len(events) != 1 || !events[0].IsAnonymous() {
		t.Fatalf("events = %+v", events)
	}
	if logs.FilterMessage("Identity lookup failed, emitting anonymously").Len() != 1 {
		t.Fatalf("timeout not logged: %v", logs.All())
	}
}

func TestEmitCopiesPayload(t *testing.T) {
	sink := &encodingSink{}
	e, _ := newActiveEmitter(t, EmitterConfig{BufferSize: 512}, sink, nil, zap.NewNop())

	payload := event.Payload{"step": 0}
	for i := 0; i < 200; i++ {
		payload["step"] = i
		e.Emit(context.Background(), "wizard_step", payload)
	}
	payload["step"] = -1
	closeEmitter(t, e)

	events := sink.recorded()
	if len(events) != 200 {
		t.Fatalf("delivered %d events", len(events))
	}
	for i, ev := range events {
		if ev.EventData["step"] != i {
			t.Fatalf("event %d step = %v", i, ev.EventData["step"])
		}
	}
	if payload["step"] != -1 {
		t.Fatal("emitter wrote to the caller's map")
	}
}

func TestCloseWithoutStart(t *testing.T) {
	session := NewSession()
	e := NewAsyncEmitter(EmitterConfig{}, session, NewLocation(), nil, &recordingSink{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e.Start()
	if err := e.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestContextEmitter(t *testing.T) {
	FromContext(context.Background()).Emit(context.Background(), "ignored", nil)

	sink := &recordingSink{}
	e, _ := newActiveEmitter(t, EmitterConfig{}, sink, nil, zap.NewNop())
	ctx := WithEmitter(context.Background(), e)

	FromContext(ctx).Emit(ctx, "manual_event", event.Payload{"source": "checkout"})
	closeEmitter(t, e)

	events := sink.recorded()
	if len(events) != 1 || events[0].EventType != "manual_event" {
		t.Fatalf("events = %+v", events)
	}
}

func TestElapsedMillis(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{1500700 * time.Microsecond, 1501},
		{1500400 * time.Microsecond, 1500},
		{500 * time.Microsecond, 1},
		{0, 0},
		{-time.Second, 0},
	}
	for _, tt := range tests {
		if got := ElapsedMillis(tt.d); got != tt.want {
			t.Errorf("ElapsedMillis(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestStopwatch(t *testing.T) {
	clock := newFakeClock()
	w := NewStopwatch(clock.Now)

	if _, ok := w.Lap(); ok {
		t.Fatal("Lap before Start reported a reading")
	}

	w.Start()
	clock.Advance(750 * time.Millisecond)
	if ms, ok := w.Lap(); !ok || ms != 750 {
		t.Fatalf("Lap = %d, %v", ms, ok)
	}
	clock.Advance(250 * time.Millisecond)
	if ms, _ := w.Elapsed(); ms != 250 {
		t.Fatalf("Elapsed after lap = %d, want 250", ms)
	}
	if ms, ok := w.Stop(); !ok || ms != 250 {
		t.Fatalf("Stop = %d, %v", ms, ok)
	}
	if _, ok := w.Stop(); ok {
		t.Fatal("second Stop reported a reading")
	}
}

func TestPathOf(t *testing.T) {
	tests := map[string]string{
		"/products?sort=price":                  "/products",
		"/cart#summary":                         "/cart",
		"https://shop.example.com/orders/7?x=1": "/orders/7",
		"":                                      "/",
		"products":                              "/products",
	}
	for in, want := range tests {
		if got := PathOf(in); got != want {
			t.Errorf("PathOf(%q) = %q, want %q", in, got, want)
		}
	}
}
