package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/google/uuid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []*event.ActivityEvent
	err    error
	panic  any
	block  chan struct{}
}

func (s *recordingSink) TrackEvent(ctx context.Context, ev *event.ActivityEvent) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.panic != nil {
		panic(s.panic)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) recorded() []*event.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*event.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) types() []string {
	var out []string
	for _, ev := range s.recorded() {
		out = append(out, ev.EventType)
	}
	return out
}

// encodingSink serializes the payload on the dispatch goroutine, the way a
// real sink does.
type encodingSink struct {
	recordingSink
}

func (s *encodingSink) TrackEvent(ctx context.Context, ev *event.ActivityEvent) error {
	if _, err := json.Marshal(ev.EventData); err != nil {
		return err
	}
	return s.recordingSink.TrackEvent(ctx, ev)
}

// switchIdentity answers with whatever user was set last.
type switchIdentity struct {
	mu   sync.Mutex
	user *uuid.UUID
}

func (s *switchIdentity) CurrentUser(context.Context) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, nil
}

func (s *switchIdentity) set(user *uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

type hangingIdentity struct{}

func (hangingIdentity) CurrentUser(ctx context.Context) (*uuid.UUID, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type identityAnswer struct {
	user *uuid.UUID
	err  error
}

// stubIdentity answers lookups in the scripted order, then as anonymous.
type stubIdentity struct {
	mu      sync.Mutex
	answers []identityAnswer
	calls   int
}

func (s *stubIdentity) CurrentUser(context.Context) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.answers) == 0 {
		return nil, nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a.user, a.err
}

func (s *stubIdentity) script(answers ...identityAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = answers
}

type sentBeacon struct {
	url         string
	contentType string
	body        []byte
}

type recordingBeacon struct {
	mu   sync.Mutex
	sent []sentBeacon
	ok   bool
}

func (b *recordingBeacon) Send(url, contentType string, body []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentBeacon{url: url, contentType: contentType, body: body})
	return b.ok
}

// testNode is a synthetic UI element.
type testNode struct {
	tag    string
	attrs  map[string]string
	parent *testNode
}

func el(tag string, attrs map[string]string, parent *testNode) *testNode {
	return &testNode{tag: tag, attrs: attrs, parent: parent}
}

func (n *testNode) TagName() string { return n.tag }

func (n *testNode) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

func (n *testNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

type fakeClickSource struct {
	mu        sync.Mutex
	listeners map[int]ClickHandler
	next      int
}

func newFakeClickSource() *fakeClickSource {
	return &fakeClickSource{listeners: make(map[int]ClickHandler)}
}

func (s *fakeClickSource) AddClickListener(h ClickHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *fakeClickSource) click(target Node) {
	s.mu.Lock()
	handlers := make([]ClickHandler, 0, len(s.listeners))
	for _, h := range s.listeners {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(target)
	}
}

func (s *fakeClickSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

var errSinkDown = errors.New("sink unreachable")
