package tracking

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Emitter is the single funnel every observer reports through. Emit never
// waits on the sink and never reports failure to the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType string, data event.Payload)
}

// Sink stores one activity event. event.Service implements it.
type Sink interface {
	TrackEvent(ctx context.Context, ev *event.ActivityEvent) error
}

// IdentityProvider returns the signed-in user, or nil for an anonymous
// visitor.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*uuid.UUID, error)
}

// PathSource reports the path of the current location.
type PathSource interface {
	Path() string
}

// EmitterConfig bounds the dispatch queue and the time spent on the
// identity lookup and the insert of one event. Zero values take defaults.
type EmitterConfig struct {
	BufferSize      int
	InsertTimeout   time.Duration
	IdentityTimeout time.Duration
}

const (
	defaultBufferSize      = 256
	defaultInsertTimeout   = 5 * time.Second
	defaultIdentityTimeout = 500 * time.Millisecond
)

type dispatch struct {
	ctx   context.Context
	event *event.ActivityEvent
}

// AsyncEmitter assembles events synchronously, user included, and hands
// them to a single dispatch goroutine, so events reach the sink in emission
// order.
type AsyncEmitter struct {
	session         *Session
	location        PathSource
	identity        IdentityProvider
	sink            Sink
	logger          *zap.Logger
	insertTimeout   time.Duration
	identityTimeout time.Duration

	start  sync.Once
	mu     sync.RWMutex
	closed bool
	queue  chan dispatch
	done   chan struct{}
}

// NewAsyncEmitter builds an emitter for session. Nothing is dispatched
// until Start; a nil identity means every visitor is anonymous.
func NewAsyncEmitter(
	cfg EmitterConfig,
	session *Session,
	location PathSource,
	identity IdentityProvider,
	sink Sink,
	logger *zap.Logger,
) *AsyncEmitter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = defaultInsertTimeout
	}
	if cfg.IdentityTimeout <= 0 {
		cfg.IdentityTimeout = defaultIdentityTimeout
	}
	if identity == nil {
		identity = Anonymous{}
	}

	return &AsyncEmitter{
		session:         session,
		location:        location,
		identity:        identity,
		sink:            sink,
		logger:          logger,
		insertTimeout:   cfg.InsertTimeout,
		identityTimeout: cfg.IdentityTimeout,
		queue:           make(chan dispatch, cfg.BufferSize),
		done:            make(chan struct{}),
	}
}

// Start launches the dispatch goroutine. Calls after the first, or after
// Close, do nothing.
func (e *AsyncEmitter) Start() {
	e.start.Do(func() {
		go e.run()
	})
}

// Emit records eventType for the current user and path. data is copied, so
// the caller may reuse its map.
func (e *AsyncEmitter) Emit(ctx context.Context, eventType string, data event.Payload) {
	if !e.session.Active() {
		e.logger.Debug("Dropping event outside active session",
			zap.String("event_type", eventType),
			zap.Stringer("state", e.session.State()),
		)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx = context.WithoutCancel(ctx)
	userID := e.currentUser(ctx)
	ev := event.NewEvent(eventType, e.session.ID(), userID, e.location.Path(), maps.Clone(data))

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.queue <- dispatch{ctx: ctx, event: ev}:
	default:
		e.logger.Warn("Activity buffer full, dropping event",
			zap.String("event_type", eventType),
			zap.String("session_id", ev.SessionID.String()),
		)
	}
}

// Close stops accepting events and waits until the queued ones have been
// dispatched or ctx is done. An emitter that was never started closes
// immediately.
func (e *AsyncEmitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	e.start.Do(func() {
		close(e.done)
	})

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("activity emitter drain: %w", ctx.Err())
	}
}

func (e *AsyncEmitter) run() {
	defer close(e.done)
	for d := range e.queue {
		e.dispatch(d)
	}
}

func (e *AsyncEmitter) dispatch(d dispatch) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Activity sink panicked",
				zap.Any("panic", r),
				zap.String("event_type", d.event.EventType),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(d.ctx, e.insertTimeout)
	defer cancel()

	if err := e.sink.TrackEvent(ctx, d.event); err != nil {
		e.logger.Error("Activity tracking error",
			zap.Error(err),
			zap.String("event_type", d.event.EventType),
			zap.String("session_id", d.event.SessionID.String()),
		)
	}
}

// currentUser asks the identity provider on every event. A failed lookup
// is indistinguishable from an anonymous visitor in the stored row.
func (e *AsyncEmitter) currentUser(ctx context.Context) (userID *uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, e.identityTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Identity lookup panicked, emitting anonymously", zap.Any("panic", r))
			userID = nil
		}
	}()

	userID, err := e.identity.CurrentUser(ctx)
	if err != nil {
		e.logger.Warn("Identity lookup failed, emitting anonymously", zap.Error(err))
		return nil
	}
	if userID != nil && *userID == uuid.Nil {
		return nil
	}
	return userID
}

// Anonymous is an IdentityProvider for visitors who never sign in.
type Anonymous struct{}

// CurrentUser always reports an anonymous visitor.
func (Anonymous) CurrentUser(context.Context) (*uuid.UUID, error) {
	return nil, nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, string, event.Payload) {}
