// Package tracking records storefront activity from one client instance:
// page views, time on page, marked clicks and a final beacon on unload.
// Every event carries the tracker's session id and goes through a single
// fire-and-forget emitter.
package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes one Tracker. Zero values take the emitter defaults and the
// system monotonic clock.
type Config struct {
	// BeaconURL receives the unload beacon, usually <origin>/beacon.
	BeaconURL       string
	BufferSize      int
	InsertTimeout   time.Duration
	IdentityTimeout time.Duration
	Clock           Clock
}

// Tracker is one client instance. Mount starts its session, Unmount or
// Unload ends it; a terminated tracker cannot be mounted again.
type Tracker struct {
	session     *Session
	location    *Location
	watch       *Stopwatch
	emitter     *AsyncEmitter
	navigation  *NavigationObserver
	interaction *InteractionObserver
	departure   *DepartureReporter
	logger      *zap.Logger
}

// New wires the observers of one client instance. No goroutine runs until
// Mount.
func New(cfg Config, sink Sink, identity IdentityProvider, beacon Beacon, logger *zap.Logger) *Tracker {
	session := NewSession()
	location := NewLocation()
	watch := NewStopwatch(cfg.Clock)

	emitter := NewAsyncEmitter(EmitterConfig{
		BufferSize:      cfg.BufferSize,
		InsertTimeout:   cfg.InsertTimeout,
		IdentityTimeout: cfg.IdentityTimeout,
	}, session, location, identity, sink, logger)

	return &Tracker{
		session:     session,
		location:    location,
		watch:       watch,
		emitter:     emitter,
		navigation:  NewNavigationObserver(emitter, location, watch),
		interaction: NewInteractionObserver(emitter),
		departure:   NewDepartureReporter(beacon, cfg.BeaconURL, session, location, watch),
		logger:      logger,
	}
}

// Mount activates the session at location and emits the first page_view.
// clicks may be nil when the host reports clicks through Click.
func (t *Tracker) Mount(ctx context.Context, location string, clicks ClickSource) error {
	if err := t.session.activate(); err != nil {
		return err
	}
	t.emitter.Start()

	t.logger.Info("Activity tracker mounted",
		zap.String("session_id", t.session.ID().String()),
		zap.String("path", PathOf(location)),
	)

	t.navigation.Activate(ctx, location)
	if clicks != nil {
		if err := t.interaction.Attach(ctx, clicks); err != nil {
			return err
		}
	}
	return nil
}

// Navigate reports a route change. It returns false when the path did not
// change or the tracker is not active.
func (t *Tracker) Navigate(ctx context.Context, location string) bool {
	if !t.session.Active() {
		return false
	}
	return t.navigation.Observe(ctx, location)
}

// Click reports a click on target for hosts without a ClickSource.
func (t *Tracker) Click(ctx context.Context, target Node) bool {
	if !t.session.Active() {
		return false
	}
	return t.interaction.HandleClick(ctx, target)
}

// Unload is the page-teardown signal: the final time on page goes out
// through the beacon, then the session ends and queued events are drained
// until ctx is done.
func (t *Tracker) Unload(ctx context.Context) error {
	if !t.session.Active() {
		return ErrNotMounted
	}
	sent := t.departure.Report()
	t.logger.Debug("Departure beacon",
		zap.String("session_id", t.session.ID().String()),
		zap.Bool("queued", sent),
	)
	return t.shutdown(ctx)
}

// Unmount ends the session without a beacon.
func (t *Tracker) Unmount(ctx context.Context) error {
	if !t.session.Active() {
		return ErrNotMounted
	}
	t.watch.Stop()
	return t.shutdown(ctx)
}

func (t *Tracker) shutdown(ctx context.Context) error {
	t.interaction.Detach()
	if !t.session.terminate() {
		return ErrNotMounted
	}
	t.logger.Info("Activity tracker terminated", zap.String("session_id", t.session.ID().String()))
	return t.emitter.Close(ctx)
}

// Emitter is the handle for manual instrumentation outside the observers.
func (t *Tracker) Emitter() Emitter {
	return t.emitter
}

func (t *Tracker) SessionID() uuid.UUID {
	return t.session.ID()
}

func (t *Tracker) State() State {
	return t.session.State()
}

func (t *Tracker) Path() string {
	return t.location.Path()
}
