package tracking

import (
	"context"
	"sync"
)

type ClickHandler func(target Node)

// ClickSource delivers every click in a document to root-level capturing
// listeners. The returned func removes the listener.
type ClickSource interface {
	AddClickListener(h ClickHandler) (remove func())
}

// InteractionObserver emits one event per click that lands inside a marked
// element. Unmarked clicks are ignored.
type InteractionObserver struct {
	emitter Emitter

	mu     sync.Mutex
	ctx    context.Context
	remove func()
}

func NewInteractionObserver(emitter Emitter) *InteractionObserver {
	return &InteractionObserver{emitter: emitter}
}

// Attach installs a single listener on src for the mounted lifetime.
func (o *InteractionObserver) Attach(ctx context.Context, src ClickSource) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.remove != nil {
		return ErrAlreadyMounted
	}
	o.ctx = ctx
	o.remove = src.AddClickListener(func(target Node) {
		o.HandleClick(o.context(), target)
	})
	return nil
}

// Detach removes the listener installed by Attach.
func (o *InteractionObserver) Detach() {
	o.mu.Lock()
	remove := o.remove
	o.remove = nil
	o.mu.Unlock()

	if remove != nil {
		remove()
	}
}

// HandleClick reports whether target resolved to a marked element.
func (o *InteractionObserver) HandleClick(ctx context.Context, target Node) bool {
	if target == nil {
		return false
	}
	marker, ok := FindNearestMarked(target)
	if !ok {
		return false
	}
	o.emitter.Emit(ctx, marker.EventType, marker.Payload)
	return true
}

func (o *InteractionObserver) context() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return context.Background()
	}
	return o.ctx
}
