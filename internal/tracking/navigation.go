package tracking

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/Wuchinator/storefront-activity/internal/event"
)

// Location is the current route path shared by the observers and the
// emitter.
type Location struct {
	mu   sync.RWMutex
	path string
}

func NewLocation() *Location {
	return &Location{path: "/"}
}

func (l *Location) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

// swap stores path and returns the previous one.
func (l *Location) swap(path string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.path
	l.path = path
	return prev
}

// PathOf reduces a URL or path to its path component. Query and fragment
// are dropped, so changing only them is not a navigation.
func PathOf(location string) string {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil || u.Path == "" {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") {
		return "/" + u.Path
	}
	return u.Path
}

// NavigationObserver turns route changes into time_on_page and page_view
// events.
type NavigationObserver struct {
	emitter  Emitter
	location *Location
	watch    *Stopwatch

	mu        sync.Mutex
	activated bool
}

func NewNavigationObserver(emitter Emitter, location *Location, watch *Stopwatch) *NavigationObserver {
	return &NavigationObserver{
		emitter:  emitter,
		location: location,
		watch:    watch,
	}
}

// Activate handles the first render: the timer starts and a bare page_view
// is emitted. Later calls are ignored.
func (o *NavigationObserver) Activate(ctx context.Context, location string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activated {
		return
	}
	o.activated = true

	o.location.swap(PathOf(location))
	o.watch.Start()
	o.emitter.Emit(ctx, event.EventTypePageView, nil)
}

// Observe reports whether location changed the path. On a change the
// departing page's time_on_page is emitted before the arriving page_view.
func (o *NavigationObserver) Observe(ctx context.Context, location string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.activated {
		return false
	}

	path := PathOf(location)
	if o.location.swap(path) == path {
		return false
	}

	if ms, ok := o.watch.Lap(); ok {
		o.emitter.Emit(ctx, event.EventTypeTimeOnPage, event.Payload{"ms": ms})
	} else {
		o.watch.Start()
	}
	o.emitter.Emit(ctx, event.EventTypePageView, event.Payload{"path": path})
	return true
}

func (o *NavigationObserver) Path() string {
	return o.location.Path()
}
