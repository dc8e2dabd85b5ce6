package tracking

import (
	"math"
	"sync"
	"time"
)

// Clock returns the current instant. time.Now carries a monotonic reading,
// so differences between two of its values never go backwards.
type Clock func() time.Time

// Stopwatch measures time spent on the current page.
type Stopwatch struct {
	now Clock

	mu      sync.Mutex
	start   time.Time
	running bool
}

func NewStopwatch(now Clock) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{now: now}
}

func (w *Stopwatch) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.start = w.now()
	w.running = true
}

// Lap returns the elapsed milliseconds and restarts the measurement.
func (w *Stopwatch) Lap() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return 0, false
	}
	now := w.now()
	ms := ElapsedMillis(now.Sub(w.start))
	w.start = now
	return ms, true
}

func (w *Stopwatch) Elapsed() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return 0, false
	}
	return ElapsedMillis(w.now().Sub(w.start)), true
}

// Stop returns the final reading; later calls report false.
func (w *Stopwatch) Stop() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return 0, false
	}
	w.running = false
	return ElapsedMillis(w.now().Sub(w.start)), true
}

func (w *Stopwatch) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// ElapsedMillis rounds d to the nearest whole millisecond, half away from zero.
func ElapsedMillis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(math.Round(float64(d) / float64(time.Millisecond)))
}
