package tracking

import (
	"encoding/json"

	"github.com/Wuchinator/storefront-activity/internal/event"
)

// Beacon is a one-way transport that survives page teardown. Send reports
// whether the request was queued; nothing is ever read back.
type Beacon interface {
	Send(url, contentType string, body []byte) bool
}

// DepartureReporter flushes the final time_on_page directly through the
// beacon, bypassing the emitter.
type DepartureReporter struct {
	beacon   Beacon
	url      string
	session  *Session
	location PathSource
	watch    *Stopwatch
}

func NewDepartureReporter(beacon Beacon, url string, session *Session, location PathSource, watch *Stopwatch) *DepartureReporter {
	return &DepartureReporter{
		beacon:   beacon,
		url:      url,
		session:  session,
		location: location,
		watch:    watch,
	}
}

// Report sends at most one beacon per running timer. Failures are silent.
func (r *DepartureReporter) Report() bool {
	if r.beacon == nil {
		return false
	}
	ms, ok := r.watch.Stop()
	if !ok {
		return false
	}

	body, err := json.Marshal(event.Beacon{
		Event:     event.EventTypeTimeOnPage,
		MS:        ms,
		SessionID: r.session.ID().String(),
		PageURL:   r.location.Path(),
	})
	if err != nil {
		return false
	}
	return r.beacon.Send(r.url, "application/json", body)
}
