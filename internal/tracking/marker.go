package tracking

import (
	"encoding/json"
	"strings"

	"github.com/Wuchinator/storefront-activity/internal/event"
)

const (
	MarkerAttr     = "data-track"
	MarkerMetaAttr = "data-track-meta"

	DefaultClickEvent = event.EventTypeClick
)

// Node is one element of a UI tree. Parent returns nil at the root.
type Node interface {
	TagName() string
	Attr(name string) (string, bool)
	Parent() Node
}

// Marker is the tracking declaration found on a marked element.
type Marker struct {
	EventType string
	Payload   event.Payload
	Element   Node
}

// FindNearestMarked walks from target (inclusive) up through its ancestors
// and returns the first element carrying the marker attribute.
func FindNearestMarked(target Node) (Marker, bool) {
	for n := target; n != nil; n = n.Parent() {
		value, ok := n.Attr(MarkerAttr)
		if !ok {
			continue
		}
		if value == "" {
			value = DefaultClickEvent
		}
		return Marker{
			EventType: value,
			Payload:   MarkerPayload(n),
			Element:   n,
		}, true
	}
	return Marker{}, false
}

// MarkerPayload builds a click payload from the element's meta attribute
// plus its tag, id and classes.
func MarkerPayload(n Node) event.Payload {
	payload := parseMeta(n)

	payload["tag"] = strings.ToUpper(n.TagName())
	setOrDelete(payload, "id", attrValue(n, "id"))
	setOrDelete(payload, "classes", attrValue(n, "class"))

	return payload
}

func parseMeta(n Node) event.Payload {
	raw, ok := n.Attr(MarkerMetaAttr)
	if !ok || raw == "" {
		return event.Payload{}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed == nil {
		return event.Payload{"meta": raw}
	}
	return parsed
}

// attrValue keeps the attribute verbatim; a blank one counts as absent.
func attrValue(n Node, name string) string {
	v, _ := n.Attr(name)
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}

// an absent attribute drops any same-named key taken from the meta payload
func setOrDelete(p event.Payload, key, value string) {
	if value == "" {
		delete(p, key)
		return
	}
	p[key] = value
}
