package tracking

import (
	"testing"
)

func TestFindNearestMarkedResolvesAncestor(t *testing.T) {
	card := el("div", map[string]string{MarkerAttr: "add_to_cart_click", MarkerMetaAttr: `{"product_id":"abc123"}`}, nil)
	wrapper := el("span", nil, card)
	button := el("button", nil, wrapper)
	icon := el("svg", nil, button)

	marker, ok := FindNearestMarked(icon)
	if !ok {
		t.Fatal("expected marked ancestor")
	}
	if marker.EventType != "add_to_cart_click" {
		t.Fatalf("event type = %q", marker.EventType)
	}
	if marker.Element != Node(card) {
		t.Fatal("marker resolved to the wrong element")
	}
}

func TestFindNearestMarkedPrefersClosest(t *testing.T) {
	outer := el("section", map[string]string{MarkerAttr: "outer"}, nil)
	inner := el("a", map[string]string{MarkerAttr: "inner"}, outer)

	marker, ok := FindNearestMarked(el("span", nil, inner))
	if !ok || marker.EventType != "inner" {
		t.Fatalf("marker = %+v, ok = %v", marker, ok)
	}

	marker, ok = FindNearestMarked(inner)
	if !ok || marker.EventType != "inner" {
		t.Fatalf("target itself must be considered, got %+v", marker)
	}
}

func TestFindNearestMarkedWithoutMarker(t *testing.T) {
	root := el("body", nil, nil)
	leaf := el("p", map[string]string{"class": "text"}, el("div", nil, root))

	if _, ok := FindNearestMarked(leaf); ok {
		t.Fatal("unmarked chain must not resolve")
	}
	if _, ok := FindNearestMarked(nil); ok {
		t.Fatal("nil target must not resolve")
	}
}

func TestMarkerPayload(t *testing.T) {
	tests := []struct {
		name       string
		attrs      map[string]string
		wantType   string
		want       map[string]any
		wantAbsent []string
	}{
		{
			name:       "json meta without id or class",
			attrs:      map[string]string{MarkerAttr: "add_to_cart_click", MarkerMetaAttr: `{"product_id":"abc123"}`},
			wantType:   "add_to_cart_click",
			want:       map[string]any{"product_id": "abc123", "tag": "BUTTON"},
			wantAbsent: []string{"id", "classes", "meta"},
		},
		{
			name:       "malformed meta",
			attrs:      map[string]string{MarkerAttr: "promo", MarkerMetaAttr: "not-json"},
			wantType:   "promo",
			want:       map[string]any{"meta": "not-json", "tag": "BUTTON"},
			wantAbsent: []string{"id", "classes"},
		},
		{
			name:       "non-object meta",
			attrs:      map[string]string{MarkerAttr: "promo", MarkerMetaAttr: `[1,2]`},
			wantType:   "promo",
			want:       map[string]any{"meta": "[1,2]", "tag": "BUTTON"},
			wantAbsent: []string{"id", "classes"},
		},
		{
			name:       "empty marker defaults to click",
			attrs:      map[string]string{MarkerAttr: "", "id": "checkout", "class": "btn btn-primary"},
			wantType:   "click",
			want:       map[string]any{"tag": "BUTTON", "id": "checkout", "classes": "btn btn-primary"},
			wantAbsent: []string{"meta"},
		},
		{
			name:       "classes reported verbatim",
			attrs:      map[string]string{MarkerAttr: "promo", "class": " btn  btn-wide "},
			wantType:   "promo",
			want:       map[string]any{"tag": "BUTTON", "classes": " btn  btn-wide "},
			wantAbsent: []string{"id", "meta"},
		},
		{
			name:       "blank attributes count as absent",
			attrs:      map[string]string{MarkerAttr: "promo", "class": "   ", "id": ""},
			wantType:   "promo",
			want:       map[string]any{"tag": "BUTTON"},
			wantAbsent: []string{"id", "classes"},
		},
		{
			name:       "element attributes override meta",
			attrs:      map[string]string{MarkerAttr: "nav", MarkerMetaAttr: `{"tag":"x","id":"from-meta","classes":"c"}`, "id": "real"},
			wantType:   "nav",
			want:       map[string]any{"tag": "BUTTON", "id": "real"},
			wantAbsent: []string{"classes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, ok := FindNearestMarked(el("button", tt.attrs, nil))
			if !ok {
				t.Fatal("expected marker")
			}
			if marker.EventType != tt.wantType {
				t.Errorf("event type = %q, want %q", marker.EventType, tt.wantType)
			}
			for k, v := range tt.want {
				if marker.Payload[k] != v {
					t.Errorf("payload[%q] = %v, want %v", k, marker.Payload[k], v)
				}
			}
			for _, k := range tt.wantAbsent {
				if _, present := marker.Payload[k]; present {
					t.Errorf("payload has unexpected key %q: %v", k, marker.Payload)
				}
			}
			if len(marker.Payload) != len(tt.want) {
				t.Errorf("payload = %v, want exactly %v", marker.Payload, tt.want)
			}
		})
	}
}
