package dom

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/Wuchinator/storefront-activity/internal/tracking"
	"go.uber.org/zap"
)

const productPage = `<!doctype html>
<html>
<body>
  <nav><a href="/">Home</a> <a href="/products">Products</a> <a href="/cart" id="cart-link">Cart</a></nav>
  <main id="catalog">
    <div class="card" id="card-abc123">
      <h3>Linen shirt</h3>
      <button class="bg-gradient-accent hover:opacity-90" data-track="add_to_cart_click" data-track-meta='{"product_id":"abc123"}'>
        <span><svg id="cart-icon"><path d="M0 0"></path></svg></span>
        Add to cart
      </button>
      <button id="wishlist" data-track data-track-meta="not-json">Save</button>
    </div>
    <p id="plain">No tracking here</p>
  </main>
</body>
</html>`

type memorySink struct {
	mu     sync.Mutex
	events []*event.ActivityEvent
}

func (s *memorySink) TrackEvent(_ context.Context, ev *event.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func mustParse(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(productPage)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return doc
}

func mustGet(t *testing.T, doc *Document, id string) *Element {
	t.Helper()
	el, ok := doc.GetElementByID(id)
	if !ok {
		t.Fatalf("element #%s not found", id)
	}
	return el
}

func TestElementTree(t *testing.T) {
	doc := mustParse(t)

	icon := mustGet(t, doc, "cart-icon")
	if icon.TagName() != "SVG" {
		t.Fatalf("tag = %q", icon.TagName())
	}

	var chain []string
	for n := tracking.Node(icon); n != nil; n = n.Parent() {
		chain = append(chain, n.TagName())
	}
	want := []string{"SVG", "SPAN", "BUTTON", "DIV", "MAIN", "BODY", "HTML"}
	if len(chain) != len(want) {
		t.Fatalf("ancestor chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("ancestor chain = %v, want %v", chain, want)
		}
	}

	if got := len(doc.ElementsWithAttr(tracking.MarkerAttr)); got != 2 {
		t.Fatalf("marked elements = %d, want 2", got)
	}
	if links := doc.Links(); len(links) != 3 || links[2] != "/cart" {
		t.Fatalf("links = %v", links)
	}
	if text := mustGet(t, doc, "plain").Text(); text != "No tracking here" {
		t.Fatalf("text = %q", text)
	}
}

func TestFindNearestMarkedOverParsedHTML(t *testing.T) {
	doc := mustParse(t)

	marker, ok := tracking.FindNearestMarked(mustGet(t, doc, "cart-icon"))
	if !ok {
		t.Fatal("icon inside marked button did not resolve")
	}
	if marker.EventType != "add_to_cart_click" {
		t.Fatalf("event type = %q", marker.EventType)
	}
	if marker.Payload["product_id"] != "abc123" || marker.Payload["tag"] != "BUTTON" {
		t.Fatalf("payload = %v", marker.Payload)
	}
	if marker.Payload["classes"] != "bg-gradient-accent hover:opacity-90" {
		t.Fatalf("classes = %v", marker.Payload["classes"])
	}
	if _, ok := marker.Payload["id"]; ok {
		t.Fatalf("payload has id: %v", marker.Payload)
	}

	marker, ok = tracking.FindNearestMarked(mustGet(t, doc, "wishlist"))
	if !ok || marker.EventType != "click" {
		t.Fatalf("wishlist marker = %+v", marker)
	}
	if marker.Payload["meta"] != "not-json" || marker.Payload["id"] != "wishlist" {
		t.Fatalf("payload = %v", marker.Payload)
	}

	if _, ok := tracking.FindNearestMarked(mustGet(t, doc, "plain")); ok {
		t.Fatal("unmarked paragraph resolved to a marker")
	}
}

func TestTrackerClicksThroughDocument(t *testing.T) {
	doc := mustParse(t)
	sink := &memorySink{}
	tracker := tracking.New(tracking.Config{}, sink, tracking.Anonymous{}, nil, zap.NewNop())
	ctx := context.Background()

	if err := tracker.Mount(ctx, "/products/abc123", doc); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if doc.ListenerCount() != 1 {
		t.Fatalf("listeners = %d", doc.ListenerCount())
	}

	doc.Click(mustGet(t, doc, "cart-icon"))
	doc.Click(mustGet(t, doc, "plain"))
	doc.Click(mustGet(t, doc, "wishlist"))

	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tracker.Unmount(drainCtx); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if doc.ListenerCount() != 0 {
		t.Fatal("listener survived unmount")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var types []string
	for _, ev := range sink.events {
		types = append(types, ev.EventType)
	}
	want := []string{"page_view", "add_to_cart_click", "click"}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}
