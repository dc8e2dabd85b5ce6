package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/beacon"
	"github.com/Wuchinator/storefront-activity/internal/config"
	"github.com/Wuchinator/storefront-activity/internal/dom"
	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/Wuchinator/storefront-activity/internal/identity"
	"github.com/Wuchinator/storefront-activity/internal/ingest"
	"github.com/Wuchinator/storefront-activity/internal/tracking"
	"github.com/Wuchinator/storefront-activity/pkg/logger"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const productPage = `<!doctype html>
<html>
<body>
  <nav><a href="/">Home</a> <a href="/products">Products</a> <a href="/cart">Cart</a></nav>
  <main>
    <div class="card" id="abc123">
      <h3>Linen shirt</h3>
      <button class="btn-accent" data-track="add_to_cart_click" data-track-meta='{"product_id":"abc123"}'>
        <span id="abc123-label">Add to cart</span>
      </button>
    </div>
    <div class="card" id="def456">
      <h3>Canvas tote</h3>
      <button data-track="add_to_cart_click" data-track-meta='{"product_id":"def456"}'>Add to cart</button>
      <button data-track data-track-meta="wishlist">Save</button>
    </div>
    <footer id="footer">Free shipping over $50</footer>
  </main>
</body>
</html>`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()
	zlog = logger.WithComponent(zlog, "tracker")

	conn, err := grpc.NewClient(
		"localhost:"+cfg.GRPCPort,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthResp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "event-service"})
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	fmt.Printf("Health check: %s\n\n", healthResp.GetStatus())

	doc, err := dom.ParseString(productPage)
	if err != nil {
		log.Fatalf("Failed to parse page: %v", err)
	}

	httpClient := &http.Client{Timeout: 5 * time.Second}
	shopper, signIn := newIdentity(cfg, httpClient)
	httpBeacon := beacon.New(httpClient, zlog)

	tracker := tracking.New(tracking.Config{
		BeaconURL:     cfg.Tracking.BeaconURL(),
		BufferSize:    cfg.Tracking.BufferSize,
		InsertTimeout: cfg.Tracking.InsertTimeout,
	}, ingest.NewClient(cfg.Tracking.Origin, httpClient), shopper, httpBeacon, zlog)

	fmt.Printf("Session %s browsing %s\n", tracker.SessionID(), cfg.Tracking.Origin)
	if err := tracker.Mount(ctx, "/", doc); err != nil {
		log.Fatalf("Failed to mount tracker: %v", err)
	}

	pause := func() { time.Sleep(300 * time.Millisecond) }

	for _, href := range doc.Links() {
		pause()
		if tracker.Navigate(ctx, href) {
			fmt.Printf("Navigated to %s\n", href)
		}
	}
	pause()
	tracker.Navigate(ctx, "/cart?step=2") // same path, no event

	for _, el := range doc.ElementsWithAttr(tracking.MarkerAttr) {
		fmt.Printf("Clicking %q\n", el.Text())
		doc.Click(el)
	}
	if label, ok := doc.GetElementByID("abc123-label"); ok {
		doc.Click(label)
	}
	if footer, ok := doc.GetElementByID("footer"); ok {
		doc.Click(footer) // unmarked, no event
	}

	signIn()
	pause()
	tracker.Navigate(ctx, "/products/abc123")
	tracker.Emitter().Emit(ctx, "checkout_started", event.Payload{"items": 2})
	pause()

	if err := tracker.Unload(ctx); err != nil {
		log.Fatalf("Unload failed: %v", err)
	}
	if err := httpBeacon.Wait(ctx); err != nil {
		log.Printf("Beacon still in flight: %v", err)
	}

	printSession(ctx, httpClient, cfg.Tracking.Origin, tracker.SessionID())
}

// newIdentity signs the shopper in halfway through the visit when a JWT
// secret is configured. With AUTH_URL set the user is resolved by the
// auth server instead of local verification.
func newIdentity(cfg *config.Config, client *http.Client) (tracking.IdentityProvider, func()) {
	tokens, err := identity.NewTokens(cfg.Security.JWTSecret, time.Hour)
	if err != nil {
		fmt.Println("JWT_SECRET not set, browsing anonymously")
		return tracking.Anonymous{}, func() {}
	}

	provider := identity.NewTokenProvider(tokens)
	signIn := func() {
		token, err := tokens.Issue(uuid.New(), "shopper@example.com", "customer")
		if err != nil {
			log.Printf("Failed to issue token: %v", err)
			return
		}
		provider.SignIn(token)
		fmt.Println("Shopper signed in")
	}

	if cfg.Security.AuthURL != "" {
		return identity.NewAuthClient(cfg.Security.AuthURL, provider, client), signIn
	}
	return provider, signIn
}

func printSession(ctx context.Context, client *http.Client, origin string, sessionID uuid.UUID) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/sessions/%s/events", origin, sessionID), nil)
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Failed to fetch session: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Events []*event.ActivityEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatalf("Failed to decode session: %v", err)
	}

	fmt.Printf("\nStored %d events:\n", len(body.Events))
	for _, ev := range body.Events {
		user := "anonymous"
		if ev.UserID != nil {
			user = ev.UserID.String()
		}
		data, _ := json.Marshal(ev.EventData)
		fmt.Printf("   - %-18s %-18s %s %s\n", ev.EventType, ev.PageURL, user, data)
	}
}
