package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/config"
	"github.com/Wuchinator/storefront-activity/internal/identity"
	"github.com/Wuchinator/storefront-activity/internal/query"
	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tokens, err := identity.NewTokens(cfg.Security.JWTSecret, 5*time.Minute)
	if err != nil {
		log.Fatalf("Failed to create tokens: %v", err)
	}
	token, err := tokens.Issue(uuid.New(), "admin@example.com", identity.RoleAdmin)
	if err != nil {
		log.Fatalf("Failed to issue admin token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:"+cfg.HTTPPort+"/admin/dashboard", nil)
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Failed to get dashboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Dashboard returned %s", resp.Status)
	}

	var d query.Dashboard
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		log.Fatalf("Failed to decode dashboard: %v", err)
	}

	s := d.Summary
	fmt.Printf("Activity: %d events, %d in last 24h, %d page views, %d clicks, avg time on page %.0fms\n",
		s.Total, s.Last24h, s.PageViews, s.Clicks, s.AvgTimeOnPageMS)
	fmt.Printf("Event types: %v\n\n", s.EventTypes)

	o := d.Orders
	fmt.Printf("Orders: %d, sales $%.2f, items %d, AOV $%.2f, profit $%.2f\n",
		o.Count, o.TotalSales, o.ItemsSold, o.AverageOrderValue, o.Profit)
	for _, p := range o.TopProducts {
		fmt.Printf("   - %s x%d\n", p.Name, p.Quantity)
	}

	fmt.Printf("\nFound %d statistics records\n", len(d.Stats))
	for i, stat := range d.Stats {
		if i >= 5 {
			break
		}
		fmt.Printf("   - %s | %s: %d events, %d sessions, %d unique users\n",
			stat.Timestamp.Format("2006-01-02 15:04"),
			stat.EventType,
			stat.TotalEvents,
			stat.UniqueSessions,
			stat.UniqueUsers,
		)
	}

	fmt.Println("\nLatest activity:")
	for i, a := range d.Activity {
		if i >= 10 {
			break
		}
		who := a.FullName
		if who == "" {
			who = "-"
		}
		fmt.Printf("   - %s %-18s %-20s %s\n", a.CreatedAt.Format("15:04:05"), a.EventType, a.PageURL, who)
	}
}
