package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
)

const topProductsLimit = 5

// SummarizeActivity computes the admin counters over a feed. Event types
// keep the order of first appearance.
func SummarizeActivity(entries []*ActivityEntry, now time.Time) ActivitySummary {
	summary := ActivitySummary{Total: len(entries), EventTypes: []string{}}
	seen := make(map[string]bool)

	var timed int
	var totalMS float64
	for _, e := range entries {
		if now.Sub(e.CreatedAt.Time) < 24*time.Hour {
			summary.Last24h++
		}
		if e.EventType == event.EventTypePageView {
			summary.PageViews++
		}
		if strings.Contains(e.EventType, "click") {
			summary.Clicks++
		}
		if !seen[e.EventType] {
			seen[e.EventType] = true
			summary.EventTypes = append(summary.EventTypes, e.EventType)
		}
		if e.EventType == event.EventTypeTimeOnPage {
			if ms, ok := payloadMS(e.EventData); ok {
				timed++
				totalMS += ms
			}
		}
	}
	if timed > 0 {
		summary.AvgTimeOnPageMS = totalMS / float64(timed)
	}
	return summary
}

func payloadMS(data event.Payload) (float64, bool) {
	switch v := data["ms"].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func SummarizeOrders(orders []*Order) OrdersSummary {
	summary := OrdersSummary{ByStatus: make(map[string]int), TopProducts: []ProductQuantity{}}
	products := make(map[string]int)

	for _, o := range orders {
		summary.TotalSales += o.Total
		summary.Subtotals += o.Subtotal
		summary.Count++
		summary.ByStatus[o.Status]++
		for _, item := range o.Items {
			summary.ItemsSold += item.Quantity
			name := "Unknown"
			if item.ProductName != nil {
				name = *item.ProductName
			}
			products[name] += item.Quantity
		}
	}

	if summary.Count > 0 {
		summary.AverageOrderValue = summary.TotalSales / float64(summary.Count)
	}
	summary.Profit = summary.TotalSales - summary.Subtotals

	for name, qty := range products {
		summary.TopProducts = append(summary.TopProducts, ProductQuantity{Name: name, Quantity: qty})
	}
	slices.SortFunc(summary.TopProducts, func(a, b ProductQuantity) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(summary.TopProducts) > topProductsLimit {
		summary.TopProducts = summary.TopProducts[:topProductsLimit]
	}
	return summary
}
