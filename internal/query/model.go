package query

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/event"
	"github.com/google/uuid"
)

// ActivityEntry is a feed row enriched with the author's profile name.
type ActivityEntry struct {
	event.ActivityEvent
	FullName string `db:"-" json:"full_name,omitempty"`
}

type ActivitySummary struct {
	Total           int      `json:"total"`
	Last24h         int      `json:"last_24h"`
	PageViews       int      `json:"page_views"`
	Clicks          int      `json:"clicks"`
	EventTypes      []string `json:"event_types"`
	AvgTimeOnPageMS float64  `json:"avg_time_on_page_ms"`
}

type Order struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    *uuid.UUID      `db:"user_id" json:"user_id"`
	Status    string          `db:"status" json:"status"`
	Subtotal  float64         `db:"subtotal" json:"subtotal"`
	Total     float64         `db:"total" json:"total"`
	Items     OrderItems      `db:"order_items" json:"order_items"`
	CreatedAt event.Timestamp `db:"created_at" json:"created_at"`
}

type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName *string `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// OrderItems is the order_items JSON array column.
type OrderItems []OrderItem

func (o *OrderItems) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into OrderItems", src)
	}
	return json.Unmarshal(raw, o)
}

func (o OrderItems) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]OrderItem(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type ProductQuantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type OrdersSummary struct {
	TotalSales        float64           `json:"total_sales"`
	Subtotals         float64           `json:"subtotals"`
	ItemsSold         int               `json:"items_sold"`
	Count             int               `json:"count"`
	AverageOrderValue float64           `json:"average_order_value"`
	Profit            float64           `json:"profit"`
	ByStatus          map[string]int    `json:"by_status"`
	TopProducts       []ProductQuantity `json:"top_products"`
}

type EventStat struct {
	Timestamp      time.Time `json:"timestamp"`
	EventType      string    `json:"event_type"`
	TotalEvents    int64     `json:"total_events"`
	UniqueSessions int64     `json:"unique_sessions"`
	UniqueUsers    int64     `json:"unique_users"`
	TotalTimeMS    int64     `json:"total_time_ms"`
	AvgTimeMS      float64   `json:"avg_time_ms"`
}

type Dashboard struct {
	Activity []*ActivityEntry `json:"activity"`
	Summary  ActivitySummary  `json:"summary"`
	Orders   OrdersSummary    `json:"orders"`
	Stats    []*EventStat     `json:"stats"`
}
