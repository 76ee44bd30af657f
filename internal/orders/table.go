package orders

import (
	"sort"
	"strings"
	"time"
)

// Filter narrows an orders table. Zero fields match everything.
type Filter struct {
	Status       string
	CancelledBy  string
	RefundStatus string
	From         time.Time
	To           time.Time
}

// Apply returns the orders matching f, keeping their order.
func (f Filter) Apply(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if f.Status != "" && !strings.EqualFold(o.Status, f.Status) {
			continue
		}
		if f.CancelledBy != "" && !strings.EqualFold(o.CancelledBy, f.CancelledBy) {
			continue
		}
		if f.RefundStatus != "" && !strings.EqualFold(o.RefundStatus, f.RefundStatus) {
			continue
		}
		if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && o.CreatedAt.After(f.To) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Search keeps orders whose id, document id, customer or restaurant contains
// query, ignoring case. An empty query keeps everything.
func Search(orders []Order, query string) []Order {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]Order(nil), orders...)
	}
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		for _, field := range []string{o.ID, o.DocumentID, o.CustomerName, o.RestaurantName} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

// Sortable order fields.
const (
	SortCreatedAt  = "createdAt"
	SortTotal      = "totalAmount"
	SortStatus     = "status"
	SortCustomer   = "customerName"
	SortRestaurant = "restaurantName"
	SortID         = "id"
)

// SortBy returns a copy of orders stably sorted by field. Unknown fields keep
// the input order.
func SortBy(orders []Order, field string, desc bool) []Order {
	out := append([]Order(nil), orders...)
	var less func(a, b Order) bool
	switch field {
	case SortCreatedAt:
		less = func(a, b Order) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortTotal:
		less = func(a, b Order) bool { return a.TotalAmount.LessThan(b.TotalAmount) }
	case SortStatus:
		less = func(a, b Order) bool { return strings.ToLower(a.Status) < strings.ToLower(b.Status) }
	case SortCustomer:
		less = func(a, b Order) bool { return strings.ToLower(a.CustomerName) < strings.ToLower(b.CustomerName) }
	case SortRestaurant:
		less = func(a, b Order) bool { return strings.ToLower(a.RestaurantName) < strings.ToLower(b.RestaurantName) }
	case SortID:
		less = func(a, b Order) bool { return a.ID < b.ID }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}
