package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product in the cart. Quantity is always positive.
type LineItem struct {
	ID           string          `json:"id" validate:"required"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	RestaurantID string          `json:"restaurantId,omitempty"`
	Restaurant   string          `json:"restaurant,omitempty"`
	Quantity     int             `json:"quantity"`
}

// LineTotal is price times quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) hasRestaurant() bool {
	return normalize(li.RestaurantID) != "" || normalize(li.Restaurant) != ""
}

// Restaurant identifies the restaurant a cart is bound to.
type Restaurant struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Position is the screen-space origin of an add/remove gesture.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type EventKind string

const (
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
)

// AnimationEvent is transient UI feedback; it is never persisted.
type AnimationEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Product   LineItem  `json:"product"`
	Source    Position  `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (e AnimationEvent) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sameRestaurant compares by normalized name when both sides carry one, otherwise by id.
// When neither pair is comparable the items are treated as compatible.
func sameRestaurant(existing Restaurant, item LineItem) bool {
	if a, b := normalize(existing.Name), normalize(item.Restaurant); a != "" && b != "" {
		return a == b
	}
	if a, b := normalize(existing.ID), normalize(item.RestaurantID); a != "" && b != "" {
		return a == b
	}
	return true
}
